// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func seedPolicyCorpus(t *testing.T, db *gorm.DB) {
	t.Helper()
	doc := &model.PolicyDocument{Id: uuid.New(), Publisher: "PLATFORM-EU", Title: "Platform Rules"}
	assert.NoError(t, db.Create(doc).Error)
	assert.NoError(t, db.Create(&model.PolicyRequirement{
		Id: uuid.New(), DocumentId: doc.Id, ReqCode: "BC-ADS-04",
		Summary: "Brand placement requires disclosure.",
	}).Error)
	assert.NoError(t, db.Create(&model.TaxonomyLabel{
		Id: uuid.New(), Code: "ALCOHOL_BRANDING", Title: "Identifiable alcohol branding",
	}).Error)
}

func retrievalProfiles() map[string]cloud.Profile {
	return map[string]cloud.Profile{
		"online_platform": {Name: "online_platform", PublisherPattern: "PLATFORM%"},
	}
}

func runRetrieval(db *gorm.DB, embedder cloud.Embedder, profile string) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(commands.GetJobRequestParameterName(), &model.JobRequest{
		JobId: "job-1", Filename: "clip.mp4", Profile: profile,
	})

	cmd := commands.NewContextRetrievalCommand(
		"retrieve-context",
		services.NewPolicyService(db),
		services.NewCaseMemoryService(db, embedder),
		retrievalProfiles(),
		"online_platform")
	cmd.Execute(chainCtx)
	return chainCtx
}

func TestContextRetrievalAssemblesBlocks(t *testing.T) {
	db := test.OpenTestDB(t,
		&model.PolicyDocument{}, &model.PolicyRequirement{},
		&model.TaxonomyLabel{}, &model.CaseMemory{})
	seedPolicyCorpus(t, db)

	chainCtx := runRetrieval(db, &test.FakeEmbedder{Vector: []float64{1, 0}}, "")

	assert.False(t, chainCtx.HasErrors())
	retrieved := chainCtx.Get(commands.GetRetrievedContextParameterName()).(*commands.RetrievedContext)
	assert.Contains(t, retrieved.PolicyText, "[BC-ADS-04] Brand placement requires disclosure.")
	assert.Contains(t, retrieved.TaxonomyText, "ALCOHOL_BRANDING: Identifiable alcohol branding")
	// Nothing in case memory yet.
	assert.Equal(t, services.NoExamplesPlaceholder, retrieved.HumanExamples)
}

// A dead embedder degrades only the human-examples block: the policy and
// taxonomy text still arrive, and the placeholder stands in for examples.
func TestContextRetrievalDegradesCaseMemory(t *testing.T) {
	db := test.OpenTestDB(t,
		&model.PolicyDocument{}, &model.PolicyRequirement{},
		&model.TaxonomyLabel{}, &model.CaseMemory{})
	seedPolicyCorpus(t, db)

	chainCtx := runRetrieval(db, &test.FakeEmbedder{Err: fmt.Errorf("embedding quota exceeded")}, "")

	assert.False(t, chainCtx.HasErrors())
	assert.NotEmpty(t, chainCtx.GetWarnings())
	retrieved := chainCtx.Get(commands.GetRetrievedContextParameterName()).(*commands.RetrievedContext)
	assert.NotEmpty(t, retrieved.PolicyText)
	assert.NotEmpty(t, retrieved.TaxonomyText)
	assert.Equal(t, services.NoExamplesPlaceholder, retrieved.HumanExamples)
}

// An unknown profile omits policy context with a warning instead of
// failing the job.
func TestContextRetrievalUnknownProfile(t *testing.T) {
	db := test.OpenTestDB(t,
		&model.PolicyDocument{}, &model.PolicyRequirement{},
		&model.TaxonomyLabel{}, &model.CaseMemory{})
	seedPolicyCorpus(t, db)

	chainCtx := runRetrieval(db, &test.FakeEmbedder{Vector: []float64{1, 0}}, "does-not-exist")

	assert.False(t, chainCtx.HasErrors())
	assert.NotEmpty(t, chainCtx.GetWarnings())
	retrieved := chainCtx.Get(commands.GetRetrievedContextParameterName()).(*commands.RetrievedContext)
	assert.Empty(t, retrieved.PolicyText)
	assert.NotEmpty(t, retrieved.TaxonomyText)
}
