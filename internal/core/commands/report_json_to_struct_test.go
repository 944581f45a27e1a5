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
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
)

// Fence stripping must be idempotent: applying it to already-clean text
// changes nothing.
func TestCleanJSONTextIdempotent(t *testing.T) {
	fenced := "```json\n{\"a\": 1}\n```"
	bare := "{\"a\": 1}"

	once := commands.CleanJSONText(fenced)
	assert.Equal(t, bare, once)
	assert.Equal(t, once, commands.CleanJSONText(once))
	assert.Equal(t, bare, commands.CleanJSONText(bare))
	assert.Equal(t, bare, commands.CleanJSONText("```\n{\"a\": 1}\n```"))
}

func TestReportJsonToStructParsesFencedReport(t *testing.T) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, test.GetTestReportJSON())

	cmd := commands.NewReportJsonToStruct("convert-report")
	cmd.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	report, ok := chainCtx.Get(commands.GetReportParameterName()).(*model.ComplianceReport)
	assert.True(t, ok)
	assert.Equal(t, model.RiskHigh, report.Overall.RiskLevel)
	assert.Len(t, report.Evidence, 2)
	assert.Len(t, report.Labels, 2)
	assert.Equal(t, []string{"e1"}, report.Labels[0].EvidenceIds)
}

func TestReportJsonToStructRejectsMalformedJSON(t *testing.T) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "not a report")

	cmd := commands.NewReportJsonToStruct("convert-report")
	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

// A parseable report with an out-of-vocabulary risk level must fail
// validation, not flow on to persistence.
func TestReportJsonToStructRejectsInvalidReport(t *testing.T) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, `{"schema_version": "1.1", "overall": {"risk_level": "EXTREME", "confidence": 0.5}}`)

	cmd := commands.NewReportJsonToStruct("convert-report")
	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}
