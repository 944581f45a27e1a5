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
	"encoding/json"
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func openResultGraph(t *testing.T) *gorm.DB {
	return test.OpenTestDB(t,
		&model.MediaAsset{},
		&model.AnalysisRun{},
		&model.Evidence{},
		&model.Detection{},
		&model.Recommendation{},
	)
}

func persistReport(t *testing.T, db *gorm.DB, report *model.ComplianceReport) cor.Context {
	t.Helper()
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, report)
	chainCtx.Add(commands.GetJobRequestParameterName(), &model.JobRequest{
		JobId:     "job-1",
		FilePath:  "/tmp/sample.mp4",
		Filename:  "sample.mp4",
		ModelName: "compliance-pro",
	})

	cmd := commands.NewReportPersist("persist-report", db)
	cmd.Execute(chainCtx)
	return chainCtx
}

// A full report must land as one asset, one run, its evidence rows, and
// detections whose transient evidence references are exchanged for the
// minted durable identifiers.
func TestReportPersistWritesResultGraph(t *testing.T) {
	db := openResultGraph(t)
	report := &model.ComplianceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Overall:       &model.OverallAssessment{RiskLevel: model.RiskHigh, Confidence: 0.9},
		Evidence: []*model.EvidenceItem{
			{Id: "e1", Type: model.EvidenceTranscriptSpan, StartMs: 1000, EndMs: 2000, TextQuote: "strong language"},
		},
		Labels: []*model.LabelDetection{
			{Code: "PROFANITY_EXPLICIT", Severity: 2, Confidence: 0.95, EvidenceIds: []string{"e1"}},
		},
		Recommendations: []*model.RecommendationItem{
			{Action: model.ActionBleep, Priority: "P1", TargetEvidenceIds: []string{"e1"}},
		},
	}

	chainCtx := persistReport(t, db, report)

	assert.False(t, chainCtx.HasErrors())
	assert.Empty(t, chainCtx.GetWarnings())

	result := chainCtx.Get(commands.GetAnalysisResultParameterName()).(*model.AnalysisResult)
	assert.NotEmpty(t, result.AssetId)
	assert.NotEmpty(t, result.RunId)

	var assetCount, runCount, evidenceCount int64
	db.Model(&model.MediaAsset{}).Count(&assetCount)
	db.Model(&model.AnalysisRun{}).Count(&runCount)
	db.Model(&model.Evidence{}).Count(&evidenceCount)
	assert.Equal(t, int64(1), assetCount)
	assert.Equal(t, int64(1), runCount)
	assert.Equal(t, int64(1), evidenceCount)

	var evidence model.Evidence
	assert.NoError(t, db.First(&evidence).Error)

	var detection model.Detection
	assert.NoError(t, db.First(&detection).Error)
	var cited []string
	assert.NoError(t, json.Unmarshal(detection.EvidenceIds, &cited))
	assert.Equal(t, []string{evidence.Id.String()}, cited)

	var run model.AnalysisRun
	assert.NoError(t, db.First(&run).Error)
	assert.Equal(t, model.RiskHigh, run.OverallRisk)
	assert.Equal(t, "compliance-pro", run.ModelName)
	assert.NotEmpty(t, run.RawReport)
}

// A detection citing evidence the report never declared keeps its row but
// drops the dangling reference; the job does not fail.
func TestReportPersistDropsUnresolvedEvidenceRefs(t *testing.T) {
	db := openResultGraph(t)
	report := &model.ComplianceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Overall:       &model.OverallAssessment{RiskLevel: model.RiskLow, Confidence: 0.7},
		Labels: []*model.LabelDetection{
			{Code: "VIOLENCE_MILD", Severity: 1, Confidence: 0.6, EvidenceIds: []string{"e9"}},
		},
	}

	chainCtx := persistReport(t, db, report)

	assert.False(t, chainCtx.HasErrors())

	var detection model.Detection
	assert.NoError(t, db.First(&detection).Error)
	var cited []string
	assert.NoError(t, json.Unmarshal(detection.EvidenceIds, &cited))
	assert.Empty(t, cited)
}

// A dead store degrades the stage: the result is still produced, without a
// run id, and the failure surfaces as a warning.
func TestReportPersistDegradesOnStoreFailure(t *testing.T) {
	db := openResultGraph(t)
	sqlDB, err := db.DB()
	assert.NoError(t, err)
	assert.NoError(t, sqlDB.Close())

	report := &model.ComplianceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Overall:       &model.OverallAssessment{RiskLevel: model.RiskSafe, Confidence: 1.0},
	}

	chainCtx := persistReport(t, db, report)

	assert.False(t, chainCtx.HasErrors())
	assert.NotEmpty(t, chainCtx.GetWarnings())

	result := chainCtx.Get(commands.GetAnalysisResultParameterName()).(*model.AnalysisResult)
	assert.NotEmpty(t, result.AssetId)
	assert.Empty(t, result.RunId)
	assert.Equal(t, report, result.Report)
}
