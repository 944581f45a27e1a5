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

package model_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func validReport() *model.ComplianceReport {
	return &model.ComplianceReport{
		SchemaVersion: model.ReportSchemaVersion,
		Overall:       &model.OverallAssessment{RiskLevel: model.RiskMedium, Confidence: 0.8},
		Labels: []*model.LabelDetection{
			{Code: "PROFANITY_MILD", Severity: 1, Confidence: 0.7},
		},
	}
}

func TestReportValidateAcceptsWellFormed(t *testing.T) {
	assert.NoError(t, validReport().Validate())
}

func TestReportValidateRequiresOverall(t *testing.T) {
	report := validReport()
	report.Overall = nil
	assert.Error(t, report.Validate())
}

func TestReportValidateRejectsUnknownRiskLevel(t *testing.T) {
	report := validReport()
	report.Overall.RiskLevel = "EXTREME"
	assert.Error(t, report.Validate())
}

func TestReportValidateBoundsConfidence(t *testing.T) {
	report := validReport()
	report.Overall.Confidence = 1.2
	assert.Error(t, report.Validate())

	report = validReport()
	report.Labels[0].Confidence = -0.1
	assert.Error(t, report.Validate())
}

func TestReportValidateBoundsSeverity(t *testing.T) {
	report := validReport()
	report.Labels[0].Severity = 4
	assert.Error(t, report.Validate())
}

// The canonical few-shot example must itself satisfy the validator; it is
// what the model is told to imitate.
func TestExampleReportIsValid(t *testing.T) {
	example := model.GetExampleReport()
	assert.NoError(t, example.Validate())
	assert.Equal(t, model.ReportSchemaVersion, example.SchemaVersion)
}
