// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file defines the parsing stage between inference and persistence.
// Generative models routinely wrap JSON answers in markdown code fences,
// so the raw text is stripped of fences before unmarshaling into the
// typed report, and the result is validated before it moves on.
package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
)

// GetReportParameterName returns the canonical context key for the parsed
// compliance report.
func GetReportParameterName() string {
	return "__COMPLIANCE_REPORT__"
}

// CleanJSONText strips a leading markdown code fence (with or without a
// "json" language tag) and a trailing fence from the model output. The
// function is idempotent: text without fences passes through unchanged.
func CleanJSONText(in string) string {
	out := strings.TrimSpace(in)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	}
	return strings.TrimSpace(out)
}

// ReportJsonToStruct is a command that parses the model's raw JSON output
// into a ComplianceReport struct. Failure here is fatal.
type ReportJsonToStruct struct {
	cor.BaseCommand
}

// NewReportJsonToStruct is the constructor for the ReportJsonToStruct
// command.
func NewReportJsonToStruct(name string) *ReportJsonToStruct {
	return &ReportJsonToStruct{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute parses and validates the report JSON.
func (s *ReportJsonToStruct) Execute(chainCtx cor.Context) {
	in := chainCtx.Get(s.GetInputParam()).(string)

	report := &model.ComplianceReport{}
	if err := json.Unmarshal([]byte(CleanJSONText(in)), report); err != nil {
		s.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(s.GetName(), fmt.Errorf("failed to unmarshal compliance report JSON: %w", err))
		return
	}
	if err := report.Validate(); err != nil {
		s.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(s.GetName(), fmt.Errorf("model produced an invalid report: %w", err))
		return
	}

	s.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	chainCtx.Add(GetReportParameterName(), report)
	chainCtx.Add(s.GetOutputParam(), report)
}
