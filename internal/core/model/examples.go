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

// This file provides a factory for the hardcoded example report embedded in
// the inference prompt. Showing the model one complete, well-formed instance
// of the expected JSON keeps its output consistent and parsable, which the
// strict validator downstream depends on.
package model

// GetExampleReport creates a sample ComplianceReport used for few-shot
// prompting. The example deliberately exercises every section of the
// schema: evidence cited by a label, a policy hit, and a remediation with
// parameters.
func GetExampleReport() *ComplianceReport {
	return &ComplianceReport{
		SchemaVersion: ReportSchemaVersion,
		Overall: &OverallAssessment{
			RiskLevel:  RiskHigh,
			Confidence: 0.92,
			AgeRating:  "18+",
			Summary:    "The clip contains repeated explicit profanity in dialogue and a visible hard-liquor brand logo during the bar scene.",
		},
		Evidence: []*EvidenceItem{
			{
				Id:        "e1",
				Type:      EvidenceTranscriptSpan,
				StartMs:   12500,
				EndMs:     14200,
				TextQuote: "get the hell out of my bar, you worthless piece of...",
				Notes:     "Profanity directed at another character.",
			},
			{
				Id:      "e2",
				Type:    EvidenceFrameSpan,
				StartMs: 31000,
				EndMs:   34500,
				Notes:   "Bottle with a clearly readable whiskey brand label in the foreground.",
			},
		},
		Labels: []*LabelDetection{
			{
				Code:        "PROFANITY_EXPLICIT",
				Severity:    2,
				Confidence:  0.95,
				Rationale:   "Uncensored strong profanity spoken on screen.",
				EvidenceIds: []string{"e1"},
				PolicyRefs:  []string{"BC-LANG-01"},
			},
			{
				Code:        "ALCOHOL_BRANDING",
				Severity:    3,
				Confidence:  0.88,
				Rationale:   "Identifiable alcohol brand shown prominently, which is prohibited product placement.",
				EvidenceIds: []string{"e2"},
				PolicyRefs:  []string{"BC-ADS-04"},
			},
		},
		PolicyHits: []*PolicyHit{
			{
				ReqCode:     "BC-ADS-04",
				Priority:    "P0",
				Why:         "Broadcast rules forbid visible alcohol brand placement outside marked advertising blocks.",
				EvidenceIds: []string{"e2"},
			},
		},
		Recommendations: []*RecommendationItem{
			{
				Action:            ActionBlur,
				Priority:          "P0",
				TargetEvidenceIds: []string{"e2"},
				Params:            map[string]string{"region": "bottle label", "start_ms": "31000", "end_ms": "34500"},
				ExpectedEffect:    "Removes the brand identification; scene becomes compliant for broadcast.",
			},
			{
				Action:            ActionBleep,
				Priority:          "P1",
				TargetEvidenceIds: []string{"e1"},
				ExpectedEffect:    "Masks the profanity; age rating can drop to 16+.",
			},
		},
	}
}
