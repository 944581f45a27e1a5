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

// Package model defines the core data structures for the application. This
// file contains the transient compliance report: the structured document the
// generative model returns for one analyzed asset. These structs exist only
// in memory between the validation and persistence stages; the persistence
// writer maps them onto the durable entities in entities.go.
package model

import "fmt"

// ReportSchemaVersion identifies the report shape the model is instructed
// to produce and the validator accepts.
const ReportSchemaVersion = "1.1"

// Risk levels, ordered from harmless to unpublishable.
const (
	RiskSafe     = "SAFE"
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Evidence kinds accepted by the validator.
const (
	EvidenceTranscriptSpan = "transcript_span"
	EvidenceAudioSpan      = "audio_span"
	EvidenceFrameSpan      = "frame_span"
	EvidenceMetadata       = "metadata"
)

// Remediation actions the model may recommend.
const (
	ActionCut         = "CUT"
	ActionBleep       = "BLEEP"
	ActionBlur        = "BLUR"
	ActionAgeGate     = "AGE_GATE"
	ActionDisclaimer  = "DISCLAIMER"
	ActionRemoveLogo  = "REMOVE_LOGO"
	ActionLegalReview = "LEGAL_REVIEW"
)

// OverallAssessment is the report's top-level verdict for the whole asset.
type OverallAssessment struct {
	RiskLevel  string  `json:"risk_level"` // One of the Risk* constants.
	Confidence float64 `json:"confidence"` // Model confidence in the verdict, 0.0 to 1.0.
	AgeRating  string  `json:"age_rating"` // Suggested audience rating, e.g. "16+".
	Summary    string  `json:"summary"`    // One-paragraph plain-language justification.
}

// EvidenceItem is one cited span or artifact supporting a finding. The Id
// is transient and textual ("e1", "e2"); it is only meaningful inside this
// report, where labels and policy hits reference it. The persistence writer
// exchanges it for a durable identifier.
type EvidenceItem struct {
	Id        string `json:"id"`
	Type      string `json:"type"` // One of the Evidence* constants.
	StartMs   int64  `json:"start_ms"`
	EndMs     int64  `json:"end_ms"`
	TextQuote string `json:"text_quote,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// LabelDetection is one taxonomy-coded violation finding.
type LabelDetection struct {
	Code        string   `json:"code"`         // A TaxonomyLabel code.
	Severity    int      `json:"severity"`     // 0 (informational) to 3 (blocking).
	Confidence  float64  `json:"confidence"`   // 0.0 to 1.0.
	Rationale   string   `json:"rationale"`    // Why the model applied this label.
	EvidenceIds []string `json:"evidence_ids"` // Transient evidence ids this label cites.
	PolicyRefs  []string `json:"policy_refs,omitempty"`
}

// PolicyHit ties a finding to a specific regulatory requirement.
type PolicyHit struct {
	ReqCode     string   `json:"req_code"`
	Priority    string   `json:"priority"` // "P0" (must fix) to "P2" (advisory).
	Why         string   `json:"why"`
	EvidenceIds []string `json:"evidence_ids,omitempty"`
}

// RecommendationItem is one remediation action the model proposes.
type RecommendationItem struct {
	Action            string            `json:"action"`   // One of the Action* constants.
	Priority          string            `json:"priority"` // "P0" to "P2".
	TargetEvidenceIds []string          `json:"target_evidence_ids,omitempty"`
	Params            map[string]string `json:"params,omitempty"` // Action parameters, e.g. cut offsets.
	ExpectedEffect    string            `json:"expected_effect,omitempty"`
}

// ComplianceReport is the full structured verdict for one asset, exactly as
// parsed from the model response after fence stripping.
type ComplianceReport struct {
	SchemaVersion   string                `json:"schema_version"`
	Overall         *OverallAssessment    `json:"overall"`
	Evidence        []*EvidenceItem       `json:"evidence"`
	Labels          []*LabelDetection     `json:"labels"`
	PolicyHits      []*PolicyHit          `json:"policy_hits"`
	Recommendations []*RecommendationItem `json:"recommendations"`
}

// Validate checks the structural invariants the rest of the pipeline relies
// on. It does not verify taxonomy codes against the store; unknown codes are
// a data-quality concern for reviewers, not a parse failure.
func (r *ComplianceReport) Validate() error {
	if r.Overall == nil {
		return fmt.Errorf("report missing overall assessment")
	}
	if !validRiskLevel(r.Overall.RiskLevel) {
		return fmt.Errorf("invalid overall risk level: %q", r.Overall.RiskLevel)
	}
	if r.Overall.Confidence < 0.0 || r.Overall.Confidence > 1.0 {
		return fmt.Errorf("overall confidence out of range: %f", r.Overall.Confidence)
	}
	for _, l := range r.Labels {
		if l.Severity < 0 || l.Severity > 3 {
			return fmt.Errorf("label %q severity out of range: %d", l.Code, l.Severity)
		}
		if l.Confidence < 0.0 || l.Confidence > 1.0 {
			return fmt.Errorf("label %q confidence out of range: %f", l.Code, l.Confidence)
		}
	}
	return nil
}

func validRiskLevel(level string) bool {
	switch level {
	case RiskSafe, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// AnalysisResult is the job's terminal output on success: the report plus
// the durable asset identifier and the human-example context that informed
// the verdict. Failed jobs return ErrorResult instead.
type AnalysisResult struct {
	AssetId      string            `json:"asset_id"`
	RunId        string            `json:"run_id,omitempty"` // Empty when persistence degraded.
	Report       *ComplianceReport `json:"report"`
	HumanContext string            `json:"human_context,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// ErrorResult is the only permitted failure shape for a job's output.
type ErrorResult struct {
	Error string `json:"error"`
}
