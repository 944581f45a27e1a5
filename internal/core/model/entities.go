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

// This file defines the durable entities of the compliance result graph.
// The graph is append-only: nothing is updated after creation except asset
// metadata enrichment and the verification status on a human review. An
// asset owns its evidence rows; a run owns its detections and
// recommendations; a human review optionally feeds one case-memory row.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MediaAsset is one submitted file under analysis.
type MediaAsset struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Filename  string         `gorm:"not null" json:"filename"`
	SourceURI string         `json:"source_uri"` // Local path or gs:// location the file came from.
	MediaType string         `json:"media_type"` // "audio", "video" or "text".
	Duration  float64        `json:"duration"`   // Seconds, zero when unknown.
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (MediaAsset) TableName() string { return "media_assets" }

// NewMediaAsset creates an asset row for a submitted file.
func NewMediaAsset(filename string, sourceURI string, mediaType string) *MediaAsset {
	return &MediaAsset{
		Id:        uuid.New(),
		Filename:  filename,
		SourceURI: sourceURI,
		MediaType: mediaType,
	}
}

// AnalysisRun is one inference execution against an asset. A failed
// pipeline produces no run row.
type AnalysisRun struct {
	Id                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssetId           uuid.UUID      `gorm:"type:uuid;not null;index" json:"asset_id"`
	ModelName         string         `gorm:"not null" json:"model_name"`
	RawReport         datatypes.JSON `json:"raw_report"` // The normalized report exactly as parsed.
	OverallRisk       string         `gorm:"index" json:"overall_risk"`
	OverallConfidence float64        `json:"overall_confidence"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AnalysisRun) TableName() string { return "analysis_runs" }

// NewAnalysisRun creates a run row for a completed inference.
func NewAnalysisRun(assetId uuid.UUID, modelName string) *AnalysisRun {
	return &AnalysisRun{Id: uuid.New(), AssetId: assetId, ModelName: modelName}
}

// Evidence is a durable cited span supporting one or more detections. It
// belongs to the asset, not the run, so later runs over the same asset can
// reference the same material.
type Evidence struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssetId   uuid.UUID `gorm:"type:uuid;not null;index" json:"asset_id"`
	Kind      string    `gorm:"not null" json:"kind"` // transcript_span, audio_span, frame_span or metadata.
	StartMs   int64     `json:"start_ms"`
	EndMs     int64     `json:"end_ms"`
	TextQuote string    `json:"text_quote"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Evidence) TableName() string { return "evidence_items" }

// Detection is a durable taxonomy-coded violation finding. EvidenceIds
// holds resolved durable evidence identifiers; transient references the
// persistence writer could not resolve are absent.
type Detection struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunId       uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	Code        string         `gorm:"not null;index" json:"code"`
	Severity    int            `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Rationale   string         `json:"rationale"`
	EvidenceIds datatypes.JSON `json:"evidence_ids"`
	PolicyRefs  datatypes.JSON `json:"policy_refs"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Detection) TableName() string { return "detections" }

// Recommendation is a durable remediation proposal attached to a run.
type Recommendation struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunId          uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	Action         string         `gorm:"not null" json:"action"`
	Priority       string         `json:"priority"`
	Params         datatypes.JSON `json:"params"`
	ExpectedEffect string         `json:"expected_effect"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Recommendation) TableName() string { return "recommendations" }

// PolicyDocument is one regulatory source text. Read-only to the pipeline;
// rows are seeded out of band.
type PolicyDocument struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Publisher string    `gorm:"not null;index" json:"publisher"`
	Title     string    `json:"title"`
	Version   string    `json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PolicyDocument) TableName() string { return "policy_documents" }

// PolicyRequirement is one enforceable clause of a policy document.
type PolicyRequirement struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentId      uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	ReqCode         string    `gorm:"not null;uniqueIndex" json:"req_code"`
	RequirementType string    `json:"requirement_type"`
	RiskFloor       string    `json:"risk_floor"` // Minimum overall risk a hit on this clause implies.
	Summary         string    `json:"summary"`
	FullText        string    `json:"full_text"`
}

func (PolicyRequirement) TableName() string { return "policy_requirements" }

// TaxonomyLabel enumerates the permissible detection codes. Read-only to
// the pipeline.
type TaxonomyLabel struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code            string    `gorm:"not null;uniqueIndex" json:"code"`
	GroupName       string    `json:"group_name"`
	Title           string    `json:"title"`
	DefaultSeverity int       `json:"default_severity"`
}

func (TaxonomyLabel) TableName() string { return "taxonomy_labels" }

// Human review verification states.
const (
	ReviewPending  = "pending"
	ReviewVerified = "verified"
)

// HumanReview is a reviewer's correction of a run's verdict. Status is the
// one mutable field on the row.
type HumanReview struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunId          *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	FinalRisk      string         `gorm:"not null" json:"final_risk"`
	Notes          string         `json:"notes"`
	VerifiedReport datatypes.JSON `json:"verified_report"`
	Status         string         `gorm:"default:pending" json:"status"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (HumanReview) TableName() string { return "human_reviews" }

// NewHumanReview creates a pending review row.
func NewHumanReview(runId *uuid.UUID, finalRisk string, notes string) *HumanReview {
	return &HumanReview{
		Id:        uuid.New(),
		RunId:     runId,
		FinalRisk: finalRisk,
		Notes:     notes,
		Status:    ReviewPending,
	}
}

// CaseMemory is one retrievable prior example: free text, its embedding
// vector, and metadata such as the corrected risk level. Rows are written
// by the feedback recorder and read back by nearest-neighbor search during
// context retrieval.
type CaseMemory struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReviewId   *uuid.UUID     `gorm:"type:uuid;index" json:"review_id,omitempty"`
	MemoryType string         `gorm:"default:case" json:"memory_type"`
	Text       string         `gorm:"not null" json:"text"`
	Embedding  datatypes.JSON `json:"embedding"` // JSON array of float values.
	Meta       datatypes.JSON `json:"meta"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (CaseMemory) TableName() string { return "case_memories" }

// NewCaseMemory creates a case-memory row tied to the review it came from.
func NewCaseMemory(reviewId *uuid.UUID, text string) *CaseMemory {
	return &CaseMemory{Id: uuid.New(), ReviewId: reviewId, MemoryType: "case", Text: text}
}
