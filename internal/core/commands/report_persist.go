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

// This file defines the persistence stage. A validated report is fanned
// out onto the durable result graph in one transaction: the asset row, the
// run row carrying the raw report, the evidence rows, and the detections
// and recommendations whose transient evidence references ("e1") are
// exchanged for the durable row identifiers minted in the same
// transaction. A store failure degrades rather than kills the job; the
// report already exists and is still returned to the caller, just without
// a run identifier.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GetAnalysisResultParameterName returns the canonical context key for the
// job's terminal result.
func GetAnalysisResultParameterName() string {
	return "__ANALYSIS_RESULT__"
}

// ReportPersist writes the parsed report to the relational store.
type ReportPersist struct {
	cor.BaseCommand
	db *gorm.DB
}

// NewReportPersist is the constructor for the ReportPersist command.
func NewReportPersist(name string, db *gorm.DB) *ReportPersist {
	return &ReportPersist{BaseCommand: *cor.NewDegradableCommand(name), db: db}
}

// Execute persists the result graph and emits the AnalysisResult. The
// result is emitted even when the transaction fails, with an empty RunId.
func (c *ReportPersist) Execute(chainCtx cor.Context) {
	report := chainCtx.Get(c.GetInputParam()).(*model.ComplianceReport)
	req := chainCtx.Get(GetJobRequestParameterName()).(*model.JobRequest)
	chainCtx.Progress("saving compliance report")

	mediaType := ""
	if tr, ok := chainCtx.Get(GetTranscodeResultParameterName()).(*TranscodeResult); ok {
		mediaType = tr.MediaClass
	}

	sourceURI := req.SourceURI
	if sourceURI == "" {
		sourceURI = req.FilePath
	}
	asset := model.NewMediaAsset(req.Filename, sourceURI, mediaType)
	run := model.NewAnalysisRun(asset.Id, req.ModelName)

	result := &model.AnalysisResult{
		AssetId: asset.Id.String(),
		Report:  report,
	}
	if retrieved, ok := chainCtx.Get(GetRetrievedContextParameterName()).(*RetrievedContext); ok {
		result.HumanContext = retrieved.HumanExamples
	}
	chainCtx.Add(GetAnalysisResultParameterName(), result)
	chainCtx.Add(c.GetOutputParam(), result)

	if err := c.persist(chainCtx, report, asset, run); err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddWarning(c.GetName(), fmt.Errorf("failed to persist report, returning unsaved result: %w", err))
		return
	}

	result.RunId = run.Id.String()
	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
}

// persist writes the whole result graph in one transaction so a partial
// report can never be observed by readers.
func (c *ReportPersist) persist(chainCtx cor.Context, report *model.ComplianceReport, asset *model.MediaAsset, run *model.AnalysisRun) error {
	rawReport, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	run.RawReport = datatypes.JSON(rawReport)
	run.OverallRisk = report.Overall.RiskLevel
	run.OverallConfidence = report.Overall.Confidence

	return c.db.WithContext(chainCtx.GetContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(asset).Error; err != nil {
			return fmt.Errorf("failed to create asset row: %w", err)
		}
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to create run row: %w", err)
		}

		// Mint durable evidence rows, remembering which transient id
		// ("e1") each one replaces.
		evidenceIds := make(map[string]uuid.UUID, len(report.Evidence))
		for _, e := range report.Evidence {
			row := &model.Evidence{
				Id:        uuid.New(),
				AssetId:   asset.Id,
				Kind:      e.Type,
				StartMs:   e.StartMs,
				EndMs:     e.EndMs,
				TextQuote: e.TextQuote,
				Notes:     e.Notes,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to create evidence row: %w", err)
			}
			evidenceIds[e.Id] = row.Id
		}

		for _, l := range report.Labels {
			refs, err := json.Marshal(l.PolicyRefs)
			if err != nil {
				return err
			}
			cited, err := json.Marshal(resolveEvidence(l.EvidenceIds, evidenceIds))
			if err != nil {
				return err
			}
			row := &model.Detection{
				Id:          uuid.New(),
				RunId:       run.Id,
				Code:        l.Code,
				Severity:    l.Severity,
				Confidence:  l.Confidence,
				Rationale:   l.Rationale,
				EvidenceIds: datatypes.JSON(cited),
				PolicyRefs:  datatypes.JSON(refs),
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to create detection row: %w", err)
			}
		}

		for _, r := range report.Recommendations {
			params, err := json.Marshal(r.Params)
			if err != nil {
				return err
			}
			row := &model.Recommendation{
				Id:             uuid.New(),
				RunId:          run.Id,
				Action:         r.Action,
				Priority:       r.Priority,
				Params:         datatypes.JSON(params),
				ExpectedEffect: r.ExpectedEffect,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to create recommendation row: %w", err)
			}
		}
		return nil
	})
}

// resolveEvidence exchanges transient report ids for durable row ids,
// silently dropping references to evidence the report never declared.
func resolveEvidence(transient []string, minted map[string]uuid.UUID) []string {
	resolved := make([]string, 0, len(transient))
	for _, id := range transient {
		if durable, ok := minted[id]; ok {
			resolved = append(resolved, durable.String())
		}
	}
	return resolved
}
