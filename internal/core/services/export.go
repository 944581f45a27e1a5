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

// This file defines the reviewer export: a run's detections and
// recommendations rendered as an XLSX workbook for offline review.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportService renders analysis runs for human reviewers.
type ExportService struct {
	db *gorm.DB
}

// NewExportService wraps the store handle.
func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{db: db}
}

// RunWorkbook builds an XLSX workbook for one run: a summary header, a
// Detections sheet and a Recommendations sheet. The caller owns closing
// the returned file.
func (s *ExportService) RunWorkbook(ctx context.Context, runId uuid.UUID) (*excelize.File, error) {
	var run model.AnalysisRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		return nil, fmt.Errorf("run %s not found: %w", runId, err)
	}

	var detections []model.Detection
	if err := s.db.WithContext(ctx).Where("run_id = ?", runId).Order("code").Find(&detections).Error; err != nil {
		return nil, err
	}
	var recommendations []model.Recommendation
	if err := s.db.WithContext(ctx).Where("run_id = ?", runId).Order("priority").Find(&recommendations).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()

	const detSheet = "Detections"
	f.SetSheetName("Sheet1", detSheet)
	_ = f.SetSheetRow(detSheet, "A1", &[]interface{}{"Code", "Severity", "Confidence", "Rationale", "Evidence", "Policy Refs"})
	for i, d := range detections {
		cell := fmt.Sprintf("A%d", i+2)
		_ = f.SetSheetRow(detSheet, cell, &[]interface{}{
			d.Code, d.Severity, d.Confidence, d.Rationale, string(d.EvidenceIds), string(d.PolicyRefs),
		})
	}

	const recSheet = "Recommendations"
	_, err := f.NewSheet(recSheet)
	if err != nil {
		return nil, err
	}
	_ = f.SetSheetRow(recSheet, "A1", &[]interface{}{"Action", "Priority", "Params", "Expected Effect"})
	for i, r := range recommendations {
		cell := fmt.Sprintf("A%d", i+2)
		_ = f.SetSheetRow(recSheet, cell, &[]interface{}{
			r.Action, r.Priority, string(r.Params), r.ExpectedEffect,
		})
	}

	const sumSheet = "Summary"
	_, err = f.NewSheet(sumSheet)
	if err != nil {
		return nil, err
	}
	_ = f.SetSheetRow(sumSheet, "A1", &[]interface{}{"Run", run.Id.String()})
	_ = f.SetSheetRow(sumSheet, "A2", &[]interface{}{"Model", run.ModelName})
	_ = f.SetSheetRow(sumSheet, "A3", &[]interface{}{"Overall Risk", run.OverallRisk})
	_ = f.SetSheetRow(sumSheet, "A4", &[]interface{}{"Confidence", run.OverallConfidence})
	_ = f.SetSheetRow(sumSheet, "A5", &[]interface{}{"Created", run.CreatedAt.Format("2006-01-02 15:04:05")})

	return f, nil
}
