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

package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/services"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestRunWorkbookRendersRun(t *testing.T) {
	db := test.OpenTestDB(t,
		&model.MediaAsset{}, &model.AnalysisRun{},
		&model.Detection{}, &model.Recommendation{})

	asset := model.NewMediaAsset("clip.mp4", "/tmp/clip.mp4", "video")
	assert.NoError(t, db.Create(asset).Error)

	run := model.NewAnalysisRun(asset.Id, "compliance-pro")
	run.OverallRisk = model.RiskHigh
	run.OverallConfidence = 0.91
	assert.NoError(t, db.Create(run).Error)

	assert.NoError(t, db.Create(&model.Detection{
		Id: uuid.New(), RunId: run.Id, Code: "ALCOHOL_BRANDING",
		Severity: 3, Confidence: 0.88, Rationale: "identifiable brand",
		EvidenceIds: datatypes.JSON([]byte(`["abc"]`)),
		PolicyRefs:  datatypes.JSON([]byte(`["BC-ADS-04"]`)),
	}).Error)
	assert.NoError(t, db.Create(&model.Recommendation{
		Id: uuid.New(), RunId: run.Id, Action: model.ActionBlur,
		Priority: "P0", ExpectedEffect: "removes brand identification",
	}).Error)

	svc := services.NewExportService(db)
	workbook, err := svc.RunWorkbook(context.Background(), run.Id)
	assert.NoError(t, err)
	defer func() { _ = workbook.Close() }()

	code, err := workbook.GetCellValue("Detections", "A2")
	assert.NoError(t, err)
	assert.Equal(t, "ALCOHOL_BRANDING", code)

	action, err := workbook.GetCellValue("Recommendations", "A2")
	assert.NoError(t, err)
	assert.Equal(t, model.ActionBlur, action)

	risk, err := workbook.GetCellValue("Summary", "B3")
	assert.NoError(t, err)
	assert.Equal(t, model.RiskHigh, risk)
}

func TestRunWorkbookUnknownRun(t *testing.T) {
	db := test.OpenTestDB(t,
		&model.MediaAsset{}, &model.AnalysisRun{},
		&model.Detection{}, &model.Recommendation{})

	svc := services.NewExportService(db)
	_, err := svc.RunWorkbook(context.Background(), uuid.New())
	assert.Error(t, err)
}
