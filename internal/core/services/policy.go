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

// Package services provides the business-logic layer between the pipeline
// commands and the relational store. This file defines the policy service:
// read-only rendering of the regulatory corpus and violation taxonomy into
// the text blocks the inference prompt is assembled from.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"gorm.io/gorm"
)

// PolicyService renders the seeded policy corpus and taxonomy for prompt
// assembly. The pipeline never writes through this service.
type PolicyService struct {
	db *gorm.DB
}

// NewPolicyService wraps the given store handle.
func NewPolicyService(db *gorm.DB) *PolicyService {
	return &PolicyService{db: db}
}

type requirementRow struct {
	ReqCode string
	Summary string
}

// PolicyText renders every requirement whose parent document's publisher
// matches the profile's pattern, one "[code] summary" line per clause.
func (s *PolicyService) PolicyText(ctx context.Context, publisherPattern string) (string, error) {
	var rows []requirementRow
	err := s.db.WithContext(ctx).
		Model(&model.PolicyRequirement{}).
		Select("policy_requirements.req_code AS req_code, policy_requirements.summary AS summary").
		Joins("JOIN policy_documents ON policy_documents.id = policy_requirements.document_id").
		Where("policy_documents.publisher LIKE ?", publisherPattern).
		Order("policy_requirements.req_code").
		Scan(&rows).Error
	if err != nil {
		return "", fmt.Errorf("failed to load policy requirements: %w", err)
	}

	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "[%s] %s\n", r.ReqCode, r.Summary)
	}
	return sb.String(), nil
}

// TaxonomyText renders the full violation taxonomy, one "code: title" line
// per label.
func (s *PolicyService) TaxonomyText(ctx context.Context) (string, error) {
	var labels []model.TaxonomyLabel
	err := s.db.WithContext(ctx).
		Order("code").
		Find(&labels).Error
	if err != nil {
		return "", fmt.Errorf("failed to load taxonomy labels: %w", err)
	}

	var sb strings.Builder
	for _, l := range labels {
		fmt.Fprintf(&sb, "%s: %s\n", l.Code, l.Title)
	}
	return sb.String(), nil
}
