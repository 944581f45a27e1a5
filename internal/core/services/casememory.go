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

// This file defines the case-memory service: the similarity store of prior
// human-corrected cases. Context retrieval reads it through a top-K
// nearest-neighbor search over the stored embedding vectors; the feedback
// recorder writes it from reviewer notes, closing the retrieval loop for
// future runs. The corpus is human-curated and small, so the search is an
// in-process distance scan rather than a database extension.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultTopK is the number of prior cases retrieved per query.
const DefaultTopK = 5

// NoExamplesPlaceholder is returned when retrieval finds or can reach
// nothing; the prompt template tolerates it.
const NoExamplesPlaceholder = "no examples found"

// CaseMemoryService searches and records embedded prior cases.
type CaseMemoryService struct {
	db       *gorm.DB
	embedder cloud.Embedder
}

// NewCaseMemoryService wraps the store handle and the embedding model.
func NewCaseMemoryService(db *gorm.DB, embedder cloud.Embedder) *CaseMemoryService {
	return &CaseMemoryService{db: db, embedder: embedder}
}

type scoredCase struct {
	memory   model.CaseMemory
	distance float64
}

// FindSimilarText embeds the query and renders the top-K closest prior
// cases, one "CASE: <text> | VERDICT: <risk>" line each. Callers treat any
// error as "no examples" rather than failing the job.
func (s *CaseMemoryService) FindSimilarText(ctx context.Context, query string, k int) (string, error) {
	if s.embedder == nil {
		return "", fmt.Errorf("no embedder configured")
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	var memories []model.CaseMemory
	if err := s.db.WithContext(ctx).Find(&memories).Error; err != nil {
		return "", fmt.Errorf("failed to load case memories: %w", err)
	}

	scored := make([]scoredCase, 0, len(memories))
	for _, m := range memories {
		var vec []float64
		if err := json.Unmarshal(m.Embedding, &vec); err != nil || len(vec) != len(queryVec) {
			continue
		}
		scored = append(scored, scoredCase{memory: m, distance: euclideanDistance(queryVec, vec)})
	}
	if len(scored) == 0 {
		return NoExamplesPlaceholder, nil
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].distance < scored[j].distance })
	if len(scored) > k {
		scored = scored[:k]
	}

	var sb strings.Builder
	for _, sc := range scored {
		fmt.Fprintf(&sb, "CASE: %s | VERDICT: %s\n", sc.memory.Text, verdictOf(&sc.memory))
	}
	return sb.String(), nil
}

// RecordFeedback embeds the review's note and inserts a case-memory row
// tagged with the corrected risk level. The review row itself is already
// committed by the caller; an error here means the review simply gets no
// retrievable case.
func (s *CaseMemoryService) RecordFeedback(ctx context.Context, review *model.HumanReview) (*model.CaseMemory, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if strings.TrimSpace(review.Notes) == "" {
		return nil, fmt.Errorf("review %s has no note to embed", review.Id)
	}

	vec, err := s.embedder.EmbedText(ctx, review.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to embed review note: %w", err)
	}
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(map[string]string{"verdict": review.FinalRisk})
	if err != nil {
		return nil, err
	}

	memory := model.NewCaseMemory(&review.Id, review.Notes)
	memory.Embedding = datatypes.JSON(embJSON)
	memory.Meta = datatypes.JSON(metaJSON)

	if err := s.db.WithContext(ctx).Create(memory).Error; err != nil {
		return nil, fmt.Errorf("failed to store case memory: %w", err)
	}
	return memory, nil
}

func verdictOf(m *model.CaseMemory) string {
	var meta map[string]string
	if err := json.Unmarshal(m.Meta, &meta); err == nil {
		if v, ok := meta["verdict"]; ok && v != "" {
			return v
		}
	}
	return "UNKNOWN"
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
