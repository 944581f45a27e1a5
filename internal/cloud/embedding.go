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

// This file abstracts the embedding operation used by case-memory search
// and the feedback recorder. Both degrade gracefully when embedding fails,
// so the interface stays deliberately small and easy to fake in tests.
package cloud

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder turns free text into a vector for nearest-neighbor retrieval.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// GenAIEmbedder implements Embedder over the genai embedding models.
type GenAIEmbedder struct {
	Models    *genai.Models
	ModelName string
}

var _ Embedder = (*GenAIEmbedder)(nil)

// NewGenAIEmbedder builds an embedder for the named model.
func NewGenAIEmbedder(models *genai.Models, modelName string) *GenAIEmbedder {
	return &GenAIEmbedder{Models: models, ModelName: modelName}
}

// EmbedText returns the embedding vector for the given text.
func (e *GenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.Models.EmbedContent(ctx, e.ModelName, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding model %s returned no values", e.ModelName)
	}
	out := make([]float64, len(resp.Embeddings[0].Values))
	for i, v := range resp.Embeddings[0].Values {
		out[i] = float64(v)
	}
	return out, nil
}
