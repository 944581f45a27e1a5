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

// This file decorates the Generative AI model with client-side rate
// limiting. The decorator keeps the application inside its per-minute
// request quota before a request ever leaves the process; the separate
// RateLimitedGenerator in utils.go handles the server telling us we went
// too fast anyway. Keeping the two concerns apart keeps the retry policy
// testable without a limiter in the way.
package cloud

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel wraps a genai model handle with a token-bucket
// rate limiter. It implements GenerativeModel.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Generation parameters, including safety settings.
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
}

var _ GenerativeModel = (*QuotaAwareGenerativeAIModel)(nil)

// NewQuotaAwareModel wraps the given model handle and generation config
// with a limiter allowing requestsPerSecond calls with an equal burst.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// GenerateContent blocks until the limiter grants a slot, then issues a
// single generation request. Errors are returned as-is; retry policy is the
// caller's concern.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}
