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

// Tests for the rate-limit retry policy: attempt bounds, exponential wait
// growth, and the distinction between rate-limit errors and everything
// else.
package cloud_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

type scriptedModel struct {
	responses []string
	errors    []error
	calls     int
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	i := m.calls
	m.calls++
	if i < len(m.errors) && m.errors[i] != nil {
		return nil, m.errors[i]
	}
	text := ""
	if i < len(m.responses) {
		text = m.responses[i]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}, nil
}

func rateLimitErr() error {
	return fmt.Errorf("googleapi: Error 429: RESOURCE_EXHAUSTED")
}

// A model that rate-limits three times must be retried with exponentially
// growing waits and then succeed on the fourth call.
func TestGenerateTextRetriesRateLimits(t *testing.T) {
	model := &scriptedModel{
		responses: []string{"", "", "", "report text"},
		errors:    []error{rateLimitErr(), rateLimitErr(), rateLimitErr(), nil},
	}

	gen := cloud.NewRateLimitedGenerator(model, cloud.Retry{MaxAttempts: 5, BaseSeconds: 15, JitterSeconds: 5})
	var waits []time.Duration
	gen.Sleep = func(d time.Duration) { waits = append(waits, d) }
	gen.Jitter = func(maxMs int) int { return maxMs - 1 }

	out, err := gen.GenerateText(context.Background(), cloud.NewTextContent("analyze"))

	assert.NoError(t, err)
	assert.Equal(t, "report text", out)
	assert.Equal(t, 4, model.calls)
	assert.Len(t, waits, 3)
	for attempt, wait := range waits {
		base := time.Duration(15<<attempt) * time.Second
		assert.GreaterOrEqual(t, wait, base, "attempt %d waited less than the base backoff", attempt)
		assert.Less(t, wait, base+5*time.Second, "attempt %d waited past the jitter ceiling", attempt)
	}
}

// Exhausting every attempt returns the last rate-limit error and never
// exceeds MaxAttempts calls.
func TestGenerateTextBoundsAttempts(t *testing.T) {
	model := &scriptedModel{
		errors: []error{rateLimitErr(), rateLimitErr(), rateLimitErr(), rateLimitErr(), rateLimitErr(), rateLimitErr()},
	}

	gen := cloud.NewRateLimitedGenerator(model, cloud.Retry{MaxAttempts: 5, BaseSeconds: 1, JitterSeconds: 1})
	gen.Sleep = func(time.Duration) {}

	_, err := gen.GenerateText(context.Background(), cloud.NewTextContent("analyze"))

	assert.Error(t, err)
	assert.Equal(t, 5, model.calls)
	assert.Contains(t, err.Error(), "after 5 attempts")
}

// Non-rate-limit errors must propagate immediately without retrying.
func TestGenerateTextDoesNotRetryOtherErrors(t *testing.T) {
	model := &scriptedModel{
		errors: []error{fmt.Errorf("invalid argument")},
	}

	gen := cloud.NewRateLimitedGenerator(model, cloud.Retry{MaxAttempts: 5, BaseSeconds: 1, JitterSeconds: 1})
	gen.Sleep = func(time.Duration) { t.Fatal("must not sleep for a non-rate-limit error") }

	_, err := gen.GenerateText(context.Background(), cloud.NewTextContent("analyze"))

	assert.Error(t, err)
	assert.Equal(t, 1, model.calls)
}

// The OnWait hook observes each retry so jobs can surface the wait as a
// progress checkpoint.
func TestGenerateTextReportsWaits(t *testing.T) {
	model := &scriptedModel{
		responses: []string{"", "ok"},
		errors:    []error{rateLimitErr(), nil},
	}

	gen := cloud.NewRateLimitedGenerator(model, cloud.Retry{MaxAttempts: 3, BaseSeconds: 2, JitterSeconds: 1})
	gen.Sleep = func(time.Duration) {}
	var reported int
	gen.OnWait = func(attempt int, wait time.Duration) {
		reported++
		assert.Equal(t, 0, attempt)
		assert.GreaterOrEqual(t, wait, 2*time.Second)
	}

	out, err := gen.GenerateText(context.Background(), cloud.NewTextContent("analyze"))

	assert.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, reported)
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, cloud.IsRateLimited(nil))
	assert.False(t, cloud.IsRateLimited(fmt.Errorf("permission denied")))
	assert.True(t, cloud.IsRateLimited(rateLimitErr()))
	assert.True(t, cloud.IsRateLimited(genai.APIError{Code: 429}))
	assert.True(t, cloud.IsRateLimited(genai.APIError{Status: "RESOURCE_EXHAUSTED"}))
}
