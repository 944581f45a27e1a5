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

// This file contains general-purpose utilities for the cloud package:
// hierarchical TOML configuration loading and the rate-limit-aware text
// generation helper the inference stage is built on.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// Configuration loading constants.
const (
	ConfigFileBaseName  = ".env"              // Base name for configuration files (".env.toml").
	ConfigFileExtension = ".toml"             // File extension for configuration files.
	ConfigSeparator     = "."                 // Separator in override file names (".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Env var naming the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Env var naming the runtime ("local", "test", "prod").
)

// Retry policy defaults, applied when the config leaves the policy empty.
const (
	DefaultMaxAttempts   = 5
	DefaultBaseSeconds   = 15
	DefaultJitterSeconds = 5
)

// fileExists checks whether a file exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates baseConfig hierarchically: the base .env.toml first,
// then the environment-specific override file on top of it. Directory and
// runtime come from the GCP_CONFIG_PREFIX and GCP_RUNTIME env vars.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}

// GenerativeModel is the minimal generation surface the pipeline consumes.
// QuotaAwareGenerativeAIModel implements it for production; tests substitute
// scripted fakes.
type GenerativeModel interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// IsRateLimited reports whether err is a rate-limit signal from the
// inference service. Only these errors are retried; everything else
// propagates immediately.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// RateLimitedGenerator wraps a GenerativeModel with the bounded
// exponential-backoff retry policy for rate-limit responses:
// wait = base * 2^attempt + jitter[0, jitter_seconds), at most MaxAttempts
// calls total. Sleep and Jitter are injectable so tests can observe the
// exact waits without waiting.
type RateLimitedGenerator struct {
	Model  GenerativeModel
	Policy Retry

	Sleep  func(d time.Duration)                 // Defaults to time.Sleep.
	Jitter func(maxMs int) int                   // Returns milliseconds in [0, maxMs); defaults to rand.Intn.
	OnWait func(attempt int, wait time.Duration) // Progress hook invoked before each retry sleep.

	InputTokenCounter  metric.Int64Counter
	OutputTokenCounter metric.Int64Counter
	RetryCounter       metric.Int64Counter
}

// NewRateLimitedGenerator builds a generator over model with the given
// policy, filling in defaults for any zero policy fields.
func NewRateLimitedGenerator(model GenerativeModel, policy Retry) *RateLimitedGenerator {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseSeconds <= 0 {
		policy.BaseSeconds = DefaultBaseSeconds
	}
	if policy.JitterSeconds <= 0 {
		policy.JitterSeconds = DefaultJitterSeconds
	}
	return &RateLimitedGenerator{Model: model, Policy: policy}
}

// GenerateText invokes the model and returns the concatenated text of all
// candidates. Rate-limit errors are retried per the policy; any other error
// returns immediately. Exhausting all attempts returns the last rate-limit
// error.
func (g *RateLimitedGenerator) GenerateText(ctx context.Context, content []*genai.Content) (string, error) {
	sleep := g.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	jitter := g.Jitter
	if jitter == nil {
		jitter = rand.Intn
	}

	var lastErr error
	for attempt := 0; attempt < g.Policy.MaxAttempts; attempt++ {
		resp, err := g.Model.GenerateContent(ctx, content)
		if err == nil {
			if resp.UsageMetadata != nil {
				if g.InputTokenCounter != nil {
					g.InputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
				}
				if g.OutputTokenCounter != nil {
					g.OutputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
				}
			}
			var value string
			for _, candidate := range resp.Candidates {
				if candidate.Content != nil {
					for _, part := range candidate.Content.Parts {
						value += part.Text
					}
				}
			}
			return value, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}
		lastErr = err
		if attempt == g.Policy.MaxAttempts-1 {
			break
		}
		if g.RetryCounter != nil {
			g.RetryCounter.Add(ctx, 1)
		}
		wait := time.Duration(g.Policy.BaseSeconds<<attempt)*time.Second +
			time.Duration(jitter(g.Policy.JitterSeconds*1000))*time.Millisecond
		if g.OnWait != nil {
			g.OnWait(attempt, wait)
		}
		sleep(wait)
	}
	return "", fmt.Errorf("generation rate limited after %d attempts: %w", g.Policy.MaxAttempts, lastErr)
}

// NewTextContent builds the content slice for a plain text prompt.
func NewTextContent(in string) []*genai.Content {
	return genai.Text(in)
}

// NewFileData builds a file reference part for an uploaded asset.
func NewFileData(uri string, mimeType string) *genai.FileData {
	return &genai.FileData{FileURI: uri, MIMEType: mimeType}
}
