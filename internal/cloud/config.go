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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients for the external services the
// pipeline orchestrates. This file centralizes every configurable parameter:
// external service endpoints, transcoding targets, upload polling bounds,
// the rate-limit retry policy, publishing profiles, model definitions, and
// prompt templates.
package cloud

import "google.golang.org/genai"

// PermissiveSafetySettings disables blocking for every harm category.
// Compliance analysis requires the model to look at exactly the content the
// filters exist to block, so moderation models opt in to these via the
// allow_restricted_content flag; models without the flag keep the service
// defaults.
var PermissiveSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Database holds the relational store connection settings.
type Database struct {
	DSN string `toml:"dsn"` // Postgres connection string for the result graph.
}

// Transcoder holds the normalization targets for submitted media.
type Transcoder struct {
	Path            string `toml:"path"`              // Path to the ffmpeg binary.
	VideoWidth      int    `toml:"video_width"`       // Bounded output frame width for video.
	VideoFPS        int    `toml:"video_fps"`         // Bounded output frame rate for video.
	AudioSampleRate int    `toml:"audio_sample_rate"` // Target sample rate; audio is downmixed to mono.
	TimeoutSeconds  int    `toml:"timeout_in_seconds"`
}

// Fingerprint holds the audio-identification service settings.
type Fingerprint struct {
	Endpoint       string `toml:"endpoint"` // HTTP endpoint of the identification service; empty disables the stage.
	TimeoutSeconds int    `toml:"timeout_in_seconds"`
}

// Uploader bounds the remote-asset readiness polling loop.
type Uploader struct {
	PollIntervalMs int `toml:"poll_interval_ms"`   // Fixed delay between readiness checks.
	TimeoutSeconds int `toml:"timeout_in_seconds"` // Global cap on the upload plus polling phase.
}

// Retry is the rate-limit retry policy for inference calls:
// wait = base * 2^attempt + jitter, at most MaxAttempts calls total.
type Retry struct {
	MaxAttempts   int `toml:"max_attempts"`
	BaseSeconds   int `toml:"base_seconds"`
	JitterSeconds int `toml:"jitter_seconds"`
}

// Profile names a regulatory regime and selects which slice of the policy
// corpus applies to assets published under it.
type Profile struct {
	Name             string `toml:"name"`
	PublisherPattern string `toml:"publisher_pattern"` // Matched against PolicyDocument.Publisher.
	Description      string `toml:"description"`
}

// PromptTemplates holds the instruction templates sent to the model.
type PromptTemplates struct {
	CompliancePrompt string `toml:"compliance"` // Template for the full compliance analysis request.
}

// EmbeddingModel configures one embedding model.
type EmbeddingModel struct {
	Model                string `toml:"model"`
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"`
}

// AgentModel configures one generative model used for analysis.
type AgentModel struct {
	Model                  string  `toml:"model"`
	SystemInstructions     string  `toml:"system_instructions"`
	Temperature            float32 `toml:"temperature"`
	TopP                   float32 `toml:"top_p"`
	TopK                   float32 `toml:"top_k"`
	MaxTokens              int32   `toml:"max_tokens"`
	OutputFormat           string  `toml:"output_format"` // "application/json" for structured output.
	RateLimit              int     `toml:"rate_limit"`    // Client-side requests per second.
	AllowRestrictedContent bool    `toml:"allow_restricted_content"`
}

// TopicSubscription configures one Pub/Sub job intake subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Storage configures the GCS staging surface.
type Storage struct {
	UploadBucket string `toml:"upload_bucket"` // Bucket API uploads are staged to before analysis.
}

// Config is the root configuration container, loaded hierarchically from
// .env.toml plus an environment-specific override file.
type Config struct {
	Application struct {
		Name            string `toml:"name"`
		GoogleProjectId string `toml:"google_project_id"`
		GoogleLocation  string `toml:"location"`
		GeminiAPIKey    string `toml:"gemini_api_key"` // Credential for the Gemini Developer API; GEMINI_API_KEY env when empty.
		WorkerPoolSize  int    `toml:"worker_pool_size"` // Number of concurrent analysis workers.
		DefaultProfile  string `toml:"default_profile"`  // Profile applied when a job names none.
		DefaultModel    string `toml:"default_model"`    // Agent model applied when a job names none.
	} `toml:"application"`
	Database           Database                     `toml:"database"`
	Storage            Storage                      `toml:"storage"`
	Transcoder         Transcoder                   `toml:"transcoder"`
	Fingerprint        Fingerprint                  `toml:"fingerprint"`
	Uploader           Uploader                     `toml:"uploader"`
	Retry              Retry                        `toml:"retry"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	EmbeddingModels    map[string]EmbeddingModel    `toml:"embedding_models"`
	AgentModels        map[string]AgentModel        `toml:"agent_models"`
	Profiles           map[string]Profile           `toml:"profiles"`
}

// NewConfig creates a Config with its map fields initialized so the TOML
// loader can populate them without nil checks.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]EmbeddingModel),
		AgentModels:        make(map[string]AgentModel),
		Profiles:           make(map[string]Profile),
	}
}
