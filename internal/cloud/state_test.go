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

package cloud_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

// The Files service behind the upload stage is only served by the Gemini
// Developer API, so the client configuration must never select the Vertex
// backend.
func TestGenAIClientConfigUsesDeveloperBackend(t *testing.T) {
	config := cloud.NewConfig()
	config.Application.GeminiAPIKey = "configured-key"

	cc := cloud.GenAIClientConfig(config)
	assert.Equal(t, genai.BackendGeminiAPI, cc.Backend)
	assert.Equal(t, "configured-key", cc.APIKey)
}

func TestGenAIClientConfigFallsBackToEnvKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cc := cloud.GenAIClientConfig(cloud.NewConfig())
	assert.Equal(t, genai.BackendGeminiAPI, cc.Backend)
	assert.Equal(t, "env-key", cc.APIKey)
}
