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

package commands_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

func runFingerprint(identifier commands.Identifier, result *commands.TranscodeResult) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, result)

	cmd := commands.NewFingerprintCommand("fingerprint-audio", identifier)
	cmd.Execute(chainCtx)
	return chainCtx
}

func TestFingerprintIdentifiesAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title": "Song Title", "artist": "Artist"}`))
	}))
	defer srv.Close()

	path := writeSampleFile(t, "track.mp3")
	identifier := commands.NewHTTPIdentifier(cloud.Fingerprint{Endpoint: srv.URL, TimeoutSeconds: 5})
	chainCtx := runFingerprint(identifier, &commands.TranscodeResult{Path: path, MediaClass: commands.MediaClassAudio})

	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, "Song Title - Artist", chainCtx.Get(commands.GetFingerprintParameterName()))
}

// An unreachable identification service degrades to a warning; the
// transcode result still flows to the next stage.
func TestFingerprintDegradesOnServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	path := writeSampleFile(t, "track.mp3")
	identifier := commands.NewHTTPIdentifier(cloud.Fingerprint{Endpoint: srv.URL, TimeoutSeconds: 5})
	result := &commands.TranscodeResult{Path: path, MediaClass: commands.MediaClassAudio}
	chainCtx := runFingerprint(identifier, result)

	assert.False(t, chainCtx.HasErrors())
	assert.NotEmpty(t, chainCtx.GetWarnings())
	assert.Nil(t, chainCtx.Get(commands.GetFingerprintParameterName()))
	assert.Equal(t, result, chainCtx.Get(cor.CtxOut))
}

// No identifier configured means the stage is a pure pass-through.
func TestFingerprintSkipsWithoutIdentifier(t *testing.T) {
	result := &commands.TranscodeResult{Path: "/tmp/clip.mp4", MediaClass: commands.MediaClassVideo}
	chainCtx := runFingerprint(nil, result)

	assert.False(t, chainCtx.HasErrors())
	assert.Empty(t, chainCtx.GetWarnings())
	assert.Equal(t, result, chainCtx.Get(cor.CtxOut))
}

// A no-match answer from the service leaves no identification behind and
// no warning either.
func TestFingerprintNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title": "", "artist": ""}`))
	}))
	defer srv.Close()

	path := writeSampleFile(t, "track.mp3")
	identifier := commands.NewHTTPIdentifier(cloud.Fingerprint{Endpoint: srv.URL, TimeoutSeconds: 5})
	chainCtx := runFingerprint(identifier, &commands.TranscodeResult{Path: path, MediaClass: commands.MediaClassAudio})

	assert.False(t, chainCtx.HasErrors())
	assert.Empty(t, chainCtx.GetWarnings())
	assert.Nil(t, chainCtx.Get(commands.GetFingerprintParameterName()))
}
