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

// This file defines the fingerprint stage: a best-effort call to an
// external audio-identification service. A match enriches the retrieval
// query and the prompt with "Title - Artist"; any failure at all, including
// no service being configured, is treated as "no identification available"
// and the job continues.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
)

// GetFingerprintParameterName returns the canonical context key for the
// identification text. Absent when nothing was identified.
func GetFingerprintParameterName() string {
	return "__FINGERPRINT__"
}

// Identifier is the audio-identification collaborator.
type Identifier interface {
	// Identify returns a free-text identification for the media at path,
	// or an empty string when the service found no match.
	Identify(ctx cor.Context, path string) (string, error)
}

// HTTPIdentifier posts the media file to an identification service and
// reads back a title/artist pair.
type HTTPIdentifier struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPIdentifier builds an identifier for the configured endpoint with
// a bounded request timeout.
func NewHTTPIdentifier(config cloud.Fingerprint) *HTTPIdentifier {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPIdentifier{
		Endpoint: config.Endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type identifyResponse struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Identify uploads the file as multipart form data and renders the
// service's answer as "Title - Artist".
func (h *HTTPIdentifier) Identify(chainCtx cor.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media for identification: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(chainCtx.GetContext(), http.MethodPost, h.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identification service returned status %d", resp.StatusCode)
	}

	var out identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Title == "" {
		return "", nil
	}
	if out.Artist == "" {
		return out.Title, nil
	}
	return fmt.Sprintf("%s - %s", out.Title, out.Artist), nil
}

// FingerprintCommand is the best-effort identification stage. It passes its
// input through unchanged and stashes any identification text under its own
// context key.
type FingerprintCommand struct {
	cor.BaseCommand
	identifier Identifier
}

// NewFingerprintCommand builds the stage. A nil identifier disables it
// without changing the chain shape.
func NewFingerprintCommand(name string, identifier Identifier) *FingerprintCommand {
	return &FingerprintCommand{
		BaseCommand: *cor.NewDegradableCommand(name),
		identifier:  identifier,
	}
}

// Execute tries to identify the transcoded media. This stage never fails
// the job: errors become warnings and text assets are skipped outright.
func (c *FingerprintCommand) Execute(chainCtx cor.Context) {
	result := chainCtx.Get(c.GetInputParam()).(*TranscodeResult)
	// Pass-through regardless of outcome.
	chainCtx.Add(c.GetOutputParam(), result)

	if c.identifier == nil || result.MediaClass == MediaClassText {
		return
	}
	chainCtx.Progress("identifying audio")

	identification, err := c.identifier.Identify(chainCtx, result.Path)
	if err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddWarning(c.GetName(), fmt.Errorf("audio identification unavailable: %w", err))
		return
	}
	if identification == "" {
		return
	}

	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	chainCtx.Add(GetFingerprintParameterName(), identification)
}
