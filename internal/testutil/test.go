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

// Package test provides shared fixtures for the test suite: scripted fakes
// for the external model and file-store surfaces, an in-memory relational
// store, and canned inputs such as report JSON and storage notifications.
package test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"google.golang.org/genai"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// StateManager caches the test configuration so the TOML files are read
// once per test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the config loader at the test configuration files.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// OpenTestDB opens a fresh in-memory relational store with the given
// entities migrated.
func OpenTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := db.AutoMigrate(entities...); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

// ScriptedModel is a GenerativeModel fake that replays a fixed sequence of
// responses and errors, recording how many calls it received.
type ScriptedModel struct {
	Responses []string
	Errors    []error
	Calls     int
}

// GenerateContent returns the next scripted response or error.
func (m *ScriptedModel) GenerateContent(_ context.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	i := m.Calls
	m.Calls++
	if i < len(m.Errors) && m.Errors[i] != nil {
		return nil, m.Errors[i]
	}
	text := ""
	if i < len(m.Responses) {
		text = m.Responses[i]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}, nil
}

// RateLimitError builds an error the retry policy recognizes as a
// rate-limit signal.
func RateLimitError() error {
	return fmt.Errorf("googleapi: Error 429: RESOURCE_EXHAUSTED")
}

// FakeFileStore is a FileStore fake with scriptable state transitions and
// a record of deletions.
type FakeFileStore struct {
	States  []genai.FileState // State reported by successive Get calls.
	GetErr  error
	Deleted []string
	gets    int
}

// Upload returns a handle in the PROCESSING state.
func (s *FakeFileStore) Upload(_ context.Context, path string, mimeType string, displayName string) (*cloud.RemoteFile, error) {
	return &cloud.RemoteFile{
		Name:     "files/" + displayName,
		URI:      "https://example.com/files/" + displayName,
		MIMEType: mimeType,
		State:    genai.FileStateProcessing,
	}, nil
}

// Get replays the scripted state sequence, repeating the last entry.
func (s *FakeFileStore) Get(_ context.Context, name string) (*cloud.RemoteFile, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	state := genai.FileStateProcessing
	if len(s.States) > 0 {
		i := s.gets
		if i >= len(s.States) {
			i = len(s.States) - 1
		}
		state = s.States[i]
	}
	s.gets++
	return &cloud.RemoteFile{Name: name, URI: "https://example.com/" + name, State: state}, nil
}

// Delete records the released handle.
func (s *FakeFileStore) Delete(_ context.Context, name string) error {
	s.Deleted = append(s.Deleted, name)
	return nil
}

// FakeEmbedder is an Embedder fake returning a fixed vector or error.
type FakeEmbedder struct {
	Vector []float64
	Err    error
}

// EmbedText returns the configured vector.
func (e *FakeEmbedder) EmbedText(_ context.Context, _ string) ([]float64, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Vector, nil
}

// GetTestReportJSON returns a minimal well-formed compliance report as the
// model would emit it, wrapped in a markdown code fence.
func GetTestReportJSON() string {
	return "```json\n" + `{
  "schema_version": "1.1",
  "overall": {
    "risk_level": "HIGH",
    "confidence": 0.91,
    "age_rating": "16+",
    "summary": "Explicit profanity and a visible liquor brand."
  },
  "evidence": [
    {"id": "e1", "type": "transcript_span", "start_ms": 12000, "end_ms": 15500, "text_quote": "explicit language"},
    {"id": "e2", "type": "frame_span", "start_ms": 60000, "end_ms": 62000, "notes": "liquor bottle label in frame"}
  ],
  "labels": [
    {"code": "PROFANITY_EXPLICIT", "severity": 2, "confidence": 0.95, "rationale": "repeated strong language", "evidence_ids": ["e1"]},
    {"code": "ALCOHOL_BRANDING", "severity": 3, "confidence": 0.88, "rationale": "identifiable brand", "evidence_ids": ["e2"], "policy_refs": ["BC-ADS-04"]}
  ],
  "policy_hits": [
    {"req_code": "BC-ADS-04", "priority": "P0", "why": "brand placement without disclosure", "evidence_ids": ["e2"]}
  ],
  "recommendations": [
    {"action": "BLUR", "priority": "P0", "target_evidence_ids": ["e2"], "expected_effect": "removes brand identification"},
    {"action": "BLEEP", "priority": "P1", "target_evidence_ids": ["e1"]}
  ]
}` + "\n```"
}

// GetTestUploadNotificationText simulates the Pub/Sub message GCS publishes
// when a media file lands in the watched bucket.
func GetTestUploadNotificationText() string {
	return `{
  "kind": "storage#object",
  "id": "media-compliance-uploads/sample-episode.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/media-compliance-uploads/o/sample-episode.mp4",
  "name": "sample-episode.mp4",
  "bucket": "media-compliance-uploads",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "timeStorageClassUpdated": "2024-10-11T03:04:08.672Z",
  "size": "259348037",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/media-compliance-uploads/o/sample-episode.mp4?generation=1728615848664286&alt=media",
  "metadata": { "source": "ingest" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}
