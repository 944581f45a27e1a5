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

// This file defines the analysis job request, the transport-agnostic input
// of the pipeline. The HTTP surface and the Pub/Sub intake both reduce to
// one of these before submitting to the dispatcher.
package model

import "github.com/google/uuid"

// JobRequest describes one asset to analyze. Either FilePath (already
// local) or SourceURI (a gs:// object the pipeline fetches first) must be
// set. Profile and ModelName fall back to the configured defaults when
// empty.
type JobRequest struct {
	JobId     string `json:"job_id"`
	FilePath  string `json:"file_path,omitempty"`
	SourceURI string `json:"source_uri,omitempty"`
	Filename  string `json:"filename"` // Display filename shown in reports and used for retrieval queries.
	Profile   string `json:"profile,omitempty"`
	ModelName string `json:"model_name,omitempty"`
}

// NewJobRequest creates a request with a fresh job identifier.
func NewJobRequest(filePath string, filename string) *JobRequest {
	return &JobRequest{
		JobId:    uuid.NewString(),
		FilePath: filePath,
		Filename: filename,
	}
}
