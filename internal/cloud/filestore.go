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

// This file abstracts the inference service's object store behind a small
// interface. The upload command only needs three operations: push a local
// file, poll its processing state, and delete the handle when the job is
// done. The genai Files API provides the production implementation; tests
// script the interface directly to exercise the readiness-polling and
// cleanup paths.
package cloud

import (
	"context"

	"google.golang.org/genai"
)

// RemoteFile is the pipeline's view of an uploaded asset: an opaque handle
// plus the state the readiness poller watches.
type RemoteFile struct {
	Name     string // Server-assigned resource name, used for Get and Delete.
	URI      string // URI referenced in generation requests.
	MIMEType string
	State    genai.FileState // PROCESSING until the service finishes ingesting, then ACTIVE or FAILED.
}

// FileStore is the remote asset store consumed by the upload and cleanup
// commands.
type FileStore interface {
	// Upload pushes a local file and returns its initial handle. The
	// returned state is usually still PROCESSING.
	Upload(ctx context.Context, path string, mimeType string, displayName string) (*RemoteFile, error)

	// Get refreshes the handle's processing state.
	Get(ctx context.Context, name string) (*RemoteFile, error)

	// Delete releases the remote handle.
	Delete(ctx context.Context, name string) error
}

// GenAIFileStore implements FileStore over the genai Files API.
type GenAIFileStore struct {
	Client *genai.Client
}

var _ FileStore = (*GenAIFileStore)(nil)

// NewGenAIFileStore wraps the given client.
func NewGenAIFileStore(client *genai.Client) *GenAIFileStore {
	return &GenAIFileStore{Client: client}
}

func remoteFileFrom(f *genai.File) *RemoteFile {
	return &RemoteFile{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    f.State,
	}
}

// Upload pushes the file at path to the inference service's store.
func (s *GenAIFileStore) Upload(ctx context.Context, path string, mimeType string, displayName string) (*RemoteFile, error) {
	f, err := s.Client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}
	return remoteFileFrom(f), nil
}

// Get refreshes the processing state of a previously uploaded file.
func (s *GenAIFileStore) Get(ctx context.Context, name string) (*RemoteFile, error) {
	f, err := s.Client.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return remoteFileFrom(f), nil
}

// Delete releases the remote handle.
func (s *GenAIFileStore) Delete(ctx context.Context, name string) error {
	_, err := s.Client.Files.Delete(ctx, name, nil)
	return err
}
