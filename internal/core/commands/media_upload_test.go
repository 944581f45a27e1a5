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
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	test "github.com/jaycherian/gcp-go-media-compliance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func runUpload(store cloud.FileStore, config cloud.Uploader) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, &commands.TranscodeResult{Path: "/tmp/clip.mp4", MIMEType: "video/mp4"})
	chainCtx.Add(commands.GetJobRequestParameterName(), &model.JobRequest{JobId: "job-1", Filename: "clip.mp4"})

	cmd := commands.NewMediaUploadCommand("upload-media", store, config)
	cmd.Execute(chainCtx)
	return chainCtx
}

// An upload that reaches ACTIVE yields the remote handle for the
// generation request.
func TestMediaUploadWaitsForActive(t *testing.T) {
	store := &test.FakeFileStore{States: []genai.FileState{genai.FileStateProcessing, genai.FileStateActive}}
	chainCtx := runUpload(store, cloud.Uploader{PollIntervalMs: 1, TimeoutSeconds: 5})

	assert.False(t, chainCtx.HasErrors())
	remote, ok := chainCtx.Get(commands.GetRemoteFileParameterName()).(*cloud.RemoteFile)
	assert.True(t, ok)
	assert.Equal(t, genai.FileStateActive, remote.State)
	assert.Equal(t, "files/clip.mp4", remote.Name)
}

// A handle that reports FAILED kills the job immediately.
func TestMediaUploadFailsOnFailedState(t *testing.T) {
	store := &test.FakeFileStore{States: []genai.FileState{genai.FileStateFailed}}
	chainCtx := runUpload(store, cloud.Uploader{PollIntervalMs: 1, TimeoutSeconds: 5})

	assert.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(commands.GetRemoteFileParameterName()))
}

// A handle stuck in PROCESSING past the timeout is a fatal error, and the
// remote handle registered for cleanup is still released on Close.
func TestMediaUploadTimesOutAndReleasesHandle(t *testing.T) {
	store := &test.FakeFileStore{States: []genai.FileState{genai.FileStateProcessing}}
	chainCtx := runUpload(store, cloud.Uploader{PollIntervalMs: 10, TimeoutSeconds: 1})

	assert.True(t, chainCtx.HasErrors())
	for _, err := range chainCtx.GetErrors() {
		assert.Contains(t, err.Error(), "not ready within")
	}

	assert.Empty(t, store.Deleted)
	chainCtx.Close()
	assert.Equal(t, []string{"files/clip.mp4"}, store.Deleted)
}
