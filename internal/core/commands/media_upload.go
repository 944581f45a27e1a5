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

// This file defines the remote upload stage. The transcoded file is pushed
// to the inference service's object store and then polled at a fixed short
// interval until it leaves the PROCESSING state. ACTIVE yields the handle
// the generation request references; FAILED or exceeding the global timeout
// kills the job. The handle's deletion is registered on the context
// immediately after upload, so even a job that dies mid-poll releases the
// partially processed remote file.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"google.golang.org/genai"
)

// GetRemoteFileParameterName returns the canonical context key for the
// uploaded asset handle.
func GetRemoteFileParameterName() string {
	return "__REMOTE_FILE__"
}

// MediaUploadCommand pushes the transcoded file to the remote store and
// polls it to readiness. Failure here is fatal: no report can be produced
// without the uploaded asset.
type MediaUploadCommand struct {
	cor.BaseCommand
	store        cloud.FileStore
	pollInterval time.Duration
	timeout      time.Duration
}

// NewMediaUploadCommand builds the upload stage from its config block,
// falling back to a 2.5s poll interval and a five minute cap.
func NewMediaUploadCommand(name string, store cloud.FileStore, config cloud.Uploader) *MediaUploadCommand {
	pollInterval := time.Duration(config.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2500 * time.Millisecond
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &MediaUploadCommand{
		BaseCommand:  *cor.NewBaseCommand(name),
		store:        store,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Execute uploads the file and blocks until the remote store reports it
// ACTIVE, FAILED, or the timeout elapses.
func (c *MediaUploadCommand) Execute(chainCtx cor.Context) {
	result := chainCtx.Get(c.GetInputParam()).(*TranscodeResult)
	req, _ := chainCtx.Get(GetJobRequestParameterName()).(*model.JobRequest)
	chainCtx.Progress("uploading media for analysis")

	displayName := result.Path
	if req != nil && req.Filename != "" {
		displayName = req.Filename
	}

	uploadCtx, cancel := context.WithTimeout(chainCtx.GetContext(), c.timeout)
	defer cancel()

	remote, err := c.store.Upload(uploadCtx, result.Path, result.MIMEType, displayName)
	if err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(c.GetName(), fmt.Errorf("failed to upload media: %w", err))
		return
	}

	// Register the release before polling: a handle stuck in PROCESSING
	// still exists server-side and must be deleted when the job ends.
	store := c.store
	handleName := remote.Name
	chainCtx.AddCleanup("remote-file", func(ctx context.Context) error {
		return store.Delete(ctx, handleName)
	})

	remote, err = c.awaitActive(uploadCtx, remote)
	if err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	chainCtx.Add(GetRemoteFileParameterName(), remote)
	chainCtx.Add(c.GetOutputParam(), remote)
}

// awaitActive polls the handle at a constant interval until it reaches a
// terminal state. FAILED is permanent; the context deadline bounds the
// whole loop.
func (c *MediaUploadCommand) awaitActive(ctx context.Context, remote *cloud.RemoteFile) (*cloud.RemoteFile, error) {
	current := remote
	operation := func() error {
		switch current.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return backoff.Permanent(fmt.Errorf("remote processing failed for %s", current.Name))
		}
		refreshed, err := c.store.Get(ctx, current.Name)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to poll remote file state: %w", err))
		}
		current = refreshed
		switch current.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return backoff.Permanent(fmt.Errorf("remote processing failed for %s", current.Name))
		default:
			return fmt.Errorf("remote file %s still processing", current.Name)
		}
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote file %s not ready within %s: %w", current.Name, c.timeout, ctx.Err())
		}
		return nil, err
	}
	return current, nil
}
