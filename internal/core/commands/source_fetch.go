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

// Package commands provides the concrete pipeline stages of the compliance
// analysis workflow as Chain of Responsibility commands. This file defines
// the source-fetch stage: jobs submitted by bucket reference are downloaded
// to a local temporary file before the transcoder can touch them. Jobs that
// already carry a local path pass straight through.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
)

const gcsScheme = "gs://"

// GetJobRequestParameterName returns the canonical context key for the
// job request, readable by every stage in the chain.
func GetJobRequestParameterName() string {
	return "__JOB_REQUEST__"
}

// SourceFetchCommand resolves a job's source to a local file path.
type SourceFetchCommand struct {
	cor.BaseCommand
	client         *storage.Client
	tempFilePrefix string
}

// NewSourceFetchCommand builds the source-fetch stage. The storage client
// may be nil when only local submissions are expected; gs:// jobs then fail
// fast with a clear error.
func NewSourceFetchCommand(name string, client *storage.Client, tempFilePrefix string) *SourceFetchCommand {
	return &SourceFetchCommand{
		BaseCommand:    *cor.NewBaseCommand(name),
		client:         client,
		tempFilePrefix: tempFilePrefix,
	}
}

// Execute downloads the gs:// source to a temp file, or passes a local
// path through untouched. The temp file is tracked on the context so it is
// deleted however the job ends.
func (c *SourceFetchCommand) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.JobRequest)

	if !strings.HasPrefix(req.SourceURI, gcsScheme) {
		if req.FilePath == "" {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("job %s has neither a local path nor a gs:// source", req.JobId))
			return
		}
		context.Add(c.GetOutputParam(), req)
		return
	}

	if c.client == nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("job %s references %s but no storage client is configured", req.JobId, req.SourceURI))
		return
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(req.SourceURI, gcsScheme), "/")
	if !ok || object == "" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("malformed source uri: %s", req.SourceURI))
		return
	}

	reader, err := c.client.Bucket(bucket).Object(object).NewReader(context.GetContext())
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to create reader for %s: %w", req.SourceURI, err))
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close storage reader", "uri", req.SourceURI, "error", err)
		}
	}()

	tempFile, err := os.CreateTemp("", c.tempFilePrefix)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create temp file: %w", err))
		return
	}
	context.AddTempFile(tempFile.Name())

	written, err := io.Copy(tempFile, reader)
	_ = tempFile.Close()
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to download %s after %d bytes: %w", req.SourceURI, written, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("fetched source object", "uri", req.SourceURI, "bytes", written)
	req.FilePath = tempFile.Name()
	context.Add(c.GetOutputParam(), req)
}
