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

// This file defines the Pub/Sub intake command: the bridge between a GCS
// object-finalize notification and the analysis dispatcher. The listener
// acks the message as soon as the job is accepted into the queue; from
// there the job's fate is tracked by the status store, not redelivery.
package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
)

// JobIntakeCommand converts a bucket notification into a queued analysis
// job.
type JobIntakeCommand struct {
	cor.BaseCommand
	dispatcher *Dispatcher
}

// NewJobIntakeCommand builds the intake command over the dispatcher.
func NewJobIntakeCommand(name string, dispatcher *Dispatcher) *JobIntakeCommand {
	return &JobIntakeCommand{BaseCommand: *cor.NewBaseCommand(name), dispatcher: dispatcher}
}

// Execute parses the notification JSON and submits the referenced object
// for analysis.
func (c *JobIntakeCommand) Execute(chainCtx cor.Context) {
	raw := chainCtx.Get(c.GetInputParam()).(string)

	notification := &cloud.GCSPubSubNotification{}
	if err := json.Unmarshal([]byte(raw), notification); err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(c.GetName(), fmt.Errorf("failed to parse storage notification: %w", err))
		return
	}
	if notification.Bucket == "" || notification.Name == "" {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(c.GetName(), fmt.Errorf("storage notification missing bucket or object name"))
		return
	}

	req := model.NewJobRequest("", path.Base(notification.Name))
	req.SourceURI = notification.Object().URI()

	if err := c.dispatcher.Submit(req); err != nil {
		c.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	slog.Info("queued analysis job from storage notification", "job", req.JobId, "source", req.SourceURI)
	chainCtx.Add(c.GetOutputParam(), req.JobId)
}
