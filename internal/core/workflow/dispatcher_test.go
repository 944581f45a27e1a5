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

package workflow_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/workflow"
	"github.com/stretchr/testify/assert"
)

// A full queue must reject the job with an error and leave a terminal
// FAILURE behind, so a poller holding the job id still gets an outcome.
// Workers are never started, so every accepted job stays queued.
func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	status := workflow.NewStatusStore()
	dispatcher := workflow.NewDispatcher(nil, status, 1)

	for i := 0; i < workflow.DefaultQueueDepth; i++ {
		assert.NoError(t, dispatcher.Submit(model.NewJobRequest("/tmp/clip.mp4", "clip.mp4")))
	}

	rejected := model.NewJobRequest("/tmp/clip.mp4", "clip.mp4")
	err := dispatcher.Submit(rejected)
	assert.Error(t, err)

	jobStatus, ok := status.Get(rejected.JobId)
	assert.True(t, ok)
	assert.Equal(t, workflow.StateFailure, jobStatus.State)
}
