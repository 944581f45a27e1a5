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

func TestStatusStoreLifecycle(t *testing.T) {
	store := workflow.NewStatusStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Start("job-1")
	status, ok := store.Get("job-1")
	assert.True(t, ok)
	assert.Equal(t, workflow.StateProgress, status.State)
	assert.Equal(t, "queued", status.Message)

	store.Progress("job-1", "transcoding media")
	status, _ = store.Get("job-1")
	assert.Equal(t, "transcoding media", status.Message)

	result := &model.AnalysisResult{AssetId: "asset-1", RunId: "run-1"}
	store.Succeed("job-1", result)
	status, _ = store.Get("job-1")
	assert.Equal(t, workflow.StateSuccess, status.State)
	assert.Equal(t, result, status.Result)
}

// A checkpoint arriving after the terminal state must not resurrect the
// job or mask its result.
func TestStatusStoreIgnoresLateProgress(t *testing.T) {
	store := workflow.NewStatusStore()
	store.Start("job-1")
	store.Fail("job-1", &model.ErrorResult{Error: "upload timed out"})

	store.Progress("job-1", "late checkpoint")

	status, _ := store.Get("job-1")
	assert.Equal(t, workflow.StateFailure, status.State)
	assert.Empty(t, status.Message)
	assert.Equal(t, &model.ErrorResult{Error: "upload timed out"}, status.Result)
}

// Progress for a job the store never saw is dropped silently.
func TestStatusStoreIgnoresUnknownJobs(t *testing.T) {
	store := workflow.NewStatusStore()
	store.Progress("ghost", "message")

	_, ok := store.Get("ghost")
	assert.False(t, ok)
}
