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

// This file defines the in-memory job status store. Jobs run async; the
// HTTP surface polls this store by job id for progress checkpoints and,
// eventually, the terminal result. The store also implements the
// cor.StatusEmitter interface, so pipeline commands publish checkpoints
// into it without knowing anything about HTTP.
package workflow

import (
	"sync"
	"time"
)

// Job lifecycle states.
const (
	StateProgress = "PROGRESS"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
)

// JobStatus is one job's externally visible state snapshot.
type JobStatus struct {
	JobId     string      `json:"job_id"`
	State     string      `json:"state"`
	Message   string      `json:"message,omitempty"` // Latest progress checkpoint.
	Result    interface{} `json:"result,omitempty"`  // AnalysisResult or ErrorResult once terminal.
	UpdatedAt time.Time   `json:"updated_at"`
}

// StatusStore tracks job state for pollers. Safe for concurrent use.
type StatusStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewStatusStore creates an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{jobs: make(map[string]*JobStatus)}
}

// Start registers a job in the PROGRESS state.
func (s *StatusStore) Start(jobID string) {
	s.set(jobID, StateProgress, "queued", nil)
}

// Progress records a checkpoint message for a running job. Implements
// cor.StatusEmitter. Checkpoints arriving after a terminal state are
// dropped so a late message can never mask the result.
func (s *StatusStore) Progress(jobID string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.jobs[jobID]
	if !ok || status.State != StateProgress {
		return
	}
	status.Message = message
	status.UpdatedAt = time.Now()
}

// Succeed moves a job to its terminal SUCCESS state with its result.
func (s *StatusStore) Succeed(jobID string, result interface{}) {
	s.set(jobID, StateSuccess, "", result)
}

// Fail moves a job to its terminal FAILURE state with its error result.
func (s *StatusStore) Fail(jobID string, result interface{}) {
	s.set(jobID, StateFailure, "", result)
}

// Get returns a copy of the job's current status.
func (s *StatusStore) Get(jobID string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *status, true
}

func (s *StatusStore) set(jobID string, state string, message string, result interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &JobStatus{
		JobId:     jobID,
		State:     state,
		Message:   message,
		Result:    result,
		UpdatedAt: time.Now(),
	}
}
