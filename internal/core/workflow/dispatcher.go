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

// This file defines the job dispatcher: a fixed pool of workers draining a
// buffered job queue. Submission is non-blocking; a full queue rejects the
// job immediately rather than stalling the intake surface. Workers publish
// the terminal state of every job to the status store.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
)

// DefaultQueueDepth bounds how many accepted jobs may wait for a worker.
const DefaultQueueDepth = 64

// Dispatcher fans submitted jobs out to a worker pool.
type Dispatcher struct {
	workflow *ComplianceAnalysisWorkflow
	status   *StatusStore
	workers  int
	jobs     chan *model.JobRequest
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count. Start
// must be called before jobs are submitted.
func NewDispatcher(workflow *ComplianceAnalysisWorkflow, status *StatusStore, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		workflow: workflow,
		status:   status,
		workers:  workers,
		jobs:     make(chan *model.JobRequest, DefaultQueueDepth),
	}
}

// Start launches the worker pool. Cancelling ctx stops workers after their
// current job; queued jobs left behind are abandoned with the process.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
}

// Submit queues a job and registers it with the status store. A full
// queue returns an error and records a terminal FAILURE for the job, so
// pollers still see a parseable outcome.
func (d *Dispatcher) Submit(req *model.JobRequest) error {
	d.status.Start(req.JobId)
	select {
	case d.jobs <- req:
		return nil
	default:
		d.status.Fail(req.JobId, &model.ErrorResult{Error: "analysis queue is full"})
		return fmt.Errorf("analysis queue is full, job %s rejected", req.JobId)
	}
}

// Shutdown stops accepting jobs and waits for in-flight work to finish.
func (d *Dispatcher) Shutdown() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-d.jobs:
			if !ok {
				return
			}
			d.runOne(ctx, id, req)
		}
	}
}

func (d *Dispatcher) runOne(ctx context.Context, worker int, req *model.JobRequest) {
	slog.Info("starting analysis job", "worker", worker, "job", req.JobId, "filename", req.Filename)

	result, err := d.workflow.Run(ctx, req, d.status)
	if err != nil {
		slog.Error("analysis job failed", "worker", worker, "job", req.JobId, "error", err)
		d.status.Fail(req.JobId, &model.ErrorResult{Error: err.Error()})
		return
	}

	slog.Info("analysis job finished", "worker", worker, "job", req.JobId, "run", result.RunId)
	d.status.Succeed(req.JobId, result)
}
