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

// This file defines BaseContext, the default implementation of the Context
// interface. One BaseContext lives for exactly one job: commands read their
// inputs from it, write their outputs back to it, and register every
// resource they acquire so Close can release them on any exit path. Fatal
// errors and degraded warnings are kept in separate maps so the chain and
// the caller can distinguish a dead job from a bruised one.
package cor

import (
	"context"
	"log/slog"
	"os"
)

type cleanupFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data      map[string]interface{} // Arbitrary key-value state shared between commands.
	errors    map[string]error       // Fatal errors, keyed by the command that raised them.
	warnings  map[string]error       // Degraded non-fatal failures, keyed the same way.
	tempFiles []string               // Local files to delete on Close.
	cleanups  []cleanupFunc          // Release actions for external resources, run on Close.
	jobID     string                 // Identifier used when publishing progress.
	emitter   StatusEmitter          // Progress side-channel; may be nil.
	context   context.Context        // Go context for cancellation and trace propagation.
}

// NewBaseContext returns a new, empty job context.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		warnings:  make(map[string]error),
		tempFiles: make([]string, 0),
		cleanups:  make([]cleanupFunc, 0),
	}
}

// SetContext sets the underlying Go context. The chain swaps this per
// command so spans nest correctly.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

// GetContext retrieves the underlying Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Add stores a key-value pair and returns the context for fluent chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// Get retrieves a value by key, or nil when the key is absent.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes a key-value pair.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// AddError records a fatal, job-terminating error under the command's name.
func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

// GetErrors returns all fatal errors collected during the job.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// HasErrors reports whether any fatal error has been recorded.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

// AddWarning records a degraded failure that the job survived.
func (c *BaseContext) AddWarning(key string, err error) {
	slog.Warn("stage degraded", "command", key, "error", err)
	c.warnings[key] = err
}

// GetWarnings returns all warnings collected during the job.
func (c *BaseContext) GetWarnings() map[string]error {
	return c.warnings
}

// SetStatusEmitter attaches the progress side-channel for this job.
func (c *BaseContext) SetStatusEmitter(jobID string, emitter StatusEmitter) {
	c.jobID = jobID
	c.emitter = emitter
}

// Progress publishes a checkpoint message. Safe to call with no emitter.
func (c *BaseContext) Progress(message string) {
	if c.emitter != nil {
		c.emitter.Progress(c.jobID, message)
	}
}

// AddTempFile tracks a local file that Close must delete.
func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

// GetTempFiles returns all tracked temporary file paths.
func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

// AddCleanup registers a release action for an external resource. Actions
// run in registration order when Close is called.
func (c *BaseContext) AddCleanup(name string, fn func(ctx context.Context) error) {
	c.cleanups = append(c.cleanups, cleanupFunc{name: name, fn: fn})
}

// Close releases everything the job acquired. Cleanup failures are logged
// and swallowed so one stuck resource never masks the job's real outcome.
// Cleanup runs on a fresh context: the job's own context may already be
// cancelled or past its deadline, and cleanup must still happen.
func (c *BaseContext) Close() {
	ctx := context.Background()
	for _, cu := range c.cleanups {
		if err := cu.fn(ctx); err != nil {
			slog.Warn("cleanup failed", "resource", cu.name, "error", err)
		}
	}
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}
