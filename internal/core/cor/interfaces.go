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

// Package cor (Chain of Responsibility) provides the building blocks for
// expressing an analysis job as an ordered sequence of commands. This file
// defines the interfaces the framework is built on. Commands are atomic units
// of work; a Chain runs them in order and pipes each command's primary output
// into the next command's primary input; the Context is the shared state bag
// for one job execution, including its error, warning, and cleanup ledgers.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the reserved keys used by a chain to pipe the primary
// data flow between consecutive commands.
const (
	// CtxIn is the default key a command reads its primary input from. The
	// chain populates it with the previous command's output.
	CtxIn = "__IN__"
	// CtxOut is the default key a command writes its primary output to. The
	// chain moves the value to CtxIn before running the next command.
	CtxOut = "__OUT__"
)

// FailurePolicy declares how a chain treats errors raised by a command.
// The policy is declared on the command itself so the runner applies failure
// semantics uniformly instead of each stage hand-rolling its own recovery.
type FailurePolicy int

const (
	// FailFatal stops the chain at the first error from this command. This is
	// the default: a stage that cannot hand a usable value to its successor
	// ends the job.
	FailFatal FailurePolicy = iota
	// FailDegrade downgrades this command's errors to warnings and lets the
	// chain continue. Commands with this policy must leave a usable fallback
	// value in their output slot before returning.
	FailDegrade
)

// StatusEmitter receives human-readable progress checkpoints from a running
// job. Implementations are expected to be safe for concurrent use; the
// workflow package provides a store that external pollers can query.
type StatusEmitter interface {
	Progress(jobID string, message string)
}

// Context is the shared state object passed through a chain of commands. It
// carries data, errors, warnings, progress, and the cleanup obligations that
// must be honored on every exit path.
type Context interface {
	// SetContext sets the standard Go context used for cancellation and
	// trace propagation.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go context.
	GetContext() context.Context

	// Add stores a key-value pair. Returns the Context for fluent chaining.
	Add(key string, value interface{}) Context

	// Get retrieves a value by key, or nil when absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// AddError records a job-terminating error, keyed by command name.
	AddError(key string, err error)

	// GetErrors returns all fatal errors collected so far.
	GetErrors() map[string]error

	// HasErrors reports whether any fatal error has been recorded.
	HasErrors() bool

	// AddWarning records a degraded, non-fatal failure keyed by command name.
	// Warnings never stop the chain; they surface in logs and job results.
	AddWarning(key string, err error)

	// GetWarnings returns all warnings collected so far.
	GetWarnings() map[string]error

	// SetStatusEmitter attaches the progress side-channel for this job.
	SetStatusEmitter(jobID string, emitter StatusEmitter)

	// Progress publishes a checkpoint message to the status side-channel.
	// A context with no emitter attached drops the message.
	Progress(message string)

	// AddTempFile tracks a locally created file that Close must delete.
	AddTempFile(file string)

	// GetTempFiles returns all tracked temporary file paths.
	GetTempFiles() []string

	// AddCleanup registers a release action for an external resource, such
	// as a remotely uploaded file handle. Close invokes every registered
	// action best-effort, regardless of how the job ended.
	AddCleanup(name string, fn func(ctx context.Context) error)

	// Close releases everything the job acquired: registered cleanup actions
	// first, then temporary files. Deferred at the start of every workflow.
	Close()
}

// Executable is any object with a core execution step.
type Executable interface {
	// Execute runs the business logic, reading inputs from and writing
	// outputs to the given Context.
	Execute(context Context)
}

// Command represents an atomic, testable unit of work within a chain.
type Command interface {
	Executable

	// GetName returns the command name used for logging and telemetry.
	GetName() string

	// GetInputParam returns the context key this command reads its primary
	// input from.
	GetInputParam() string

	// GetOutputParam returns the context key this command writes its primary
	// output to.
	GetOutputParam() string

	// GetFailurePolicy declares how the chain treats this command's errors.
	GetFailurePolicy() FailurePolicy

	// IsExecutable checks preconditions against the current context state.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for this command.
	GetMeter() metric.Meter

	// GetSuccessCounter returns the counter incremented on success.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns the counter incremented on failure.
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command, so
// chains may be nested.
type Chain interface {
	Command

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
