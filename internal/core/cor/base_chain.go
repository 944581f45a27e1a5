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

// This file defines BaseChain, the default implementation of the Chain
// interface and the runner that gives every stage uniform failure
// semantics.
//
// Execution model:
//
//  1. Commands run strictly in the order they were added.
//  2. Each command gets its own child span under the chain's span.
//  3. After a command runs, errors it recorded are resolved against its
//     declared failure policy: FailDegrade errors are downgraded to
//     warnings and the chain continues; FailFatal errors stop the chain.
//  4. Between commands the chain checks the Go context and stops with a
//     fatal error once it is cancelled or past its deadline. Cancellation
//     is cooperative: a command already running is not interrupted.
//  5. Data piping: the value a command left under CtxOut is moved to CtxIn
//     before the next command runs, so each stage sees exactly its
//     predecessor's output.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface.
type BaseChain struct {
	BaseCommand
	commands []Command // Ordered list of commands this chain executes.
}

// NewBaseChain instantiates a named, empty chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// AddCommand appends a command to the chain's execution sequence and
// returns the chain for fluent construction.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable reports whether the chain can run at all, which only
// requires a live Go context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs all commands in order, applying each command's failure
// policy and piping outputs to inputs.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		// Cooperative cancellation between stages. A caller abandoning the
		// job stops it at the next stage boundary.
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), fmt.Errorf("job cancelled before %s: %w", command.GetName(), err))
			break
		}
		if chCtx.HasErrors() {
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		if command.IsExecutable(chCtx) {
			// Run the command under its own span, then restore the chain's
			// context so sibling commands trace as siblings, not
			// grandchildren.
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() && command.GetFailurePolicy() == FailDegrade {
			// The stage declared itself survivable: demote its errors to
			// warnings. The command is responsible for having left a usable
			// fallback in its output slot.
			for name, err := range chCtx.GetErrors() {
				chCtx.AddWarning(name, err)
				delete(chCtx.GetErrors(), name)
			}
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		// Flip-flop CtxOut into CtxIn for the next command.
		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
