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

// This file defines the context-retrieval stage. It assembles the three
// text blocks the inference prompt is grounded in: the policy corpus slice
// selected by the job's publishing profile, the full violation taxonomy,
// and the closest prior human-corrected cases found by vector similarity
// to the asset's descriptive text. Retrieval failure is never fatal; every
// block independently degrades to empty or placeholder text.
package commands

import (
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/services"
)

// RetrievedContext carries the three prompt context blocks.
type RetrievedContext struct {
	PolicyText    string
	TaxonomyText  string
	HumanExamples string
}

// GetRetrievedContextParameterName returns the canonical context key for
// the assembled prompt context.
func GetRetrievedContextParameterName() string {
	return "__RETRIEVED_CONTEXT__"
}

// ContextRetrievalCommand builds the retrieval-augmented prompt context.
type ContextRetrievalCommand struct {
	cor.BaseCommand
	policies       *services.PolicyService
	memory         *services.CaseMemoryService
	profiles       map[string]cloud.Profile
	defaultProfile string
	topK           int
}

// NewContextRetrievalCommand builds the retrieval stage.
func NewContextRetrievalCommand(
	name string,
	policies *services.PolicyService,
	memory *services.CaseMemoryService,
	profiles map[string]cloud.Profile,
	defaultProfile string,
) *ContextRetrievalCommand {
	return &ContextRetrievalCommand{
		BaseCommand:    *cor.NewDegradableCommand(name),
		policies:       policies,
		memory:         memory,
		profiles:       profiles,
		defaultProfile: defaultProfile,
		topK:           services.DefaultTopK,
	}
}

// Execute assembles the three context blocks. Each source is tried
// independently; failures surface as warnings and leave that block at its
// degraded default.
func (c *ContextRetrievalCommand) Execute(chainCtx cor.Context) {
	req := chainCtx.Get(GetJobRequestParameterName()).(*model.JobRequest)
	chainCtx.Progress("retrieving analysis context")

	retrieved := &RetrievedContext{
		HumanExamples: services.NoExamplesPlaceholder,
	}
	// Emit first so even a panic-free partial failure leaves a usable
	// (empty) context for the prompt.
	chainCtx.Add(GetRetrievedContextParameterName(), retrieved)
	chainCtx.Add(c.GetOutputParam(), retrieved)

	profileName := req.Profile
	if profileName == "" {
		profileName = c.defaultProfile
	}
	profile, ok := c.profiles[profileName]
	if !ok {
		chainCtx.AddWarning(c.GetName(), fmt.Errorf("unknown profile %q, policy context omitted", profileName))
	} else if c.policies != nil {
		policyText, err := c.policies.PolicyText(chainCtx.GetContext(), profile.PublisherPattern)
		if err != nil {
			chainCtx.AddWarning(c.GetName(), fmt.Errorf("policy retrieval degraded: %w", err))
		} else {
			retrieved.PolicyText = policyText
		}
	}

	if c.policies != nil {
		taxonomyText, err := c.policies.TaxonomyText(chainCtx.GetContext())
		if err != nil {
			chainCtx.AddWarning(c.GetName(), fmt.Errorf("taxonomy retrieval degraded: %w", err))
		} else {
			retrieved.TaxonomyText = taxonomyText
		}
	}

	if c.memory != nil {
		query := c.buildQuery(chainCtx, req)
		examples, err := c.memory.FindSimilarText(chainCtx.GetContext(), query, c.topK)
		if err != nil {
			chainCtx.AddWarning(c.GetName(), fmt.Errorf("case retrieval degraded: %w", err))
		} else if examples != "" {
			retrieved.HumanExamples = examples
		}
	}

	c.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
}

// buildQuery composes the retrieval query from the display filename and
// any fingerprint identification.
func (c *ContextRetrievalCommand) buildQuery(chainCtx cor.Context, req *model.JobRequest) string {
	parts := []string{req.Filename}
	if fp, ok := chainCtx.Get(GetFingerprintParameterName()).(string); ok && fp != "" {
		parts = append(parts, fp)
	}
	return strings.Join(parts, " ")
}
