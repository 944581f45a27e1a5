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

// Package workflow assembles the pipeline commands into the compliance
// analysis orchestration and runs jobs through it. This file implements
// the analysis workflow itself: the fixed stage order from source fetch
// through report persistence, and the per-job runner that owns the job
// context's lifecycle and shapes the terminal result.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/services"
)

// ComplianceAnalysisWorkflow orchestrates one asset's full compliance
// analysis: fetch, normalize, fingerprint, upload, retrieve grounding
// context, run inference, parse, and persist. The workflow is built once
// and shared by all workers; per-job state lives in the job context.
type ComplianceAnalysisWorkflow struct {
	cor.BaseCommand
	config         *cloud.Config
	agentModelName string
	chain          cor.Chain
}

// NewComplianceAnalysisPipeline builds the workflow from the configured
// clients. The agent model name selects which configured model answers the
// compliance prompt; jobs that name no model are attributed to it.
func NewComplianceAnalysisPipeline(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	agentModelName string) (*ComplianceAnalysisWorkflow, error) {

	complianceTemplate, err := template.New("compliance-template").Parse(config.PromptTemplates.CompliancePrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compliance prompt template: %w", err)
	}

	agentModel, ok := serviceClients.AgentModels[agentModelName]
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", agentModelName)
	}

	var embedder cloud.Embedder
	for _, e := range serviceClients.EmbeddingModels {
		embedder = e
		break
	}

	pipeline := &ComplianceAnalysisWorkflow{
		BaseCommand:    *cor.NewBaseCommand("compliance-analysis-pipeline"),
		config:         config,
		agentModelName: agentModelName,
	}

	var identifier commands.Identifier
	if config.Fingerprint.Endpoint != "" {
		identifier = commands.NewHTTPIdentifier(config.Fingerprint)
	}

	out := cor.NewBaseChain(pipeline.GetName())
	out.AddCommand(commands.NewSourceFetchCommand("fetch-source", serviceClients.StorageClient, "compliance-source-"))
	out.AddCommand(commands.NewTranscodeCommand("transcode-media", config.Transcoder))
	out.AddCommand(commands.NewFingerprintCommand("fingerprint-audio", identifier))
	out.AddCommand(commands.NewMediaUploadCommand("upload-media", serviceClients.FileStore, config.Uploader))
	out.AddCommand(commands.NewContextRetrievalCommand(
		"retrieve-context",
		services.NewPolicyService(serviceClients.DB),
		services.NewCaseMemoryService(serviceClients.DB, embedder),
		config.Profiles,
		config.Application.DefaultProfile))
	out.AddCommand(commands.NewReportGenerator("generate-report", agentModel, config.Retry, complianceTemplate))
	out.AddCommand(commands.NewReportJsonToStruct("convert-report"))
	out.AddCommand(commands.NewReportPersist("persist-report", serviceClients.DB))
	pipeline.chain = out

	return pipeline, nil
}

// Execute runs the underlying chain.
func (m *ComplianceAnalysisWorkflow) Execute(chainCtx cor.Context) {
	m.chain.Execute(chainCtx)
}

// Run executes one job end to end on a fresh job context and returns the
// terminal result. The job context is always closed, so temporary files
// and remote handles are released however the job ends.
func (m *ComplianceAnalysisWorkflow) Run(ctx context.Context, req *model.JobRequest, emitter cor.StatusEmitter) (*model.AnalysisResult, error) {
	if req.ModelName == "" {
		req.ModelName = m.agentModelName
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.SetStatusEmitter(req.JobId, emitter)
	chainCtx.Add(commands.GetJobRequestParameterName(), req)
	chainCtx.Add(cor.CtxIn, req)
	defer chainCtx.Close()

	m.Execute(chainCtx)

	if chainCtx.HasErrors() {
		return nil, collectErrors(chainCtx.GetErrors())
	}

	result, ok := chainCtx.Get(commands.GetAnalysisResultParameterName()).(*model.AnalysisResult)
	if !ok {
		return nil, fmt.Errorf("pipeline finished without producing a result")
	}
	result.Warnings = collectWarnings(chainCtx.GetWarnings())
	return result, nil
}

// collectErrors folds the error ledger into one deterministic error.
func collectErrors(errs map[string]error) error {
	parts := make([]string, 0, len(errs))
	for name, err := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", name, err))
	}
	sort.Strings(parts)
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// collectWarnings renders the warning ledger for the job result.
func collectWarnings(warnings map[string]error) []string {
	if len(warnings) == 0 {
		return nil
	}
	parts := make([]string, 0, len(warnings))
	for name, err := range warnings {
		parts = append(parts, fmt.Sprintf("%s: %s", name, err))
	}
	sort.Strings(parts)
	return parts
}
