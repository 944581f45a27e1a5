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

// This file defines the inference stage. The compliance prompt is built
// from a Go template populated with the retrieved policy corpus, taxonomy,
// prior human-corrected cases and a few-shot report example, then sent to
// the generative model together with the uploaded asset handle in a single
// multi-modal request. The model's raw JSON text is the output; parsing is
// the next command's job. Rate-limit responses are retried with bounded
// exponential backoff, each wait surfaced as a progress checkpoint.
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"google.golang.org/genai"
)

// ReportGenerator is the command that prompts the generative model for a
// compliance report. Failure here is fatal: there is nothing to persist
// without model output.
type ReportGenerator struct {
	cor.BaseCommand
	generativeAIModel cloud.GenerativeModel
	retryPolicy       cloud.Retry
	template          *template.Template

	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

// NewReportGenerator is the constructor for the ReportGenerator command.
func NewReportGenerator(
	name string,
	generativeAIModel cloud.GenerativeModel,
	retryPolicy cloud.Retry,
	template *template.Template) *ReportGenerator {

	out := &ReportGenerator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: generativeAIModel,
		retryPolicy:       retryPolicy,
		template:          template}

	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.retry", out.GetName()))

	return out
}

// GenerateParams builds the substitution map for the prompt template from
// the retrieved context and the canonical few-shot example.
func (t *ReportGenerator) GenerateParams(chainCtx cor.Context) map[string]interface{} {
	params := make(map[string]interface{})

	retrieved, _ := chainCtx.Get(GetRetrievedContextParameterName()).(*RetrievedContext)
	if retrieved == nil {
		retrieved = &RetrievedContext{}
	}
	params["POLICIES"] = retrieved.PolicyText
	params["TAXONOMY"] = retrieved.TaxonomyText
	params["HUMAN_EXAMPLES"] = retrieved.HumanExamples

	fingerprint, _ := chainCtx.Get(GetFingerprintParameterName()).(string)
	params["FINGERPRINT"] = fingerprint

	// A complete well-formed report in the prompt anchors the model's
	// output shape far better than the schema description alone.
	exampleReport, _ := json.Marshal(model.GetExampleReport())
	params["EXAMPLE_JSON"] = string(exampleReport)
	return params
}

// Execute renders the prompt and sends it with the asset handle to the
// model, retrying rate-limit responses per the configured policy.
func (t *ReportGenerator) Execute(chainCtx cor.Context) {
	remote := chainCtx.Get(GetRemoteFileParameterName()).(*cloud.RemoteFile)
	chainCtx.Progress("running compliance inference")

	var buffer bytes.Buffer
	err := t.template.Execute(&buffer, t.GenerateParams(chainCtx))
	if err != nil {
		t.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(t.GetName(), fmt.Errorf("failed to execute prompt template: %w", err))
		return
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: buffer.String()},
				{FileData: cloud.NewFileData(remote.URI, remote.MIMEType)},
			},
			Role: "user",
		},
	}

	generator := cloud.NewRateLimitedGenerator(t.generativeAIModel, t.retryPolicy)
	generator.InputTokenCounter = t.geminiInputTokenCounter
	generator.OutputTokenCounter = t.geminiOutputTokenCounter
	generator.RetryCounter = t.geminiRetryCounter
	generator.OnWait = func(attempt int, wait time.Duration) {
		chainCtx.Progress(fmt.Sprintf("rate limited, retrying inference in %s (attempt %d)", wait.Round(time.Second), attempt+2))
	}

	out, err := generator.GenerateText(chainCtx.GetContext(), contents)
	if err != nil {
		t.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(t.GetName(), fmt.Errorf("gemini request failed: %w", err))
		return
	}
	if len(out) == 0 {
		t.GetErrorCounter().Add(chainCtx.GetContext(), 1)
		chainCtx.AddError(t.GetName(), fmt.Errorf("model returned an empty response"))
		return
	}

	t.GetSuccessCounter().Add(chainCtx.GetContext(), 1)
	chainCtx.Add(t.GetOutputParam(), out)
}
