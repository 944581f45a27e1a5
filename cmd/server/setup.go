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

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/jaycherian/gcp-go-media-compliance/internal/cloud"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/services"
	"github.com/jaycherian/gcp-go-media-compliance/internal/core/workflow"
)

// StateManager holds the shared components of the compliance server.
type StateManager struct {
	config        *cloud.Config
	cloud         *cloud.ServiceClients
	status        *workflow.StatusStore
	dispatcher    *workflow.Dispatcher
	caseMemory    *services.CaseMemoryService
	exportService *services.ExportService
}

var state = &StateManager{}

// SetupOS fills in the config location env vars when the environment does
// not already set them. A .env file, when present, is applied first.
func SetupOS() (err error) {
	_ = godotenv.Load()

	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the application configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// InitState initializes every shared dependency: cloud clients, schema
// migration, the analysis worker pool, and the Pub/Sub job intake.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	if err := cloudClients.DB.AutoMigrate(
		&model.MediaAsset{},
		&model.AnalysisRun{},
		&model.Evidence{},
		&model.Detection{},
		&model.Recommendation{},
		&model.PolicyDocument{},
		&model.PolicyRequirement{},
		&model.TaxonomyLabel{},
		&model.HumanReview{},
		&model.CaseMemory{},
	); err != nil {
		panic(err)
	}

	var embedder cloud.Embedder
	for _, e := range cloudClients.EmbeddingModels {
		embedder = e
		break
	}
	state.caseMemory = services.NewCaseMemoryService(cloudClients.DB, embedder)
	state.exportService = services.NewExportService(cloudClients.DB)

	pipeline, err := workflow.NewComplianceAnalysisPipeline(config, cloudClients, config.Application.DefaultModel)
	if err != nil {
		panic(err)
	}

	state.status = workflow.NewStatusStore()
	state.dispatcher = workflow.NewDispatcher(pipeline, state.status, config.Application.WorkerPoolSize)
	state.dispatcher.Start(ctx)

	SetupListeners(ctx, cloudClients, state.dispatcher)
}

// SetupListeners attaches the job intake to every configured subscription
// and starts receiving.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients, dispatcher *workflow.Dispatcher) {
	intake := workflow.NewJobIntakeCommand("job-intake", dispatcher)
	for name, listener := range cloudClients.PubSubListeners {
		listener.SetCommand(intake)
		listener.Listen(ctx)
		slog.Info("job intake listening", "subscription", name)
	}
}
