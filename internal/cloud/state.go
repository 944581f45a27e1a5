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

// This file initializes and holds every external-service client the
// pipeline depends on. NewCloudServiceClients is called once at startup; the
// resulting ServiceClients struct is the dependency container handed to
// workflows, services, and API handlers.
package cloud

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ServiceClients is the container for all initialized external clients and
// configured model wrappers.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	DB              *gorm.DB                   // The relational result graph.
	FileStore       FileStore                  // Remote asset store of the inference service.
	PubSubListeners map[string]*PubSubListener // Active listeners, keyed by logical name from the config.
	EmbeddingModels map[string]Embedder
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close shuts down the client connections that expose an explicit close.
// The genai client and gorm pool are managed by the process lifetime.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// GenAIClientConfig builds the client configuration for the inference
// service. The upload stage depends on the Files service, which only the
// Gemini Developer API serves; a Vertex-backed client rejects every Files
// call, so the client is always built against the developer API with an
// API-key credential.
func GenAIClientConfig(config *Config) *genai.ClientConfig {
	apiKey := config.Application.GeminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	}
}

// NewCloudServiceClients initializes every external dependency from the
// loaded configuration: GCS, Pub/Sub, the genai client with its file store,
// the relational store, and the configured embedding and agent models.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, GenAIClientConfig(config))
	if err != nil {
		slog.Error("error creating genai client", "error", err)
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(config.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Listeners are created without a command; the workflow wiring attaches
	// one before Listen is called.
	subscriptions := make(map[string]*PubSubListener)
	for subKey := range config.TopicSubscriptions {
		values := config.TopicSubscriptions[subKey]
		actual, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		subscriptions[subKey] = actual
	}

	embeddingModels := make(map[string]Embedder)
	for embKey, values := range config.EmbeddingModels {
		embeddingModels[embKey] = NewGenAIEmbedder(gc.Models, values.Model)
	}

	// Each agent model carries its generation parameters; the safety
	// filters are relaxed only for models that explicitly opted in. A
	// moderation model without the flag would refuse the very content it
	// exists to judge.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey, values := range config.AgentModels {
		genConfig := &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](values.Temperature),
			TopP:              genai.Ptr[float32](values.TopP),
			TopK:              genai.Ptr[float32](values.TopK),
			MaxOutputTokens:   values.MaxTokens,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
			ResponseMIMEType:  values.OutputFormat,
		}
		if values.AllowRestrictedContent {
			genConfig.SafetySettings = PermissiveSafetySettings
		}
		agentModels[amKey] = NewQuotaAwareModel(genConfig, values.Model, gc.Models, values.RateLimit)
	}

	cloud = &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		DB:              db,
		FileStore:       NewGenAIFileStore(gc),
		PubSubListeners: subscriptions,
		EmbeddingModels: embeddingModels,
		AgentModels:     agentModels,
	}

	return cloud, nil
}
