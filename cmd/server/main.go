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

// The compliance server exposes the asynchronous analysis surface: submit
// an asset, poll its job status, record human review verdicts, and export
// a run's findings for offline review. Jobs also arrive over Pub/Sub when
// an object lands in a watched bucket.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-media-compliance/internal/core/model"
	"github.com/jaycherian/gcp-go-media-compliance/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("tracing initialized")

	InitState(ctx)
	slog.Info("initialized state")

	r := gin.Default()
	r.Use(otelgin.Middleware(config.Application.Name))
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		AnalysisRouter(apiV1)
		ReviewRouter(apiV1)
		RunRouter(apiV1)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("server ready on port 8080")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	state.dispatcher.Shutdown()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown failed", "error", err)
	}
	state.cloud.Close()

	log.Println("server exiting")
}

// AnalysisRouter sets up job submission and status polling.
func AnalysisRouter(r *gin.RouterGroup) {
	analyze := r.Group("/analyze")
	{
		// Accepts one media file plus optional profile and model form
		// fields, queues the analysis, and returns the job id immediately.
		analyze.POST("", func(c *gin.Context) {
			file, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "a media file is required"})
				return
			}

			localPath := filepath.Join(os.TempDir(), filepath.Base(file.Filename))
			if err := c.SaveUploadedFile(file, localPath); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
				return
			}

			req := model.NewJobRequest(localPath, filepath.Base(file.Filename))
			req.Profile = c.PostForm("profile")
			req.ModelName = c.PostForm("model")

			if err := state.dispatcher.Submit(req); err != nil {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"job_id": req.JobId})
		})

		analyze.GET("/:id", func(c *gin.Context) {
			status, ok := state.status.Get(c.Param("id"))
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
				return
			}
			c.JSON(http.StatusOK, status)
		})
	}
}

// reviewRequest is the submission body for a human review verdict.
type reviewRequest struct {
	RunId     string `json:"run_id"`
	FinalRisk string `json:"final_risk" binding:"required"`
	Notes     string `json:"notes"`
}

// ReviewRouter sets up human review intake. A stored review feeds the case
// memory so future analyses retrieve it as a grounding example.
func ReviewRouter(r *gin.RouterGroup) {
	reviews := r.Group("/reviews")
	{
		reviews.POST("", func(c *gin.Context) {
			var body reviewRequest
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			var runId *uuid.UUID
			if body.RunId != "" {
				parsed, err := uuid.Parse(body.RunId)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "malformed run id"})
					return
				}
				runId = &parsed
			}

			review := model.NewHumanReview(runId, body.FinalRisk, body.Notes)
			if err := state.cloud.DB.WithContext(c).Create(review).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store review"})
				return
			}

			// Case-memory recording is best effort: the review is already
			// durable, a failed embedding just leaves it unretrievable.
			if _, err := state.caseMemory.RecordFeedback(c, review); err != nil {
				slog.Warn("failed to record review in case memory", "review", review.Id, "error", err)
			} else {
				review.Status = model.ReviewVerified
				if err := state.cloud.DB.WithContext(c).Save(review).Error; err != nil {
					slog.Warn("failed to mark review verified", "review", review.Id, "error", err)
				}
			}
			c.JSON(http.StatusCreated, review)
		})
	}
}

// RunRouter sets up run-level operations, currently the XLSX export.
func RunRouter(r *gin.RouterGroup) {
	runs := r.Group("/runs")
	{
		runs.GET("/:id/export", func(c *gin.Context) {
			runId, err := uuid.Parse(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "malformed run id"})
				return
			}

			workbook, err := state.exportService.RunWorkbook(c, runId)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			defer func() {
				if err := workbook.Close(); err != nil {
					slog.Warn("failed to close workbook", "error", err)
				}
			}()

			c.Header("Content-Disposition", `attachment; filename="run-`+runId.String()+`.xlsx"`)
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			if err := workbook.Write(c.Writer); err != nil {
				slog.Error("failed to stream workbook", "run", runId, "error", err)
			}
		})
	}
}
