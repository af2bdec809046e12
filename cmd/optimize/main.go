// Copyright 2025 Prompt Architect Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the prompt optimization API service. It turns a
// short user idea into a production-grade generative-art instruction by
// retrieving the closest curated exemplar and gating its disclosure to the
// generation model on retrieval confidence.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/prompt-architect/internal/cases"
	"github.com/your-org/prompt-architect/internal/config"
	"github.com/your-org/prompt-architect/internal/extract"
	"github.com/your-org/prompt-architect/internal/health"
	"github.com/your-org/prompt-architect/internal/openai"
	"github.com/your-org/prompt-architect/internal/optimizer"
	"github.com/your-org/prompt-architect/internal/prompt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// OptimizeRequest represents the JSON payload for optimization requests
type OptimizeRequest struct {
	Prompt            string `json:"prompt" binding:"required"`
	LocaleHint        string `json:"localeHint,omitempty"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	WantExportFormats bool   `json:"wantExportFormats,omitempty"`
}

// ServiceDependencies holds initialized service dependencies
type ServiceDependencies struct {
	Library       *cases.Library
	TemplateStore *prompt.Store
	Client        *openai.Client
	Service       *optimizer.Service
	Logger        *zap.Logger
	Config        *config.Config
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	maskedConfig := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "optimize"),
		zap.String("environment", os.Getenv("ENVIRONMENT")),
		zap.String("dataset_path", maskedConfig.Cases.DatasetPath),
		zap.Float64("similarity_floor", maskedConfig.Cases.SimilarityFloor),
		zap.Float64("imitate_threshold", maskedConfig.Optimizer.ImitateThreshold),
		zap.Bool("diagnostic_detail", maskedConfig.Optimizer.IncludeDiagnosticDetail),
		zap.String("openai_endpoint", maskedConfig.OpenAI.Endpoint),
		zap.String("openai_api_key", maskedConfig.OpenAI.APIKey),
	)

	deps, err := initializeDependencies(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer func() {
		if deps.TemplateStore != nil {
			if err := deps.TemplateStore.Close(); err != nil {
				logger.Warn("Failed to close template store", zap.Error(err))
			}
		}
	}()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	healthManager := health.NewManager("optimize", ServiceVersion, logger)
	setupHealthChecks(healthManager, deps)
	router.GET("/health", gin.WrapH(healthManager.HTTPHandler()))

	router.POST("/optimize", createOptimizeHandler(deps))

	port := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting optimize service",
		zap.String("port", port),
		zap.Int("case_count", deps.Library.Count()),
	)

	if err := router.Run(port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"optimize.log"}
		zapConfig.ErrorOutputPaths = []string{"optimize.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}

// initializeDependencies initializes all service dependencies
func initializeDependencies(cfg *config.Config, logger *zap.Logger) (*ServiceDependencies, error) {
	logger.Info("Initializing service dependencies")

	library, err := cases.LoadLibrary(cfg.Cases.DatasetPath, cfg.OpenAI.EmbeddingDimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load case library: %w", err)
	}

	var templateStore *prompt.Store
	if cfg.Templates.DBPath != "" {
		templateStore, err = prompt.NewStore(cfg.Templates.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open template store: %w", err)
		}
	}

	client, err := openai.NewClient(cfg.OpenAI.APIKey, openai.Options{
		Endpoint:            cfg.OpenAI.Endpoint,
		ChatModel:           cfg.OpenAI.ChatModel,
		EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: cfg.OpenAI.EmbeddingDimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upstream API client: %w", err)
	}

	service := optimizer.NewService(client, client, library, templateStore, optimizer.Options{
		SimilarityFloor:         cfg.Cases.SimilarityFloor,
		ImitateThreshold:        cfg.Optimizer.ImitateThreshold,
		Temperature:             float32(cfg.Optimizer.Temperature),
		MaxTokens:               cfg.Optimizer.MaxTokens,
		GenerateTimeout:         time.Duration(cfg.Optimizer.GenerateTimeoutSeconds) * time.Second,
		ExportTimeout:           time.Duration(cfg.Optimizer.ExportTimeoutSeconds) * time.Second,
		IncludeDiagnosticDetail: cfg.Optimizer.IncludeDiagnosticDetail,
	}, logger)

	logger.Info("Service dependencies initialized successfully")

	return &ServiceDependencies{
		Library:       library,
		TemplateStore: templateStore,
		Client:        client,
		Service:       service,
		Logger:        logger,
		Config:        cfg,
	}, nil
}

// setupHealthChecks configures health checks for the optimize service
func setupHealthChecks(manager *health.Manager, deps *ServiceDependencies) {
	manager.AddCheckerFunc("cases", func(ctx context.Context) health.CheckResult {
		if deps.Library.Count() == 0 {
			return health.CheckResult{
				Status:    health.StatusUnhealthy,
				Error:     "case library is empty",
				Timestamp: time.Now(),
			}
		}
		return health.CheckResult{
			Status:    health.StatusHealthy,
			Timestamp: time.Now(),
			Metadata: map[string]interface{}{
				"case_count": deps.Library.Count(),
				"categories": deps.Library.CategoryStats(),
			},
		}
	})

	if deps.TemplateStore != nil {
		manager.AddChecker("templates", health.DatabaseHealthChecker("templates", deps.TemplateStore.Ping))
	}
}

// createOptimizeHandler creates the optimization endpoint handler
func createOptimizeHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OptimizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
			return
		}

		result, err := deps.Service.Optimize(c.Request.Context(), optimizer.Request{
			Prompt:            req.Prompt,
			LocaleHint:        req.LocaleHint,
			AspectRatio:       req.AspectRatio,
			WantExportFormats: req.WantExportFormats,
		})
		if err != nil {
			status, message := classifyError(err)
			deps.Logger.Warn("Optimization request failed",
				zap.Int("status", status),
				zap.Error(err),
			)
			c.JSON(status, gin.H{"error": message})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// classifyError maps pipeline errors to HTTP responses
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, optimizer.ErrEmptyPrompt):
		return http.StatusBadRequest, "prompt is required"
	case errors.Is(err, optimizer.ErrPromptTooLong):
		return http.StatusBadRequest, fmt.Sprintf("prompt too long (max %d characters)", optimizer.MaxPromptLength)
	case errors.Is(err, cases.ErrNoMatch):
		return http.StatusNotFound, "no matching case found"
	case errors.Is(err, extract.ErrNoJSONContent), errors.Is(err, extract.ErrMalformedJSON), errors.Is(err, extract.ErrEmptyResponse):
		return http.StatusBadGateway, "model returned unusable output"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream request timed out"
	default:
		return http.StatusInternalServerError, "optimization failed"
	}
}
