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

// Package main provides optimizectl, a command line interface to the prompt
// optimization pipeline for local experimentation and operations.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/your-org/prompt-architect/internal/cases"
	"github.com/your-org/prompt-architect/internal/config"
	"github.com/your-org/prompt-architect/internal/openai"
	"github.com/your-org/prompt-architect/internal/optimizer"
	"github.com/your-org/prompt-architect/internal/prompt"
	"go.uber.org/zap"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "optimizectl",
		Short: "Operate the prompt optimization engine from the command line",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newCasesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newOptimizeCmd() *cobra.Command {
	var (
		promptText string
		locale     string
		aspect     string
		exportFmt  bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run one optimization request and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			service, store, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close() }()
			}

			result, err := service.Optimize(cmd.Context(), optimizer.Request{
				Prompt:            promptText,
				LocaleHint:        locale,
				AspectRatio:       aspect,
				WantExportFormats: exportFmt,
			})
			if err != nil {
				return fmt.Errorf("optimization failed: %w", err)
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	cmd.Flags().StringVar(&promptText, "prompt", "", "user prompt to optimize")
	cmd.Flags().StringVar(&locale, "locale", "", "browser-style locale hint, e.g. zh-CN")
	cmd.Flags().StringVar(&aspect, "aspect", "", "target aspect ratio, e.g. 16:9")
	cmd.Flags().BoolVar(&exportFmt, "export", false, "derive export formats for external tools")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func newCasesCmd() *cobra.Command {
	casesCmd := &cobra.Command{
		Use:   "cases",
		Short: "Inspect the case library",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print case library size and category distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			library, err := cases.LoadLibrary(cfg.Cases.DatasetPath, cfg.OpenAI.EmbeddingDimensions, logger)
			if err != nil {
				return fmt.Errorf("failed to load case library: %w", err)
			}

			fmt.Printf("cases: %d (dims: %d)\n", library.Count(), library.Dimensions())
			for category, count := range library.CategoryStats() {
				fmt.Printf("  %-10s %d\n", category, count)
			}
			return nil
		},
	}

	casesCmd.AddCommand(statsCmd)
	return casesCmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// CLI output goes to stdout; keep logs on stderr and quiet by default.
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.ErrorOutputPaths = []string{"stderr"}
	if cfg.Logging.Level == "debug" {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	logger, err := logCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, logger, nil
}

func buildService(cfg *config.Config, logger *zap.Logger) (*optimizer.Service, *prompt.Store, error) {
	library, err := cases.LoadLibrary(cfg.Cases.DatasetPath, cfg.OpenAI.EmbeddingDimensions, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load case library: %w", err)
	}

	var store *prompt.Store
	if cfg.Templates.DBPath != "" {
		store, err = prompt.NewStore(cfg.Templates.DBPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open template store: %w", err)
		}
	}

	client, err := openai.NewClient(cfg.OpenAI.APIKey, openai.Options{
		Endpoint:            cfg.OpenAI.Endpoint,
		ChatModel:           cfg.OpenAI.ChatModel,
		EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: cfg.OpenAI.EmbeddingDimensions,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize upstream API client: %w", err)
	}

	service := optimizer.NewService(client, client, library, store, optimizer.Options{
		SimilarityFloor:         cfg.Cases.SimilarityFloor,
		ImitateThreshold:        cfg.Optimizer.ImitateThreshold,
		Temperature:             float32(cfg.Optimizer.Temperature),
		MaxTokens:               cfg.Optimizer.MaxTokens,
		GenerateTimeout:         time.Duration(cfg.Optimizer.GenerateTimeoutSeconds) * time.Second,
		ExportTimeout:           time.Duration(cfg.Optimizer.ExportTimeoutSeconds) * time.Second,
		IncludeDiagnosticDetail: cfg.Optimizer.IncludeDiagnosticDetail,
	}, logger)

	return service, store, nil
}
