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

// Package config loads and validates application configuration from YAML
// files and environment variables. Environment variables take precedence
// over config file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Cases     CasesConfig     `mapstructure:"cases"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OpenAIConfig contains upstream API configuration
type OpenAIConfig struct {
	APIKey              string `mapstructure:"apikey"`
	Endpoint            string `mapstructure:"endpoint"`
	ChatModel           string `mapstructure:"chat_model"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions"`
}

// CasesConfig contains case library configuration
type CasesConfig struct {
	DatasetPath     string  `mapstructure:"dataset_path"`
	SimilarityFloor float64 `mapstructure:"similarity_floor"`
}

// OptimizerConfig contains pipeline tuning
type OptimizerConfig struct {
	ImitateThreshold        float64 `mapstructure:"imitate_threshold"`
	Temperature             float64 `mapstructure:"temperature"`
	MaxTokens               int     `mapstructure:"max_tokens"`
	GenerateTimeoutSeconds  int     `mapstructure:"generate_timeout_seconds"`
	ExportTimeoutSeconds    int     `mapstructure:"export_timeout_seconds"`
	IncludeDiagnosticDetail bool    `mapstructure:"include_diagnostic_detail"`
}

// TemplatesConfig contains the template override store configuration.
// An empty db_path disables the store and the built-in templates apply.
type TemplatesConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v, opts.Environment)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PROMPT_ARCHITECT")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper, environment string) {
	// Upstream API defaults
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.embedding_dimensions", 1536)

	// Case library defaults
	v.SetDefault("cases.dataset_path", "./data/cases.json")
	v.SetDefault("cases.similarity_floor", 0.30)

	// Optimizer defaults
	v.SetDefault("optimizer.imitate_threshold", 0.60)
	v.SetDefault("optimizer.temperature", 0.7)
	v.SetDefault("optimizer.max_tokens", 1024)
	v.SetDefault("optimizer.generate_timeout_seconds", 30)
	v.SetDefault("optimizer.export_timeout_seconds", 15)
	v.SetDefault("optimizer.include_diagnostic_detail", environment == "development")

	// Template store defaults (empty path disables the store)
	v.SetDefault("templates.db_path", "")

	// Server defaults
	v.SetDefault("server.port", 8084)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; a missing file is fine when env vars carry
	// the required values.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":     "openai.apikey",
		"OPENAI_ENDPOINT":    "openai.endpoint",
		"CASES_DATASET_PATH": "cases.dataset_path",
		"TEMPLATES_DB_PATH":  "templates.db_path",
		"LOG_LEVEL":          "logging.level",
		"LOG_FORMAT":         "logging.format",
		"LOG_OUTPUT":         "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.OpenAI.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "openai.apikey",
			Message: "API key is required. Set via config file or OPENAI_API_KEY environment variable",
		})
	}

	if config.OpenAI.EmbeddingDimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "openai.embedding_dimensions",
			Message: "embedding_dimensions must be greater than 0",
		})
	}

	if config.Cases.DatasetPath == "" {
		errs = append(errs, ValidationError{
			Field:   "cases.dataset_path",
			Message: "case dataset path is required",
		})
	}

	if config.Cases.SimilarityFloor < 0 || config.Cases.SimilarityFloor > 1 {
		errs = append(errs, ValidationError{
			Field:   "cases.similarity_floor",
			Message: "similarity_floor must be between 0 and 1",
		})
	}

	if config.Optimizer.ImitateThreshold < 0 || config.Optimizer.ImitateThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "optimizer.imitate_threshold",
			Message: "imitate_threshold must be between 0 and 1",
		})
	}

	if config.Optimizer.ImitateThreshold < config.Cases.SimilarityFloor {
		errs = append(errs, ValidationError{
			Field:   "optimizer.imitate_threshold",
			Message: "imitate_threshold cannot be below cases.similarity_floor",
		})
	}

	if config.Optimizer.Temperature < 0 || config.Optimizer.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "optimizer.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Optimizer.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "optimizer.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if config.Templates.DBPath != "" {
		if err := validateDirectoryExists(filepath.Dir(config.Templates.DBPath)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "templates.db_path",
				Message: fmt.Sprintf("template database directory does not exist: %s", filepath.Dir(config.Templates.DBPath)),
			})
		}
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// getEnvironment returns the current environment (development, production, etc.)
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			Environment:      getEnvironment(),
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		callback(config)
	})

	return nil
}
