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

// Package openai wraps the upstream embedding and text-generation API behind
// the two narrow operations the optimizer needs: embedding a query and
// generating structured (JSON-only) output.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultEmbeddingModel defines the model used for query embeddings.
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultChatModel defines the model used for prompt generation.
	DefaultChatModel = "gpt-4o-mini"
	// MaxRetries defines the maximum number of retry attempts.
	MaxRetries = 3
	// BaseRetryDelay defines the base delay for exponential backoff.
	BaseRetryDelay = time.Second
)

// Options configures a Client.
type Options struct {
	// Endpoint overrides the API base URL when non-empty.
	Endpoint string
	// EmbeddingModel overrides DefaultEmbeddingModel when non-empty.
	EmbeddingModel string
	// ChatModel overrides DefaultChatModel when non-empty.
	ChatModel string
	// EmbeddingDimensions is the expected embedding vector length.
	EmbeddingDimensions int
}

// GenerationOptions controls a single structured generation call.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}

// RetryableError represents an upstream error that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// Client wraps the go-openai client for embedding and structured generation.
type Client struct {
	client         *openai.Client
	logger         *zap.Logger
	embeddingModel string
	chatModel      string
	embeddingDims  int
}

// NewClient creates a new upstream API client.
func NewClient(apiKey string, opts Options, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.Endpoint != "" {
		cfg.BaseURL = opts.Endpoint
	}

	embeddingModel := opts.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := opts.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	client := &Client{
		client:         openai.NewClientWithConfig(cfg),
		logger:         logger,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		embeddingDims:  opts.EmbeddingDimensions,
	}

	logger.Info("Upstream API client initialized",
		zap.String("embedding_model", embeddingModel),
		zap.String("chat_model", chatModel),
		zap.Int("embedding_dimensions", opts.EmbeddingDimensions),
	)

	return client, nil
}

// EmbedQuery generates an embedding vector for a single query text.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	c.logger.Debug("Generating query embedding",
		zap.String("query_preview", truncateText(query, 100)),
		zap.String("model", c.embeddingModel),
	)

	var embedding []float32
	err := c.withRetry(ctx, "embedding", func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{query},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return c.classifyAPIError(err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no embeddings returned")
		}
		embedding = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if c.embeddingDims > 0 && len(embedding) != c.embeddingDims {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), c.embeddingDims)
	}

	return embedding, nil
}

// GenerateStructured asks the model for a JSON-only response to the given
// instruction. The response format is pinned to a JSON object so the model
// emits a single parseable object instead of free text; extracting that
// object from the raw response still belongs to the caller.
func (c *Client) GenerateStructured(ctx context.Context, instruction string, opts GenerationOptions) (string, error) {
	c.logger.Debug("Creating structured completion",
		zap.String("model", c.chatModel),
		zap.Int("max_tokens", opts.MaxTokens),
		zap.Float64("temperature", float64(opts.Temperature)),
	)

	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := c.withRetry(ctx, "completion", func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return c.classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices returned")
		}
		content = resp.Choices[0].Message.Content

		c.logger.Debug("Structured completion finished",
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("structured generation failed: %w", err)
	}

	if content == "" {
		return "", fmt.Errorf("structured generation returned empty content")
	}

	return content, nil
}

// withRetry runs call with exponential backoff, honoring RetryAfter hints.
func (c *Client) withRetry(ctx context.Context, operation string, call func() error) error {
	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying upstream request",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		retryErr, ok := err.(*RetryableError)
		if !ok {
			return err
		}
		if retryErr.RetryAfter > 0 {
			delay = retryErr.RetryAfter
		} else {
			delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
		}
	}

	return fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// classifyAPIError determines whether an upstream error is retryable.
func (c *Client) classifyAPIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				RetryAfter: BaseRetryDelay,
			}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		default:
			return fmt.Errorf("upstream API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	return fmt.Errorf("upstream client error: %w", err)
}

// truncateText truncates text to a maximum length for logging.
func truncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "..."
}
