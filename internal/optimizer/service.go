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

// Package optimizer runs the case-gated prompt optimization pipeline:
// language detection, embedding, case retrieval, confidence gating, template
// rendering, structured generation, resilient extraction, optional export
// derivation, and response assembly. Each request is a stateless unit of
// work; the only shared state is the read-only case library.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/prompt-architect/internal/cases"
	"github.com/your-org/prompt-architect/internal/export"
	"github.com/your-org/prompt-architect/internal/extract"
	"github.com/your-org/prompt-architect/internal/gate"
	"github.com/your-org/prompt-architect/internal/language"
	"github.com/your-org/prompt-architect/internal/openai"
	"github.com/your-org/prompt-architect/internal/prompt"
	"go.uber.org/zap"
)

const (
	// MaxPromptLength bounds the user prompt, in characters.
	MaxPromptLength = 2000
	// DefaultAspectRatio applies when the request carries none.
	DefaultAspectRatio = "1:1"
	// DefaultSimilarityFloor is the existence floor below which retrieval is
	// treated as having found nothing at all.
	DefaultSimilarityFloor = 0.30
	// DefaultTemperature is the sampling temperature of the primary call.
	DefaultTemperature = 0.7
	// DefaultMaxTokens bounds the primary call output.
	DefaultMaxTokens = 1024
	// DefaultGenerateTimeout bounds each upstream call of the primary path.
	DefaultGenerateTimeout = 30 * time.Second
)

var (
	// ErrEmptyPrompt is returned when the request prompt is empty or blank.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrPromptTooLong is returned when the prompt exceeds MaxPromptLength.
	ErrPromptTooLong = errors.New("prompt too long")
)

// Embedder turns text into a fixed-length embedding vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator invokes the generative model in structured-output mode.
type Generator interface {
	GenerateStructured(ctx context.Context, instruction string, opts openai.GenerationOptions) (string, error)
}

// Request is a single optimization request.
type Request struct {
	Prompt            string
	LocaleHint        string
	AspectRatio       string
	WantExportFormats bool
}

// Options tunes the pipeline. Zero values select the documented defaults.
type Options struct {
	SimilarityFloor  float64
	ImitateThreshold float64
	Temperature      float32
	MaxTokens        int
	GenerateTimeout  time.Duration
	ExportTimeout    time.Duration
	// IncludeDiagnosticDetail controls whether the instruction template and
	// raw model response appear in diagnostics. Only development deployments
	// set this.
	IncludeDiagnosticDetail bool
}

func (o Options) withDefaults() Options {
	if o.SimilarityFloor == 0 {
		o.SimilarityFloor = DefaultSimilarityFloor
	}
	if o.ImitateThreshold == 0 {
		o.ImitateThreshold = gate.DefaultThreshold
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.GenerateTimeout == 0 {
		o.GenerateTimeout = DefaultGenerateTimeout
	}
	return o
}

// Service executes optimization requests.
type Service struct {
	embedder  Embedder
	generator Generator
	library   *cases.Library
	templates *prompt.Store
	deriver   *export.Deriver
	assembler *assembler
	opts      Options
	logger    *zap.Logger
}

// NewService wires the pipeline. templates may be nil, in which case the
// built-in instruction template is used.
func NewService(embedder Embedder, generator Generator, library *cases.Library, templates *prompt.Store, opts Options, logger *zap.Logger) *Service {
	opts = opts.withDefaults()
	return &Service{
		embedder:  embedder,
		generator: generator,
		library:   library,
		templates: templates,
		deriver:   export.NewDeriver(generator, opts.ExportTimeout, logger),
		assembler: newAssembler(opts.IncludeDiagnosticDetail),
		opts:      opts,
		logger:    logger,
	}
}

// modelOutput mirrors the JSON object the primary generation call returns.
type modelOutput struct {
	OptimizedPrompt    string              `json:"optimizedPrompt"`
	ReferenceCaseUsed  *referenceCaseUsed  `json:"referenceCaseUsed"`
	EnhancementLogic   string              `json:"enhancementLogic"`
	ModelAdvantage     string              `json:"modelAdvantage"`
	SuggestedModifiers []string            `json:"suggestedModifiers"`
	TagExplanations    []MarkerExplanation `json:"tagExplanations"`
}

type referenceCaseUsed struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	RelevanceReason string `json:"relevanceReason"`
}

// Optimize runs the full pipeline for one request.
func (s *Service) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	requestID := uuid.NewString()

	if err := validate(req); err != nil {
		return nil, err
	}
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}

	log := s.logger.With(zap.String("request_id", requestID))
	log.Info("Starting prompt optimization",
		zap.String("prompt_preview", truncate(req.Prompt, 100)),
		zap.String("locale_hint", req.LocaleHint),
		zap.String("aspect_ratio", aspectRatio),
		zap.Bool("export_formats", req.WantExportFormats),
	)

	// Language detection is pure and always succeeds.
	detection := language.Detect(req.Prompt, req.LocaleHint)
	log.Info("Detected language",
		zap.String("language", detection.Language),
		zap.String("method", detection.Method),
	)

	// Embed the user prompt.
	embedCtx, cancelEmbed := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	embedding, err := s.embedder.EmbedQuery(embedCtx, req.Prompt)
	cancelEmbed()
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	// Retrieve the best case; the existence floor is a quality bar separate
	// from the disclosure gate below.
	match, err := s.library.FindBest(embedding)
	if err != nil {
		return nil, err
	}
	if match.Similarity < s.opts.SimilarityFloor {
		log.Info("Best case below existence floor",
			zap.Float64("similarity", match.Similarity),
			zap.Float64("floor", s.opts.SimilarityFloor),
		)
		return nil, fmt.Errorf("best similarity %.2f below floor %.2f: %w",
			match.Similarity, s.opts.SimilarityFloor, cases.ErrNoMatch)
	}

	// Gate the match. For GENERIC the renderer is built from a case-free
	// code path: the matched case is structurally unreachable from here on.
	decision := gate.Decide(match, s.opts.ImitateThreshold)
	var renderer prompt.Renderer
	if decision.Strategy == gate.StrategyImitate {
		log.Info("Confidence gate passed, case visible to generation",
			zap.Float64("similarity", decision.Similarity),
			zap.Float64("threshold", s.opts.ImitateThreshold),
			zap.String("case_id", decision.VisibleCase.ID),
		)
		renderer = prompt.NewImitateRenderer(prompt.ImitateTemplate(s.templates), decision.VisibleCase, detection.Language)
	} else {
		log.Info("Confidence gate failed, case hidden from generation",
			zap.Float64("similarity", decision.Similarity),
			zap.Float64("threshold", s.opts.ImitateThreshold),
		)
		renderer = prompt.NewGenericRenderer(detection.Language, req.Prompt, aspectRatio)
	}

	instruction := renderer.Instruction() + "\n\n" + prompt.UserMessage(req.Prompt)

	// Primary generation call; a timeout here is fatal for the request.
	genCtx, cancelGen := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	raw, err := s.generator.GenerateStructured(genCtx, instruction, openai.GenerationOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	cancelGen()
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	var out modelOutput
	if err := extract.Unmarshal(raw, &out); err != nil {
		log.Warn("Failed to extract structured content from model response",
			zap.Error(err),
			zap.String("response_preview", truncate(raw, 200)),
		)
		return nil, err
	}
	if out.OptimizedPrompt == "" {
		return nil, fmt.Errorf("model response missing optimizedPrompt: %w", extract.ErrMalformedJSON)
	}

	var formats *export.Formats
	if req.WantExportFormats {
		derived := s.deriver.Derive(ctx, out.OptimizedPrompt, aspectRatio)
		formats = &derived
	}

	result := s.assembler.assemble(assemblyInput{
		requestID:      requestID,
		request:        req,
		aspectRatio:    aspectRatio,
		detection:      detection,
		decision:       decision,
		threshold:      s.opts.ImitateThreshold,
		matchedCaseID:  match.Case.ID,
		instruction:    instruction,
		rawResponse:    raw,
		output:         &out,
		exportFormats:  formats,
		processingTime: time.Since(start),
	})

	log.Info("Prompt optimization completed",
		zap.String("strategy", decision.Strategy.String()),
		zap.Float64("similarity", decision.Similarity),
		zap.Int64("processing_time_ms", result.Diagnostics.ProcessingTimeMs),
		zap.Bool("export_formats_generated", formats != nil),
	)

	return result, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if len([]rune(req.Prompt)) > MaxPromptLength {
		return fmt.Errorf("%w (max %d characters)", ErrPromptTooLong, MaxPromptLength)
	}
	return nil
}

func truncate(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "..."
}
