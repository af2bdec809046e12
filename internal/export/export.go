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

// Package export derives platform-specific renderings of an optimized
// prompt for external image-generation tools. Export formats are a value-add
// rather than a correctness requirement: any failure of the secondary model
// call resolves to a deterministic programmatic fallback, never to a request
// failure.
package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/your-org/prompt-architect/internal/extract"
	"github.com/your-org/prompt-architect/internal/openai"
	"go.uber.org/zap"
)

const (
	// DeriveTemperature is the sampling temperature for the export call.
	DeriveTemperature = 0.5
	// DeriveMaxTokens bounds the export call output.
	DeriveMaxTokens = 800
	// DefaultTimeout bounds the export call; on expiry the fallback applies.
	DefaultTimeout = 15 * time.Second
	// compactLimit caps the descriptor list of the compact format before its
	// machine-readable parameters.
	compactLimit = 200
)

// markerPattern matches the inline semantic markers embedded in optimized
// prompts. Export formats must never carry them.
var markerPattern = regexp.MustCompile(`(?i)</?(?:anchor|subject|atmos|detail|tech)>`)

// Generator is the structured generation dependency of the deriver.
type Generator interface {
	GenerateStructured(ctx context.Context, instruction string, opts openai.GenerationOptions) (string, error)
}

// Formats holds the three platform-specific renderings.
type Formats struct {
	Midjourney string `json:"midjourney"`
	DALLE      string `json:"dalle"`
	SD         string `json:"sd"`
}

// Deriver produces export formats via a secondary structured generation call.
type Deriver struct {
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDeriver creates an export format deriver. A non-positive timeout uses
// DefaultTimeout.
func NewDeriver(generator Generator, timeout time.Duration, logger *zap.Logger) *Deriver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Deriver{generator: generator, timeout: timeout, logger: logger}
}

// Derive converts the optimized prompt into the three export formats. It
// never returns an error: on any failure of the model call or its parsing,
// the deterministic fallback is used instead.
func (d *Deriver) Derive(ctx context.Context, optimizedPrompt, aspectRatio string) Formats {
	cleaned := StripMarkers(optimizedPrompt)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.generator.GenerateStructured(ctx, deriveInstruction(cleaned, aspectRatio), openai.GenerationOptions{
		Temperature: DeriveTemperature,
		MaxTokens:   DeriveMaxTokens,
	})
	if err != nil {
		d.logger.Warn("Export derivation call failed, using fallback", zap.Error(err))
		return Fallback(cleaned, aspectRatio)
	}

	var formats Formats
	if err := extract.Unmarshal(raw, &formats); err != nil {
		d.logger.Warn("Export derivation response unparseable, using fallback", zap.Error(err))
		return Fallback(cleaned, aspectRatio)
	}

	// Partial responses fall back per field rather than wholesale.
	fallback := Fallback(cleaned, aspectRatio)
	if formats.Midjourney == "" {
		formats.Midjourney = fallback.Midjourney
	}
	if formats.DALLE == "" {
		formats.DALLE = fallback.DALLE
	}
	if formats.SD == "" {
		formats.SD = fallback.SD
	}

	// The model occasionally echoes markers back despite instructions.
	formats.Midjourney = StripMarkers(formats.Midjourney)
	formats.DALLE = StripMarkers(formats.DALLE)
	formats.SD = StripMarkers(formats.SD)

	return formats
}

// Fallback produces the three formats by programmatic re-formatting of the
// already-cleaned optimized prompt. It is fully deterministic.
func Fallback(cleanedPrompt, aspectRatio string) Formats {
	compact := cleanedPrompt
	if len(compact) > compactLimit {
		// Back off to a rune boundary so multibyte text is never split.
		cut := compactLimit
		for cut > 0 && !utf8.RuneStart(compact[cut]) {
			cut--
		}
		compact = compact[:cut]
	}
	return Formats{
		Midjourney: fmt.Sprintf("%s --ar %s --v 6.1 --style raw", compact, aspectRatio),
		DALLE:      cleanedPrompt,
		SD:         "(masterpiece, best quality:1.2), " + cleanedPrompt,
	}
}

// StripMarkers removes the inline semantic markers from a prompt.
func StripMarkers(s string) string {
	return strings.TrimSpace(markerPattern.ReplaceAllString(s, ""))
}

// deriveInstruction renders the instruction for the export derivation call.
func deriveInstruction(cleanedPrompt, aspectRatio string) string {
	return fmt.Sprintf(`You are an expert at converting AI image prompts between different platforms.

Your task is to convert the given OPTIMIZED PROMPT into THREE different platform-specific formats.

INPUT PROMPT:
%q

ASPECT RATIO: %s

OUTPUT REQUIREMENTS:

1. **MIDJOURNEY FORMAT**:
   - Use comma-separated visual descriptors
   - MUST end with: --ar %s --v 6.1 --style raw
   - Be concise but descriptive (max 200 chars before parameters)
   - Example: "A cute cyberpunk cat, neon rooftop, rain, volumetric lighting, 35mm lens --ar 16:9 --v 6.1 --style raw"

2. **DALL-E FORMAT**:
   - Write as a single flowing paragraph (2-3 sentences)
   - NO technical parameters like --ar or --v
   - Focus on describing interactions, mood, and composition naturally
   - Example: "A photorealistic wide shot of a futuristic cyberpunk city at night. In the foreground, a fluffy cat sits on a wet rooftop reflecting neon signs."

3. **STABLE DIFFUSION FORMAT**:
   - Start with quality boosters: (masterpiece, best quality:1.2)
   - Use comma-separated tags
   - Add emphasis with parentheses and weights, e.g., (detailed face:1.1)
   - NO --ar or --v parameters
   - Example: "(masterpiece, best quality:1.2), cute cat, cyberpunk city, neon lights, rain, (bokeh:1.1), 8k uhd, cinematic"

Return ONLY valid JSON with NO markdown:
{
  "midjourney": "the midjourney formatted prompt",
  "dalle": "the dalle formatted prompt",
  "sd": "the stable diffusion formatted prompt"
}`, cleanedPrompt, aspectRatio, aspectRatio)
}
