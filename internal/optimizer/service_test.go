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

package optimizer

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/prompt-architect/internal/cases"
	"github.com/your-org/prompt-architect/internal/extract"
	"github.com/your-org/prompt-architect/internal/openai"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

// scriptedGenerator replays canned responses in call order, repeating the last
// one, and records every instruction it received.
type scriptedGenerator struct {
	responses    []string
	err          error
	instructions []string
}

func (g *scriptedGenerator) GenerateStructured(ctx context.Context, instruction string, opts openai.GenerationOptions) (string, error) {
	g.instructions = append(g.instructions, instruction)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.instructions) - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

const imitateResponse = `{
	"optimizedPrompt": "A portrait of <anchor>a cat</anchor> under <atmos>neon signage</atmos>, <tech>85mm lens</tech>",
	"referenceCaseUsed": {"id": "case-neon", "title": "Neon Noir Portrait", "relevanceReason": "Matches the neon mood"},
	"enhancementLogic": "Borrowed rim lighting from the reference technique",
	"modelAdvantage": "",
	"suggestedModifiers": ["cinematic grade", "film grain", "wide shot"],
	"tagExplanations": [{"content": "a cat", "type": "anchor", "why": "core subject"}]
}`

const genericResponse = `{
	"optimizedPrompt": "A detailed portrait of <anchor>a cat</anchor> in soft window light",
	"referenceCaseUsed": null,
	"enhancementLogic": "Expanded the subject into a narrative scene",
	"modelAdvantage": "",
	"suggestedModifiers": ["watercolor", "studio photo", "flat illustration"],
	"tagExplanations": [{"content": "a cat", "type": "anchor", "why": "core subject"}]
}`

const exportResponse = `{
	"midjourney": "neon cat portrait --ar 16:9 --v 6.1 --style raw",
	"dalle": "A neon-lit portrait of a cat.",
	"sd": "(masterpiece, best quality:1.2), neon cat portrait"
}`

func neonCase() cases.Case {
	return cases.Case{
		ID:       "case-neon",
		Title:    "Neon Noir Portrait",
		Category: cases.CategoryVisual,
		Template: cases.TemplatePayload{
			Template: "a {{subject}} lit by neon signage, rain-slicked street",
		},
		Tags: cases.Tags{
			Style:     []string{"neon noir"},
			Technique: []string{"rim lighting"},
		},
		Vector: []float32{1, 0, 0},
	}
}

func newTestService(queryVec []float32, gen *scriptedGenerator) *Service {
	lib := cases.NewLibrary([]cases.Case{neonCase()}, 3, zap.NewNop())
	return NewService(&stubEmbedder{vec: queryVec}, gen, lib, nil, Options{}, zap.NewNop())
}

// queryAt returns a unit query vector whose cosine similarity against the
// library case vector [1,0,0] is exactly sim.
func queryAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

func TestOptimize_Validation(t *testing.T) {
	svc := newTestService(queryAt(1.0), &scriptedGenerator{responses: []string{imitateResponse}})

	_, err := svc.Optimize(context.Background(), Request{Prompt: ""})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = svc.Optimize(context.Background(), Request{Prompt: "   \n\t "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = svc.Optimize(context.Background(), Request{Prompt: strings.Repeat("x", MaxPromptLength+1)})
	assert.ErrorIs(t, err, ErrPromptTooLong)
}

func TestOptimize_ImitatePath(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{imitateResponse}}
	svc := newTestService(queryAt(1.0), gen)

	result, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat in neon light"})
	require.NoError(t, err)

	assert.Equal(t, "IMITATE", result.Diagnostics.Strategy)
	assert.False(t, result.Diagnostics.CaseHiddenFromModel)
	assert.InDelta(t, 1.0, result.Diagnostics.Similarity, 1e-6)
	assert.Equal(t, 0.60, result.Diagnostics.ThresholdUsed)
	assert.Equal(t, "case-neon", result.Diagnostics.MatchedCaseID)

	assert.Equal(t, "case-neon", result.ReferenceCase.ID)
	assert.Equal(t, "Neon Noir Portrait", result.ReferenceCase.Title)
	assert.Equal(t, "Matches the neon mood", result.ReferenceCase.RelevanceReason)

	assert.Equal(t, "a cute cat in neon light", result.OriginalPrompt)
	assert.Contains(t, result.OptimizedPrompt, "<anchor>a cat</anchor>")
	assert.Equal(t, "English", result.DetectedLanguage)
	assert.Len(t, result.SuggestedModifiers, 3)
	assert.Nil(t, result.ExportFormats)

	// The instruction must disclose the case and carry the user message.
	require.Len(t, gen.instructions, 1)
	assert.Contains(t, gen.instructions[0], "Neon Noir Portrait")
	assert.Contains(t, gen.instructions[0], "rim lighting")
	assert.Contains(t, gen.instructions[0], `User Input: "a cute cat in neon light"`)
}

func TestOptimize_GenericNearMiss(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{genericResponse}}
	svc := newTestService(queryAt(0.59), gen)

	result, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat at home"})
	require.NoError(t, err)

	assert.Equal(t, "GENERIC", result.Diagnostics.Strategy)
	assert.True(t, result.Diagnostics.CaseHiddenFromModel)
	assert.InDelta(t, 0.59, result.Diagnostics.Similarity, 1e-4)
	assert.Equal(t, "case-neon", result.Diagnostics.MatchedCaseID,
		"Diagnostics keep the matched case id even when it was hidden")

	assert.Equal(t, NoReferenceCaseTitle, result.ReferenceCase.Title)
	assert.Equal(t, NoReferenceCaseReason, result.ReferenceCase.RelevanceReason)
	assert.Empty(t, result.ReferenceCase.ID)

	// The near-miss case must be completely absent from what the model saw.
	require.Len(t, gen.instructions, 1)
	c := neonCase()
	for _, leak := range []string{c.ID, c.Title, c.Template.Template, "rim lighting", "neon noir"} {
		assert.NotContains(t, gen.instructions[0], leak, "Hidden case data leaked into the instruction")
	}
	assert.Contains(t, gen.instructions[0], `User Input: "a cute cat at home"`)
}

func TestOptimize_BelowExistenceFloor(t *testing.T) {
	svc := newTestService(queryAt(0.1), &scriptedGenerator{responses: []string{genericResponse}})

	_, err := svc.Optimize(context.Background(), Request{Prompt: "a spreadsheet formula"})
	assert.ErrorIs(t, err, cases.ErrNoMatch)
}

func TestOptimize_EmptyLibrary(t *testing.T) {
	lib := cases.NewLibrary(nil, 3, zap.NewNop())
	svc := NewService(&stubEmbedder{vec: queryAt(1.0)}, &scriptedGenerator{}, lib, nil, Options{}, zap.NewNop())

	_, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	assert.ErrorIs(t, err, cases.ErrNoMatch)
}

func TestOptimize_EmbedderFailure(t *testing.T) {
	lib := cases.NewLibrary([]cases.Case{neonCase()}, 3, zap.NewNop())
	svc := NewService(&stubEmbedder{err: errors.New("embedding api down")}, &scriptedGenerator{}, lib, nil, Options{}, zap.NewNop())

	_, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding failed")
}

func TestOptimize_GeneratorFailure(t *testing.T) {
	svc := newTestService(queryAt(1.0), &scriptedGenerator{err: errors.New("chat api down")})

	_, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
}

func TestOptimize_ResponseErrors(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		expected error
	}{
		{name: "plain prose", response: "I cannot help with that.", expected: extract.ErrNoJSONContent},
		{name: "truncated json", response: `{"optimizedPrompt": "a cat`, expected: extract.ErrMalformedJSON},
		{name: "missing optimizedPrompt", response: `{"enhancementLogic": "text"}`, expected: extract.ErrMalformedJSON},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(queryAt(1.0), &scriptedGenerator{responses: []string{tc.response}})

			_, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestOptimize_DiagnosticRedaction(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{imitateResponse}}
	lib := cases.NewLibrary([]cases.Case{neonCase()}, 3, zap.NewNop())
	svc := NewService(&stubEmbedder{vec: queryAt(1.0)}, gen, lib, nil, Options{}, zap.NewNop())

	result, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics.PromptTemplate)
	assert.Empty(t, result.Diagnostics.RawModelResponse)

	// Fields reappear when diagnostic detail is enabled.
	gen = &scriptedGenerator{responses: []string{imitateResponse}}
	svc = NewService(&stubEmbedder{vec: queryAt(1.0)}, gen, lib, nil, Options{IncludeDiagnosticDetail: true}, zap.NewNop())

	result, err = svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	require.NoError(t, err)
	assert.Equal(t, gen.instructions[0], result.Diagnostics.PromptTemplate)
	assert.Equal(t, imitateResponse, result.Diagnostics.RawModelResponse)
}

func TestOptimize_HiddenCaseAbsentFromDetailedDiagnostics(t *testing.T) {
	// Even with diagnostic detail on, a GENERIC request's diagnostics carry
	// only the matched case id, never its content.
	gen := &scriptedGenerator{responses: []string{genericResponse}}
	lib := cases.NewLibrary([]cases.Case{neonCase()}, 3, zap.NewNop())
	svc := NewService(&stubEmbedder{vec: queryAt(0.45)}, gen, lib, nil, Options{IncludeDiagnosticDetail: true}, zap.NewNop())

	result, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat at home"})
	require.NoError(t, err)

	assert.NotContains(t, result.Diagnostics.PromptTemplate, "Neon Noir Portrait")
	assert.Equal(t, "case-neon", result.Diagnostics.MatchedCaseID)
}

func TestOptimize_ExportFormats(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{imitateResponse, exportResponse}}
	svc := newTestService(queryAt(1.0), gen)

	result, err := svc.Optimize(context.Background(), Request{
		Prompt:            "a cute cat in neon light",
		AspectRatio:       "16:9",
		WantExportFormats: true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.ExportFormats)
	assert.True(t, result.Diagnostics.ExportFormatsGenerated)
	assert.Equal(t, "neon cat portrait --ar 16:9 --v 6.1 --style raw", result.ExportFormats.Midjourney)
	assert.Equal(t, "A neon-lit portrait of a cat.", result.ExportFormats.DALLE)

	require.Len(t, gen.instructions, 2, "Expected a primary call and an export call")
	assert.NotContains(t, gen.instructions[1], "<anchor>", "Export call must receive a marker-free prompt")
}

func TestOptimize_ExportFallbackOnSecondCallFailure(t *testing.T) {
	// A response the extractor cannot parse downgrades exports to the
	// programmatic fallback without failing the request.
	gen := &scriptedGenerator{responses: []string{imitateResponse, "no json here"}}
	svc := newTestService(queryAt(1.0), gen)

	result, err := svc.Optimize(context.Background(), Request{
		Prompt:            "a cute cat in neon light",
		AspectRatio:       "16:9",
		WantExportFormats: true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.ExportFormats)
	assert.True(t, strings.HasSuffix(result.ExportFormats.Midjourney, "--ar 16:9 --v 6.1 --style raw"))
	assert.True(t, strings.HasPrefix(result.ExportFormats.SD, "(masterpiece, best quality:1.2), "))
}

func TestOptimize_Deterministic(t *testing.T) {
	run := func() *Result {
		gen := &scriptedGenerator{responses: []string{imitateResponse, exportResponse}}
		svc := newTestService(queryAt(1.0), gen)
		result, err := svc.Optimize(context.Background(), Request{
			Prompt:            "a cute cat in neon light",
			AspectRatio:       "16:9",
			WantExportFormats: true,
		})
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.OptimizedPrompt, second.OptimizedPrompt)
	assert.Equal(t, first.ReferenceCase, second.ReferenceCase)
	assert.Equal(t, first.ExportFormats, second.ExportFormats)
	assert.Equal(t, first.Diagnostics.Strategy, second.Diagnostics.Strategy)
	assert.Equal(t, first.Diagnostics.Similarity, second.Diagnostics.Similarity)
}

func TestOptimize_DefaultAspectRatio(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{genericResponse}}
	svc := newTestService(queryAt(0.45), gen)

	_, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat at home"})
	require.NoError(t, err)

	require.Len(t, gen.instructions, 1)
	assert.Contains(t, gen.instructions[0], "`1:1`")
}

func TestOptimize_NilCollectionsBecomeEmpty(t *testing.T) {
	response := `{"optimizedPrompt": "a cat"}`
	svc := newTestService(queryAt(1.0), &scriptedGenerator{responses: []string{response}})

	result, err := svc.Optimize(context.Background(), Request{Prompt: "a cute cat"})
	require.NoError(t, err)

	assert.NotNil(t, result.SuggestedModifiers)
	assert.Empty(t, result.SuggestedModifiers)
	assert.NotNil(t, result.TagExplanations)
	assert.Empty(t, result.TagExplanations)
}
