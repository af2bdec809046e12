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

package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/prompt-architect/internal/openai"
)

type stubGenerator struct {
	response    string
	err         error
	instruction string
	opts        openai.GenerationOptions
}

func (g *stubGenerator) GenerateStructured(ctx context.Context, instruction string, opts openai.GenerationOptions) (string, error) {
	g.instruction = instruction
	g.opts = opts
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

const taggedPrompt = "A portrait of <anchor>a cat</anchor> under <atmos>neon light</atmos>, <detail>wet fur texture</detail>, <tech>85mm lens</tech>"

func TestStripMarkers(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "all marker types", input: taggedPrompt, expected: "A portrait of a cat under neon light, wet fur texture, 85mm lens"},
		{name: "mixed case markers", input: "<Anchor>a cat</ANCHOR> at night", expected: "a cat at night"},
		{name: "subject marker", input: "<subject>a dog</subject> running", expected: "a dog running"},
		{name: "no markers", input: "a plain prompt", expected: "a plain prompt"},
		{name: "surrounding whitespace", input: "  <tech>8k</tech>  ", expected: "8k"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StripMarkers(tc.input))
		})
	}
}

func TestFallback_Deterministic(t *testing.T) {
	first := Fallback("a neon cat on a rooftop", "16:9")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Fallback("a neon cat on a rooftop", "16:9"))
	}

	assert.Equal(t, "a neon cat on a rooftop --ar 16:9 --v 6.1 --style raw", first.Midjourney)
	assert.Equal(t, "a neon cat on a rooftop", first.DALLE)
	assert.Equal(t, "(masterpiece, best quality:1.2), a neon cat on a rooftop", first.SD)
}

func TestFallback_CapsMidjourneyDescriptors(t *testing.T) {
	long := strings.Repeat("very detailed scene, ", 30)
	formats := Fallback(long, "1:1")

	require.True(t, strings.HasSuffix(formats.Midjourney, " --ar 1:1 --v 6.1 --style raw"))
	descriptors := strings.TrimSuffix(formats.Midjourney, " --ar 1:1 --v 6.1 --style raw")
	assert.LessOrEqual(t, len(descriptors), 200)

	// The other formats keep the full prompt.
	assert.Equal(t, long, formats.DALLE)
}

func TestFallback_TruncatesMultibyteOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("夜の街を歩く猫、", 40)
	formats := Fallback(long, "1:1")

	require.True(t, strings.HasSuffix(formats.Midjourney, " --ar 1:1 --v 6.1 --style raw"))
	descriptors := strings.TrimSuffix(formats.Midjourney, " --ar 1:1 --v 6.1 --style raw")
	assert.True(t, utf8.ValidString(descriptors), "Truncation must not split a rune")
	assert.LessOrEqual(t, len(descriptors), 200)
	assert.True(t, strings.HasPrefix(long, descriptors))
}

func TestDerive_UsesModelResponse(t *testing.T) {
	gen := &stubGenerator{response: `{
		"midjourney": "neon cat, rooftop --ar 16:9 --v 6.1 --style raw",
		"dalle": "A neon-lit cat sits on a rooftop.",
		"sd": "(masterpiece, best quality:1.2), neon cat, rooftop"
	}`}
	d := NewDeriver(gen, 0, zap.NewNop())

	formats := d.Derive(context.Background(), taggedPrompt, "16:9")

	assert.Equal(t, "neon cat, rooftop --ar 16:9 --v 6.1 --style raw", formats.Midjourney)
	assert.Equal(t, "A neon-lit cat sits on a rooftop.", formats.DALLE)
	assert.Equal(t, "(masterpiece, best quality:1.2), neon cat, rooftop", formats.SD)

	assert.Equal(t, float32(DeriveTemperature), gen.opts.Temperature)
	assert.Equal(t, DeriveMaxTokens, gen.opts.MaxTokens)
	assert.NotContains(t, gen.instruction, "<anchor>", "Markers must be stripped before the export call")
}

func TestDerive_FallsBackOnCallFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("api unavailable")}
	d := NewDeriver(gen, 0, zap.NewNop())

	formats := d.Derive(context.Background(), taggedPrompt, "9:16")

	expected := Fallback(StripMarkers(taggedPrompt), "9:16")
	assert.Equal(t, expected, formats)
}

func TestDerive_FallsBackOnUnparseableResponse(t *testing.T) {
	gen := &stubGenerator{response: "I am unable to format that."}
	d := NewDeriver(gen, 0, zap.NewNop())

	formats := d.Derive(context.Background(), "a cat", "1:1")
	assert.Equal(t, Fallback("a cat", "1:1"), formats)
}

func TestDerive_PerFieldFallback(t *testing.T) {
	gen := &stubGenerator{response: `{"midjourney": "cat --ar 1:1 --v 6.1 --style raw", "dalle": "", "sd": ""}`}
	d := NewDeriver(gen, 0, zap.NewNop())

	formats := d.Derive(context.Background(), "a cat", "1:1")
	fallback := Fallback("a cat", "1:1")

	assert.Equal(t, "cat --ar 1:1 --v 6.1 --style raw", formats.Midjourney)
	assert.Equal(t, fallback.DALLE, formats.DALLE)
	assert.Equal(t, fallback.SD, formats.SD)
}

func TestDerive_StripsEchoedMarkers(t *testing.T) {
	gen := &stubGenerator{response: `{
		"midjourney": "<anchor>cat</anchor> --ar 1:1 --v 6.1 --style raw",
		"dalle": "A <atmos>moody</atmos> cat.",
		"sd": "(masterpiece:1.2), <tech>8k</tech> cat"
	}`}
	d := NewDeriver(gen, 0, zap.NewNop())

	formats := d.Derive(context.Background(), "a cat", "1:1")

	for _, out := range []string{formats.Midjourney, formats.DALLE, formats.SD} {
		assert.NotRegexp(t, `</?(?:anchor|atmos|detail|tech)>`, out)
	}
}
