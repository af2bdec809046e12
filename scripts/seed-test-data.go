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

// Command seed-test-data writes a small case dataset to data/cases.json for
// local development. With OPENAI_API_KEY set the cases get real embeddings;
// otherwise deterministic mock vectors are used, which is enough to exercise
// retrieval end to end.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/your-org/prompt-architect/internal/cases"
	"github.com/your-org/prompt-architect/internal/openai"
	"go.uber.org/zap"
)

const (
	outputPath    = "data/cases.json"
	embeddingDims = 1536
)

func main() {
	log.Println("Seeding case dataset...")

	seed := seedCases()

	if err := embedCases(seed); err != nil {
		log.Fatalf("Failed to embed cases: %v", err)
	}

	if err := writeDataset(seed); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}

	log.Printf("Wrote %d cases to %s", len(seed), outputPath)
}

func seedCases() []cases.Case {
	return []cases.Case{
		{
			ID:       "case-neon-portrait",
			Title:    "Neon Noir Portrait",
			Category: cases.CategoryVisual,
			Template: cases.TemplatePayload{
				Template:        "A cinematic portrait of {{subject}} lit by neon signage on a rain-slicked street, shallow depth of field",
				DefaultSubject:  "a young woman",
				PlaceholderType: "subject",
			},
			SemanticSearchText: "neon cyberpunk night city portrait rain reflections moody",
			Tags: cases.Tags{
				Style:       []string{"neon noir", "cyberpunk"},
				Atmosphere:  []string{"rainy night", "moody"},
				Technique:   []string{"rim lighting", "shallow depth of field"},
				Composition: []string{"close-up portrait"},
				Intent:      []string{"character art"},
			},
			OriginPrompt: "a girl in neon light",
		},
		{
			ID:       "case-product-studio",
			Title:    "Studio Product Shot",
			Category: cases.CategoryVisual,
			Template: cases.TemplatePayload{
				Template:        "A studio photograph of {{subject}} on a seamless backdrop, soft diffused key light, crisp reflections",
				DefaultSubject:  "a perfume bottle",
				PlaceholderType: "subject",
			},
			SemanticSearchText: "product photography studio lighting commercial advertisement clean",
			Tags: cases.Tags{
				Style:       []string{"commercial", "minimalist"},
				Atmosphere:  []string{"clean", "bright"},
				Technique:   []string{"softbox lighting", "macro lens"},
				Composition: []string{"centered hero shot"},
				Intent:      []string{"advertising"},
			},
			OriginPrompt: "perfume bottle product photo",
		},
		{
			ID:       "case-slide-deck",
			Title:    "Presentation Slide Layout",
			Category: cases.CategoryLayout,
			Template: cases.TemplatePayload{
				Template:        "A professional presentation slide about {{subject}}, bold headline typography, generous whitespace, accent color blocks",
				DefaultSubject:  "quarterly results",
				PlaceholderType: "topic",
			},
			SemanticSearchText: "ppt slide deck layout presentation business infographic typography",
			Tags: cases.Tags{
				Style:       []string{"corporate", "flat design"},
				Atmosphere:  []string{"professional"},
				Technique:   []string{"grid layout", "typographic hierarchy"},
				Composition: []string{"16:9 slide"},
				Intent:      []string{"business presentation"},
			},
			OriginPrompt: "make a ppt slide",
		},
		{
			ID:       "case-watercolor-landscape",
			Title:    "Watercolor Landscape",
			Category: cases.CategoryVisual,
			Template: cases.TemplatePayload{
				Template:        "A loose watercolor painting of {{subject}}, wet-on-wet washes, soft color bleeding, visible paper texture",
				DefaultSubject:  "a mountain lake at dawn",
				PlaceholderType: "subject",
			},
			SemanticSearchText: "watercolor painting landscape soft artistic traditional media",
			Tags: cases.Tags{
				Style:       []string{"watercolor", "impressionist"},
				Atmosphere:  []string{"serene", "dawn light"},
				Technique:   []string{"wet-on-wet", "color bleeding"},
				Composition: []string{"wide landscape"},
				Intent:      []string{"wall art"},
			},
			OriginPrompt: "watercolor mountain scene",
		},
		{
			ID:       "case-object-removal",
			Title:    "Seamless Object Removal",
			Category: cases.CategoryEditing,
			Template: cases.TemplatePayload{
				Template:        "Using the provided image, remove {{subject}} and reconstruct the background behind it so the edit is undetectable",
				DefaultSubject:  "the person in the background",
				PlaceholderType: "target",
			},
			SemanticSearchText: "remove object erase edit photo cleanup inpainting background",
			Tags: cases.Tags{
				Style:       []string{"photorealistic"},
				Technique:   []string{"inpainting", "background reconstruction"},
				Composition: []string{"preserve original framing"},
				Intent:      []string{"photo editing"},
			},
			OriginPrompt: "remove the man from my photo",
		},
	}
}

// embedCases fills in vectors, preferring real embeddings when a key is set.
func embedCases(seed []cases.Case) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("No OPENAI_API_KEY set, using mock embeddings")
		for i := range seed {
			seed[i].Vector = mockVector(i)
		}
		return nil
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	client, err := openai.NewClient(apiKey, openai.Options{
		EmbeddingDimensions: embeddingDims,
	}, logger)
	if err != nil {
		return err
	}

	for i := range seed {
		vector, err := client.EmbedQuery(context.Background(), seed[i].SemanticSearchText)
		if err != nil {
			log.Printf("Embedding failed for %s, using mock vector: %v", seed[i].ID, err)
			vector = mockVector(i)
		}
		seed[i].Vector = vector
		log.Printf("Embedded case: %s", seed[i].ID)
	}

	return nil
}

// mockVector produces a deterministic vector that differs per case index so
// retrieval ordering stays stable across runs.
func mockVector(index int) []float32 {
	vector := make([]float32, embeddingDims)
	for j := 0; j < embeddingDims; j++ {
		vector[j] = float32((index*31+j)%100) / 100.0
	}
	return vector
}

func writeDataset(seed []cases.Case) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	payload := struct {
		Cases []cases.Case `json:"cases"`
	}{Cases: seed}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}
