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

// Package cases provides the curated exemplar library and vector retrieval
// over it. The library is loaded once at startup and is read-only afterwards,
// so concurrent lookups need no locking.
package cases

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNoMatch is returned when retrieval cannot produce a usable case, either
// because the library is empty or because the best candidate scored below the
// existence floor.
var ErrNoMatch = errors.New("no matching case found")

// Category values carried by library cases.
const (
	CategoryVisual  = "VISUAL"
	CategoryLayout  = "LAYOUT"
	CategoryEditing = "EDITING"
	CategoryUtility = "UTILITY"
)

// TemplatePayload holds the canonical prompt template of a case.
type TemplatePayload struct {
	Template        string `json:"template"`
	DefaultSubject  string `json:"default_subject"`
	PlaceholderType string `json:"placeholder_type"`
}

// Tags holds the structured tag sets of a case.
type Tags struct {
	Style       []string `json:"style"`
	Atmosphere  []string `json:"atmosphere"`
	Technique   []string `json:"technique"`
	Composition []string `json:"composition"`
	Intent      []string `json:"intent"`
}

// StyleText returns the style tags joined for template substitution.
func (t Tags) StyleText() string {
	return strings.Join(t.Style, ", ")
}

// TechniqueText returns the technique tags joined for template substitution.
func (t Tags) TechniqueText() string {
	return strings.Join(t.Technique, ", ")
}

// Case is a curated, pre-embedded exemplar used as a retrieval target for
// style guidance. Cases are immutable once loaded.
type Case struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Category           string          `json:"category"`
	Template           TemplatePayload `json:"template_payload"`
	SemanticSearchText string          `json:"semantic_search_text"`
	Tags               Tags            `json:"tags"`
	OriginPrompt       string          `json:"origin_prompt"`
	Vector             []float32       `json:"vector"`
	Thumbnail          string          `json:"thumbnail"`
}

// Match is the result of a retrieval query against the library.
type Match struct {
	Case       *Case
	Similarity float64
	Rank       int
}

// SearchOptions controls Search behavior.
type SearchOptions struct {
	// TopK limits the number of results. Zero means 5.
	TopK int
	// MinSimilarity filters out results scoring below it.
	MinSimilarity float64
	// Category restricts candidates to a single category when non-empty.
	Category string
}

// Library is the read-only collection of cases queried by the optimizer.
type Library struct {
	cases  []Case
	dims   int
	logger *zap.Logger
}

// datasetFile matches the on-disk dataset layout.
type datasetFile struct {
	Cases []Case `json:"cases"`
}

// LoadLibrary reads the case dataset from path and validates vectors against
// the expected embedding dimensions. Cases with missing or mismatched vectors
// are skipped, not fatal: the dataset is built offline and may carry entries
// that were never embedded.
func LoadLibrary(path string, dims int, logger *zap.Logger) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case dataset: %w", err)
	}

	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse case dataset: %w", err)
	}

	return NewLibrary(file.Cases, dims, logger), nil
}

// NewLibrary builds a library from an already-decoded case slice.
func NewLibrary(all []Case, dims int, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}

	usable := make([]Case, 0, len(all))
	skipped := 0
	for _, c := range all {
		if len(c.Vector) != dims {
			skipped++
			logger.Warn("Skipping case with invalid vector",
				zap.String("case_id", c.ID),
				zap.Int("vector_dims", len(c.Vector)),
				zap.Int("expected_dims", dims),
			)
			continue
		}
		usable = append(usable, c)
	}

	logger.Info("Case library loaded",
		zap.Int("case_count", len(usable)),
		zap.Int("skipped", skipped),
		zap.Int("embedding_dims", dims),
	)

	return &Library{cases: usable, dims: dims, logger: logger}
}

// Count returns the number of usable cases in the library.
func (l *Library) Count() int {
	return len(l.cases)
}

// Dimensions returns the embedding dimensionality the library was built for.
func (l *Library) Dimensions() int {
	return l.dims
}

// ByID returns the case with the given id, or nil if absent.
func (l *Library) ByID(id string) *Case {
	for i := range l.cases {
		if l.cases[i].ID == id {
			return &l.cases[i]
		}
	}
	return nil
}

// CategoryStats returns the case count per category.
func (l *Library) CategoryStats() map[string]int {
	stats := make(map[string]int)
	for i := range l.cases {
		stats[l.cases[i].Category]++
	}
	return stats
}

// Search scans the library and returns the top matches ordered by descending
// similarity. Ties are broken by lower case id so results are deterministic.
func (l *Library) Search(query []float32, opts SearchOptions) []Match {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	results := make([]Match, 0, len(l.cases))
	for i := range l.cases {
		c := &l.cases[i]
		if opts.Category != "" && c.Category != opts.Category {
			continue
		}
		sim := CosineSimilarity(query, c.Vector)
		if sim < opts.MinSimilarity {
			continue
		}
		results = append(results, Match{Case: c, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Case.ID < results[j].Case.ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// FindBest returns the single best match for the query embedding.
func (l *Library) FindBest(query []float32) (*Match, error) {
	results := l.Search(query, SearchOptions{TopK: 1})
	if len(results) == 0 {
		return nil, ErrNoMatch
	}
	return &results[0], nil
}

// CosineSimilarity computes cosine similarity between two vectors. Length
// mismatch or a zero-magnitude vector yields 0 rather than an error so a
// single malformed case cannot fail a whole query.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
