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

// Package extract recovers JSON objects from raw generative-model output.
// Models are not fully compliant JSON emitters even when instructed to return
// only JSON, so extraction runs a fixed three-tier attempt chain: direct
// parse, fenced code block, first balanced object span. Each failure mode is
// distinguishable so callers can tell "no JSON at all" from "JSON-like but
// malformed".
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSONContent means the response contained nothing JSON-shaped.
	ErrNoJSONContent = errors.New("no structured content found in model response")
	// ErrMalformedJSON means JSON-like text was found but none of it parsed.
	ErrMalformedJSON = errors.New("model returned malformed JSON")
	// ErrEmptyResponse means the model returned an empty or blank response.
	ErrEmptyResponse = errors.New("empty model response")
)

// Extract returns the first valid JSON object found in raw. The attempt
// order is fixed: the whole (trimmed) response, then the contents of a fenced
// code block, then the first balanced top-level {...} span.
func Extract(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	// Tier 1: clean response.
	if json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}

	// Tier 2: fenced code block, "```json" preferred over a bare fence.
	for _, fence := range []string{"```json", "```"} {
		candidate, ok := fencedBlock(raw, fence)
		if ok && json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	// Tier 3: first balanced object span embedded in prose.
	if candidate, ok := objectSpan(raw); ok && json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}

	if !strings.ContainsAny(raw, "{}") {
		return nil, ErrNoJSONContent
	}
	return nil, ErrMalformedJSON
}

// Unmarshal extracts a JSON object from raw and decodes it into v.
func Unmarshal(raw string, v interface{}) error {
	data, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// fencedBlock returns the contents of the first code block opened by fence.
func fencedBlock(text, fence string) (string, bool) {
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	start += len(fence)

	// A bare fence may carry a language identifier on the opening line.
	if fence == "```" {
		if nl := strings.Index(text[start:], "\n"); nl >= 0 && nl < 20 {
			start += nl + 1
		}
	}

	end := strings.Index(text[start:], "```")
	if end <= 0 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}

// objectSpan returns the first balanced top-level {...} span in text. Brace
// counting is string- and escape-aware so braces inside JSON strings do not
// unbalance the scan.
func objectSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	// Unbalanced: report the span from the first brace so the caller can
	// classify it as malformed rather than absent.
	return text[start:], true
}
