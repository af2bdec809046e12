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

// Package gate implements the confidence gate separating retrieval results
// that are safe to disclose to the generation step from those that must stay
// hidden.
package gate

import (
	"github.com/your-org/prompt-architect/internal/cases"
)

// DefaultThreshold is the similarity score at and above which the matched
// case becomes visible to generation.
const DefaultThreshold = 0.60

// Strategy is the two-valued generation strategy chosen per request.
type Strategy int

const (
	// StrategyGeneric hides the matched case from generation entirely.
	StrategyGeneric Strategy = iota
	// StrategyImitate lets generation borrow technique from the matched case.
	StrategyImitate
)

// String returns the wire label of the strategy.
func (s Strategy) String() string {
	if s == StrategyImitate {
		return "IMITATE"
	}
	return "GENERIC"
}

// Decision is the outcome of gating a retrieval match. When the strategy is
// GENERIC, VisibleCase is nil: downstream components receive no handle to the
// matched case at all, so it is structurally unreachable rather than merely
// unused.
type Decision struct {
	Strategy    Strategy
	Similarity  float64
	VisibleCase *cases.Case
}

// Decide maps a similarity score to a strategy. The threshold boundary is
// inclusive on the IMITATE side.
func Decide(match *cases.Match, threshold float64) Decision {
	if match.Similarity >= threshold {
		return Decision{
			Strategy:    StrategyImitate,
			Similarity:  match.Similarity,
			VisibleCase: match.Case,
		}
	}
	return Decision{
		Strategy:   StrategyGeneric,
		Similarity: match.Similarity,
	}
}
