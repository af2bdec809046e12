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
	"time"

	"github.com/your-org/prompt-architect/internal/export"
	"github.com/your-org/prompt-architect/internal/gate"
	"github.com/your-org/prompt-architect/internal/language"
)

// Placeholder values used for the reference case when no case was disclosed.
const (
	NoReferenceCaseTitle  = "No Reference Case Used"
	NoReferenceCaseReason = "Generic enhancement applied - no suitable case found"
)

// ReferenceCase describes the exemplar disclosed to the user, or the
// explicit "none used" placeholder under the GENERIC strategy.
type ReferenceCase struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Thumbnail       string `json:"thumbnail"`
	RelevanceReason string `json:"relevanceReason"`
}

// MarkerExplanation explains one semantic marker span of the optimized
// prompt.
type MarkerExplanation struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Why     string `json:"why"`
}

// Diagnostics carries per-request observability data. Similarity, strategy
// and timing are always present; the instruction template and raw model
// response could reveal the optimization strategy to competitors, so they are
// emitted only when the assembler was built for a development context.
type Diagnostics struct {
	RequestID              string  `json:"requestId"`
	Timestamp              string  `json:"timestamp"`
	Similarity             float64 `json:"similarity"`
	Strategy               string  `json:"strategy"`
	ThresholdUsed          float64 `json:"thresholdUsed"`
	CaseHiddenFromModel    bool    `json:"caseHiddenFromModel"`
	DetectionMethod        string  `json:"detectionMethod"`
	MatchedCaseID          string  `json:"matchedCaseId"`
	ExportFormatsGenerated bool    `json:"exportFormatsGenerated"`
	ProcessingTimeMs       int64   `json:"processingTimeMs"`
	PromptTemplate         string  `json:"promptTemplate,omitempty"`
	RawModelResponse       string  `json:"rawModelResponse,omitempty"`
}

// Result is the caller-facing outcome of one optimization request.
type Result struct {
	OriginalPrompt     string              `json:"originalPrompt"`
	OptimizedPrompt    string              `json:"optimizedPrompt"`
	EnhancementLogic   string              `json:"enhancementLogic"`
	ReferenceCase      ReferenceCase       `json:"referenceCase"`
	ModelAdvantage     string              `json:"modelAdvantage"`
	SuggestedModifiers []string            `json:"suggestedModifiers"`
	DetectedLanguage   string              `json:"detectedLanguage"`
	TagExplanations    []MarkerExplanation `json:"tagExplanations"`
	ExportFormats      *export.Formats     `json:"exportFormats,omitempty"`
	Diagnostics        Diagnostics         `json:"diagnostics"`
}

// assembler merges pipeline outputs into the final result. The diagnostic
// detail flag is injected at construction so redaction behavior is testable
// without touching process environment.
type assembler struct {
	includeDetail bool
}

func newAssembler(includeDetail bool) *assembler {
	return &assembler{includeDetail: includeDetail}
}

type assemblyInput struct {
	requestID      string
	request        Request
	aspectRatio    string
	detection      language.Detection
	decision       gate.Decision
	threshold      float64
	matchedCaseID  string
	instruction    string
	rawResponse    string
	output         *modelOutput
	exportFormats  *export.Formats
	processingTime time.Duration
}

func (a *assembler) assemble(in assemblyInput) *Result {
	out := in.output

	ref := ReferenceCase{
		Title:           NoReferenceCaseTitle,
		RelevanceReason: NoReferenceCaseReason,
	}
	if in.decision.Strategy == gate.StrategyImitate && in.decision.VisibleCase != nil {
		ref = ReferenceCase{
			ID:        in.decision.VisibleCase.ID,
			Title:     in.decision.VisibleCase.Title,
			Thumbnail: in.decision.VisibleCase.Thumbnail,
		}
		if out.ReferenceCaseUsed != nil {
			ref.RelevanceReason = out.ReferenceCaseUsed.RelevanceReason
		}
	}

	modifiers := out.SuggestedModifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	explanations := out.TagExplanations
	if explanations == nil {
		explanations = []MarkerExplanation{}
	}

	diag := Diagnostics{
		RequestID:              in.requestID,
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
		Similarity:             in.decision.Similarity,
		Strategy:               in.decision.Strategy.String(),
		ThresholdUsed:          in.threshold,
		CaseHiddenFromModel:    in.decision.Strategy == gate.StrategyGeneric,
		DetectionMethod:        in.detection.Method,
		MatchedCaseID:          in.matchedCaseID,
		ExportFormatsGenerated: in.exportFormats != nil,
		ProcessingTimeMs:       in.processingTime.Milliseconds(),
	}
	if a.includeDetail {
		diag.PromptTemplate = in.instruction
		diag.RawModelResponse = in.rawResponse
	}

	return &Result{
		OriginalPrompt:     in.request.Prompt,
		OptimizedPrompt:    out.OptimizedPrompt,
		EnhancementLogic:   out.EnhancementLogic,
		ReferenceCase:      ref,
		ModelAdvantage:     out.ModelAdvantage,
		SuggestedModifiers: modifiers,
		DetectedLanguage:   in.detection.Language,
		TagExplanations:    explanations,
		ExportFormats:      in.exportFormats,
		Diagnostics:        diag,
	}
}
