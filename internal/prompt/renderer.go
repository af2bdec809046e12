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

// Package prompt renders the model-facing instruction for an optimization
// request. The IMITATE and GENERIC strategies use separate renderer types
// constructed from separate code paths: the generic renderer has no case
// field at all, so a retrieval result that failed the confidence gate cannot
// reach the instruction text by construction.
package prompt

import (
	"fmt"
	"strings"

	"github.com/your-org/prompt-architect/internal/cases"
)

// Renderer produces a fully substituted instruction string.
type Renderer interface {
	Instruction() string
}

// UserMessage is the literal end-user message appended to the instruction.
func UserMessage(userPrompt string) string {
	return fmt.Sprintf("User Input: %q\n\nOptimize this prompt:", userPrompt)
}

// ImitateRenderer substitutes the visible reference case and the detected
// language into the imitate-and-elevate instruction template.
type ImitateRenderer struct {
	template     string
	visible      *cases.Case
	userLanguage string
}

// NewImitateRenderer builds a renderer for the IMITATE strategy. template is
// the instruction body, normally DefaultImitateTemplate or a store override.
func NewImitateRenderer(template string, visible *cases.Case, userLanguage string) *ImitateRenderer {
	if template == "" {
		template = DefaultImitateTemplate
	}
	return &ImitateRenderer{
		template:     template,
		visible:      visible,
		userLanguage: userLanguage,
	}
}

// Instruction substitutes every placeholder of the imitate template.
func (r *ImitateRenderer) Instruction() string {
	replacer := strings.NewReplacer(
		"{{reference_case_id}}", r.visible.ID,
		"{{reference_case_title}}", r.visible.Title,
		"{{reference_case_prompt}}", r.visible.Template.Template,
		"{{reference_case_style}}", r.visible.Tags.StyleText(),
		"{{reference_case_technique}}", r.visible.Tags.TechniqueText(),
		"{{user_language}}", r.userLanguage,
		"{{strategy_mode}}", "IMITATE",
	)
	return replacer.Replace(r.template)
}

// GenericRenderer builds the first-principles instruction. It deliberately
// carries no reference-case data.
type GenericRenderer struct {
	userLanguage string
	userPrompt   string
	aspectRatio  string
}

// NewGenericRenderer builds a renderer for the GENERIC strategy.
func NewGenericRenderer(userLanguage, userPrompt, aspectRatio string) *GenericRenderer {
	return &GenericRenderer{
		userLanguage: userLanguage,
		userPrompt:   userPrompt,
		aspectRatio:  aspectRatio,
	}
}

// Instruction renders the generic narrative instruction.
func (r *GenericRenderer) Instruction() string {
	return fmt.Sprintf(genericTemplate, r.userPrompt, r.aspectRatio, r.userLanguage)
}
