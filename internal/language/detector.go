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

// Package language classifies the language of user prompts using layered
// heuristics. Statistical detection only runs as the last tier: it is
// unreliable on the short, mostly-English phrases typical of image prompts,
// so strong character-level signals and the caller's locale hint win first.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DefaultLanguage is the label used when no other signal applies.
const DefaultLanguage = "English"

// ShortTextThreshold is the length (in characters, trimmed) below which
// statistical detection is skipped in favor of the locale hint.
const ShortTextThreshold = 15

// Detection methods, kept for logging.
const (
	MethodChineseChars      = "chinese-chars"
	MethodShortTextFallback = "short-text-fallback"
	MethodASCIIEnglish      = "ascii-english"
	MethodNLPEnglish        = "nlp-english"
	MethodNLPDetected       = "nlp-detected"
	MethodNLPFallback       = "nlp-fallback"
)

// langMap maps whatlanggo ISO 639-3 codes to the supported language labels.
var langMap = map[string]string{
	"cmn": "Chinese (Simplified)",
	"jpn": "Japanese",
	"kor": "Korean",
	"spa": "Spanish",
	"fra": "French",
	"deu": "German",
	"rus": "Russian",
	"arb": "Arabic",
	"por": "Portuguese",
	"ita": "Italian",
	"vie": "Vietnamese",
	"tha": "Thai",
}

// nlpWhitelist restricts statistical detection to the supported languages.
// Without it whatlanggo is free to pick close relatives of supported
// languages (Macedonian over Russian, Catalan over Spanish) whose codes
// have no label in langMap.
var nlpWhitelist = map[whatlanggo.Lang]bool{
	whatlanggo.Eng: true,
	whatlanggo.Cmn: true,
	whatlanggo.Jpn: true,
	whatlanggo.Kor: true,
	whatlanggo.Spa: true,
	whatlanggo.Fra: true,
	whatlanggo.Deu: true,
	whatlanggo.Rus: true,
	whatlanggo.Arb: true,
	whatlanggo.Por: true,
	whatlanggo.Ita: true,
	whatlanggo.Vie: true,
	whatlanggo.Tha: true,
}

// localeMap maps browser locale codes to language labels.
var localeMap = map[string]string{
	"zh":    "Chinese (Simplified)",
	"zh-CN": "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
	"ja":    "Japanese",
	"ja-JP": "Japanese",
	"ko":    "Korean",
	"ko-KR": "Korean",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"ru":    "Russian",
	"ar":    "Arabic",
	"pt":    "Portuguese",
	"it":    "Italian",
	"vi":    "Vietnamese",
	"th":    "Thai",
}

// Detection is the result of language classification.
type Detection struct {
	// Language is the canonical language label, e.g. "Chinese (Simplified)".
	Language string
	// Method records which tier produced the label.
	Method string
}

// Detect classifies the language of text. The decision order is fixed:
// CJK characters short-circuit everything, short texts trust the locale
// hint, pure-ASCII texts are treated as English, and only then does the
// statistical classifier run. Every branch terminates in a concrete label.
func Detect(text, localeHint string) Detection {
	if containsCJK(text) {
		return Detection{Language: "Chinese (Simplified)", Method: MethodChineseChars}
	}

	fallback := LocaleLanguage(localeHint)

	if len([]rune(strings.TrimSpace(text))) < ShortTextThreshold {
		return Detection{Language: fallback, Method: MethodShortTextFallback}
	}

	if isPureASCII(text) {
		return Detection{Language: "English", Method: MethodASCIIEnglish}
	}

	info := whatlanggo.DetectWithOptions(text, whatlanggo.Options{Whitelist: nlpWhitelist})
	code := whatlanggo.LangToString(info.Lang)
	if code == "eng" {
		return Detection{Language: "English", Method: MethodNLPEnglish}
	}
	if label, ok := langMap[code]; ok {
		return Detection{Language: label, Method: MethodNLPDetected + "(" + code + ")"}
	}
	return Detection{Language: fallback, Method: MethodNLPFallback + "(" + code + ")"}
}

// LocaleLanguage maps a browser locale code (e.g. "zh-CN", "ja") to a
// language label, falling back to English.
func LocaleLanguage(localeHint string) string {
	if localeHint == "" {
		return DefaultLanguage
	}
	if label, ok := localeMap[localeHint]; ok {
		return label
	}
	prefix, _, _ := strings.Cut(localeHint, "-")
	if label, ok := localeMap[prefix]; ok {
		return label
	}
	return DefaultLanguage
}

// containsCJK reports whether text contains any CJK Unified Ideograph.
func containsCJK(text string) bool {
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			return true
		}
	}
	return false
}

// isPureASCII reports whether every byte of text is in the ASCII range.
func isPureASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] > 0x7F {
			return false
		}
	}
	return true
}
