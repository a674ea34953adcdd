// Copyright 2025 Centauraa Health
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


package sanitize

import "unicode"

// Embedding validity thresholds.
const (
	// MinTokens is the floor below which a text carries no retrievable
	// signal.
	MinTokens = 5

	// MaxTokens is the embedding model's context limit.
	MaxTokens = 8191

	// MinAlphaRatio is the minimum fraction of alphabetic characters;
	// below it the text is mostly numbers or punctuation noise.
	MinAlphaRatio = 0.5

	// MinChars guards against degenerate fragments after normalization.
	MinChars = 3

	// charsPerToken is the rough character-to-token ratio used for
	// estimation. It intentionally overestimates token counts for short
	// texts, which only makes the MinTokens gate stricter.
	charsPerToken = 4
)

// Verdict is the result of validating a normalized text for embedding.
type Verdict struct {
	Valid  bool
	Reason string

	// EstimatedTokens is the len/4 estimate used by the gates.
	EstimatedTokens int
}

// EstimateTokens approximates the token count of text as len(text)/4.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Validate decides whether normalized text is worth embedding. It never
// returns an error: an invalid text is an expected, countable outcome,
// not a failure.
func Validate(text string) Verdict {
	if len(text) < MinChars {
		return Verdict{Reason: "too_short"}
	}

	tokens := EstimateTokens(text)
	if tokens < MinTokens {
		return Verdict{Reason: "below_min_tokens", EstimatedTokens: tokens}
	}
	if tokens > MaxTokens {
		return Verdict{Reason: "above_max_tokens", EstimatedTokens: tokens}
	}

	var alpha, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if total == 0 || float64(alpha)/float64(total) < MinAlphaRatio {
		return Verdict{Reason: "low_alpha_ratio", EstimatedTokens: tokens}
	}

	return Verdict{Valid: true, EstimatedTokens: tokens}
}
