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


package assembly

import "strings"

// WordsPerToken is the empirical conversational-English ratio used to
// convert word counts to token estimates.
const WordsPerToken = 1.33

// Estimator converts text to an estimated token count. The assembly
// budget is enforced against these estimates, so one Estimator must be
// used consistently for every tier.
type Estimator interface {
	Estimate(text string) int
}

// WordRatioEstimator estimates tokens as words divided by WordsPerToken.
// It needs no model files and is within a few percent on conversational
// text, which is all budget enforcement requires.
type WordRatioEstimator struct{}

var _ Estimator = WordRatioEstimator{}

// Estimate returns the token estimate for text. Empty text is zero.
func (WordRatioEstimator) Estimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	tokens := int(float64(words) / WordsPerToken)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
