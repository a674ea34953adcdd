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


package clinical

import (
	"regexp"
	"sort"
	"strings"

	"github.com/centauraa/angel-context/core"
)

// outcomeWindow is how many trailing user turns the outcome score reads.
const outcomeWindow = 3

// Detector derives a clinical profile from a conversation's turns.
type Detector interface {
	Annotate(turns []core.Turn) *core.ClinicalProfile
}

// KeywordDetector is the pattern-table Detector used in production. It is
// stateless and safe for concurrent use.
type KeywordDetector struct{}

var _ Detector = (*KeywordDetector)(nil)

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{}
}

// Annotate scans the turns and returns a profile. Crisis and symptom
// signals are read from user turns only; a provider explaining self-harm
// risk must not mark the session. Coping strategies are read from all
// turns because providers suggest them. The highest crisis severity
// present wins.
func (d *KeywordDetector) Annotate(turns []core.Turn) *core.ClinicalProfile {
	profile := &core.ClinicalProfile{
		CrisisLevel:  core.CrisisNone,
		Outcome:      core.OutcomeUnknown,
		MessageCount: len(turns),
	}

	symptoms := map[string]bool{}
	coping := map[string]bool{}
	var userTexts []string

	for _, turn := range turns {
		text := strings.ToLower(turn.Text)

		for name, patterns := range copingPatterns {
			if matchesAny(text, patterns) {
				coping[name] = true
			}
		}

		if turn.Speaker != core.SpeakerUser {
			continue
		}
		userTexts = append(userTexts, text)

		for _, signal := range crisisSignals {
			if !matchesAny(text, signal.patterns) {
				continue
			}
			switch signal.name {
			case "suicidal":
				profile.SuicidalContent = true
			case "self_harm":
				profile.SelfHarmContent = true
			case "hopelessness":
				profile.Hopelessness = true
			}
			if level := toCrisisLevel(signal.level); level > profile.CrisisLevel {
				profile.CrisisLevel = level
			}
		}

		for name, patterns := range symptomPatterns {
			if matchesAny(text, patterns) {
				symptoms[name] = true
			}
		}
	}

	profile.Symptoms = sortedKeys(symptoms)
	profile.CopingStrategies = sortedKeys(coping)
	profile.Outcome = scoreOutcome(userTexts)

	return profile
}

func toCrisisLevel(s CrisisSeverity) core.CrisisLevel {
	switch s {
	case severityCritical:
		return core.CrisisCritical
	case severityHigh:
		return core.CrisisHigh
	case severityMedium:
		return core.CrisisMedium
	default:
		return core.CrisisNone
	}
}

// scoreOutcome reads the polarity of the last few user turns. Ties fall
// to neutral; a conversation with no user turns has no knowable outcome.
func scoreOutcome(userTexts []string) core.Outcome {
	if len(userTexts) == 0 {
		return core.OutcomeUnknown
	}
	if len(userTexts) > outcomeWindow {
		userTexts = userTexts[len(userTexts)-outcomeWindow:]
	}

	var positive, negative int
	for _, text := range userTexts {
		for _, p := range positiveSignals {
			if p.MatchString(text) {
				positive++
			}
		}
		for _, n := range negativeSignals {
			if n.MatchString(text) {
				negative++
			}
		}
	}

	switch {
	case positive > negative:
		return core.OutcomePositive
	case negative > positive:
		return core.OutcomeConcerning
	default:
		return core.OutcomeNeutral
	}
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
