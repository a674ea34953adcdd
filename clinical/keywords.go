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

import "regexp"

// Crisis signal categories, checked against user turns only.
type crisisSignal struct {
	name     string
	level    CrisisSeverity
	patterns []*regexp.Regexp
}

// CrisisSeverity maps a crisis signal category to the profile level it
// implies when present.
type CrisisSeverity int

const (
	severityMedium CrisisSeverity = iota + 1
	severityHigh
	severityCritical
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var crisisSignals = []crisisSignal{
	{
		name:  "suicidal",
		level: severityCritical,
		patterns: compileAll(
			`\bsuicid`,
			`\bkill myself\b`,
			`\bend(?:ing)? my life\b`,
			`\bend(?:ing)? it all\b`,
			`\bwant to die\b`,
			`\bbetter off dead\b`,
			`\bdon'?t want to (?:live|be alive|be here)\b`,
			`\bno reason to live\b`,
			`\btake my (?:own )?life\b`,
		),
	},
	{
		name:  "self_harm",
		level: severityHigh,
		patterns: compileAll(
			`\bself[ -]?harm`,
			`\bhurt myself\b`,
			`\bhurting myself\b`,
			`\bcut(?:ting)? myself\b`,
			`\bburn(?:ing)? myself\b`,
		),
	},
	{
		name:  "hopelessness",
		level: severityMedium,
		patterns: compileAll(
			`\bhopeless`,
			`\bno point\b`,
			`\bgive up\b`,
			`\bgiving up\b`,
			`\bnothing matters\b`,
			`\bno future\b`,
			`\bworthless\b`,
			`\bcan'?t go on\b`,
		),
	},
}

// Symptom categories, detected on user turns.
var symptomPatterns = map[string][]*regexp.Regexp{
	"anxiety": compileAll(
		`\banxi(?:ous|ety)`, `\bpanic`, `\bworr(?:y|ied|ying)`, `\bnervous\b`, `\bon edge\b`,
	),
	"depression": compileAll(
		`\bdepress`, `\bsad\b`, `\bsadness\b`, `\bdown\b`, `\bempty\b`, `\bnumb\b`,
	),
	"insomnia": compileAll(
		`\binsomnia\b`, `\bcan'?t sleep\b`, `\btrouble sleeping\b`, `\bsleepless`, `\bawake all night\b`,
	),
	"fatigue": compileAll(
		`\bfatigue`, `\bexhausted\b`, `\btired\b`, `\bno energy\b`, `\bdrained\b`,
	),
	"irritability": compileAll(
		`\birritab`, `\birritated\b`, `\bangry\b`, `\bfrustrated\b`, `\bsnapp(?:ed|ing) at\b`,
	),
	"concentration": compileAll(
		`\bconcentrat`, `\bcan'?t focus\b`, `\bdistracted\b`, `\bfoggy\b`, `\bbrain fog\b`,
	),
}

// Coping strategy categories, detected on all turns since providers often
// suggest them.
var copingPatterns = map[string][]*regexp.Regexp{
	"meditation": compileAll(
		`\bmeditat`, `\bmindful`,
	),
	"breathing": compileAll(
		`\bbreathing exercise`, `\bdeep breath`, `\bbox breathing\b`,
	),
	"exercise": compileAll(
		`\bexercis`, `\bwork(?:ed|ing)? out\b`, `\bwent for a (?:run|walk)\b`, `\bjog(?:ging)?\b`, `\byoga\b`,
	),
	"therapy": compileAll(
		`\btherap`, `\bcounsel(?:ing|or)`, `\bcbt\b`,
	),
	"medication": compileAll(
		`\bmedicat`, `\bmeds\b`, `\bprescri(?:bed|ption)`, `\bantidepressant`,
	),
	"journaling": compileAll(
		`\bjournal`, `\bwrit(?:e|ing) (?:down|in) (?:my|a)\b`,
	),
	"social_support": compileAll(
		`\btalk(?:ed|ing)? to (?:a )?friend`, `\bsupport group\b`, `\bfamily support\b`, `\breached out to\b`,
	),
	"music": compileAll(
		`\blisten(?:ed|ing)? to music\b`, `\bplay(?:ed|ing)? music\b`, `\bcalming music\b`,
	),
	"grounding": compileAll(
		`\bgrounding\b`, `\b5[ -]4[ -]3[ -]2[ -]1\b`, `\bfive senses\b`,
	),
}

// Outcome polarity words, scored over the final user turns.
var (
	positiveSignals = compileAll(
		`\bbetter\b`, `\bimprove`, `\bhelpful\b`, `\bhelped\b`, `\brelieved\b`,
		`\bcalmer\b`, `\bthank`, `\bhopeful\b`, `\bgood\b`, `\beasier\b`,
	)
	negativeSignals = compileAll(
		`\bworse\b`, `\bnot help`, `\bstill (?:anxious|depressed|sad|scared|hopeless)\b`,
		`\bgiving up\b`, `\bfrustrat`, `\bhopeless`, `\bscared\b`, `\bterrible\b`, `\bbad\b`,
	)
)
