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

import (
	"regexp"
	"strings"
)

// PII placeholder tokens. They survive the later lowercasing step, so
// stored text carries them in lowercase form ("[phone]", "[email]", ...).
const (
	PlaceholderPhone   = "[PHONE]"
	PlaceholderEmail   = "[EMAIL]"
	PlaceholderSSN     = "[SSN]"
	PlaceholderCard    = "[CARD]"
	PlaceholderAddress = "[ADDRESS]"
	PlaceholderDate    = "[DATE]"
	PlaceholderId      = "[ID]"
	PlaceholderZip     = "[ZIP]"
	PlaceholderPolicy  = "[POLICY]"
	PlaceholderName    = "[NAME]"
)

var (
	rePhone       = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	rePhoneParens = regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.]?\d{4}`)
	reEmail       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	reSSN         = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reCard        = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	reZip         = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
	reDateNumeric = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	reDateWritten = regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4}\b`)
	reAddress     = regexp.MustCompile(`(?i)\b\d+\s+[A-Z][a-z]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Circle|Cir|Way)\b`)
	reIdNumber    = regexp.MustCompile(`\b\d{6,}\b`)
	reTitledName  = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	reSelfIntro   = regexp.MustCompile(`(?i)\b(my name is|i'm|i am|this is)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)
	rePolicy      = regexp.MustCompile(`\b[A-Z]{2,}\d{6,}\b`)

	reURL          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	rePunctRepeat  = regexp.MustCompile(`([!?.,])[!?.,]+`)
	reSpecialChars = regexp.MustCompile(`[^\w\s.,!?'\-\[\]]`)
)

// RemovePII replaces personally identifiable information with typed
// placeholder tokens. It must run on the ORIGINAL casing: the titled-name
// and self-introduction detectors depend on capitalization, so callers
// must not lowercase first. Normalize enforces that order.
func RemovePII(text string) string {
	if text == "" {
		return ""
	}

	// Most specific patterns first so e.g. an SSN is not consumed by the
	// generic id-number rule.
	text = reSSN.ReplaceAllString(text, PlaceholderSSN)
	text = reCard.ReplaceAllString(text, PlaceholderCard)
	text = rePhoneParens.ReplaceAllString(text, PlaceholderPhone)
	text = rePhone.ReplaceAllString(text, PlaceholderPhone)
	text = reEmail.ReplaceAllString(text, PlaceholderEmail)
	text = reDateNumeric.ReplaceAllString(text, PlaceholderDate)
	text = reDateWritten.ReplaceAllString(text, PlaceholderDate)
	text = reAddress.ReplaceAllString(text, PlaceholderAddress)
	text = rePolicy.ReplaceAllString(text, PlaceholderPolicy)
	text = reIdNumber.ReplaceAllString(text, PlaceholderId)
	text = reZip.ReplaceAllString(text, PlaceholderZip)
	text = reTitledName.ReplaceAllString(text, PlaceholderName)
	text = reSelfIntro.ReplaceAllString(text, "$1 "+PlaceholderName)

	return text
}

// Normalize prepares raw turn text for embedding:
//
//  1. PII removal (FIRST, before any case folding)
//  2. lowercase
//  3. URL removal
//  4. whitespace collapse
//  5. repeated punctuation collapse
//  6. special character strip (brackets kept for PII placeholders)
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = RemovePII(text)
	text = strings.ToLower(text)
	text = reURL.ReplaceAllString(text, "")
	text = reWhitespace.ReplaceAllString(text, " ")
	text = rePunctRepeat.ReplaceAllString(text, "$1")
	text = reSpecialChars.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

// ContainsPlaceholder reports whether sanitized text carries any PII
// placeholder, used for data-quality accounting.
func ContainsPlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{
		"[phone]", "[email]", "[ssn]", "[card]", "[address]",
		"[date]", "[id]", "[zip]", "[policy]", "[name]",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
