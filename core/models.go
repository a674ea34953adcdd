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


package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash is a deterministic 64-bit hash of text content.
// Identical content always produces the same hash, which makes it
// usable for chunk identity and deduplication.
type ContentHash uint64

// HashContent computes a ContentHash from text using BLAKE2b.
func HashContent(text string) ContentHash {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ContentHash(binary.LittleEndian.Uint64(sum))
}

// Speaker identifies the source of a conversation turn.
type Speaker int

const (
	// SpeakerUnknown is the zero value for unrecognized speaker labels.
	SpeakerUnknown Speaker = iota
	// SpeakerProvider represents the care provider (agent) side.
	SpeakerProvider
	// SpeakerUser represents the patient (customer) side.
	SpeakerUser
)

// String returns the canonical label used in stored records.
func (s Speaker) String() string {
	switch s {
	case SpeakerProvider:
		return "Provider"
	case SpeakerUser:
		return "User"
	default:
		return "Unknown"
	}
}

// ParseSpeaker maps raw transcript speaker labels to a Speaker.
// "Agent" maps to Provider and "Customer" to User, matching the
// upstream capture system's vocabulary.
func ParseSpeaker(label string) Speaker {
	switch normalizeLabel(label) {
	case "agent", "provider", "bot", "therapist":
		return SpeakerProvider
	case "customer", "user", "patient":
		return SpeakerUser
	default:
		return SpeakerUnknown
	}
}

// Turn is a single message within a conversation.
type Turn struct {
	Id         string
	Speaker    Speaker
	Text       string
	TurnIndex  int
	TokenCount int
}

// Conversation is an ordered transcript owned by a single user.
// It is read-only from the ingestion pipeline's perspective.
type Conversation struct {
	Id        string
	UserId    string
	Title     string
	CreatedAt time.Time
	Turns     []Turn
	Clinical  *ClinicalProfile
}

// CrisisLevel is an ordered severity classification of safety-relevant
// content found in a conversation. Higher values are more severe.
type CrisisLevel int

const (
	CrisisNone CrisisLevel = iota
	CrisisMedium
	CrisisHigh
	CrisisCritical
)

// String returns the stored representation of the crisis level.
func (c CrisisLevel) String() string {
	switch c {
	case CrisisMedium:
		return "medium"
	case CrisisHigh:
		return "high"
	case CrisisCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseCrisisLevel converts a stored label back to a CrisisLevel.
// Unknown labels map to CrisisNone.
func ParseCrisisLevel(label string) CrisisLevel {
	switch normalizeLabel(label) {
	case "medium":
		return CrisisMedium
	case "high":
		return CrisisHigh
	case "critical":
		return CrisisCritical
	default:
		return CrisisNone
	}
}

// Outcome classifies how a conversation ended.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeNeutral
	OutcomePositive
	OutcomeConcerning
)

// String returns the stored representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNeutral:
		return "neutral"
	case OutcomePositive:
		return "positive"
	case OutcomeConcerning:
		return "concerning"
	default:
		return "unknown"
	}
}

// ParseOutcome converts a stored label back to an Outcome.
func ParseOutcome(label string) Outcome {
	switch normalizeLabel(label) {
	case "neutral":
		return OutcomeNeutral
	case "positive":
		return OutcomePositive
	case "concerning":
		return OutcomeConcerning
	default:
		return OutcomeUnknown
	}
}

// DataQuality records how much of the raw transcript survived
// preprocessing and validation during import.
type DataQuality struct {
	TotalProcessed        int
	MessagesKept          int
	FilteredPreprocessing int
	FilteredValidation    int
	TotalTokens           int
	PIIDetectedCount      int
}

// ClinicalProfile is the derived clinical annotation for a conversation.
// It is computed once at ingestion time and immutable thereafter unless
// the conversation is re-ingested.
type ClinicalProfile struct {
	CrisisLevel      CrisisLevel
	SuicidalContent  bool
	SelfHarmContent  bool
	Hopelessness     bool
	Symptoms         []string
	CopingStrategies []string
	Outcome          Outcome
	MessageCount     int
	WasTruncated     bool
	Quality          DataQuality
}

// Chunk is a bounded span of normalized conversation text prepared for
// embedding. Chunks exist only as a byproduct of ingesting a
// conversation and are replaced, never edited, on re-ingestion.
type Chunk struct {
	ConversationId string
	UserId         string
	TurnIndex      int
	Speaker        string // "Provider", "User" or "mixed"
	Text           string
	Vector         []float32
	CrisisLevel    CrisisLevel
	Suicidal       bool
	SelfHarm       bool
	Symptoms       []string
	Coping         []string
	Outcome        Outcome
}

// Hash returns the content hash of the chunk text, used for dedup.
func (c *Chunk) Hash() ContentHash {
	return HashContent(c.Text)
}

func normalizeLabel(label string) string {
	b := make([]byte, 0, len(label))
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		if ch == ' ' || ch == '\t' {
			continue
		}
		b = append(b, ch)
	}
	return string(b)
}
