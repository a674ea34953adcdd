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


package ingestion

import (
	"sort"
	"strings"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/sanitize"
)

// Speaker labels rendered into chunk text. Turns are relabeled to
// clinical roles so retrieval text never carries product-specific
// speaker names.
const (
	labelUser     = "Patient"
	labelProvider = "Therapist"
)

// BuildChunks sanitizes a conversation's turns, renders them into
// speaker-labeled text, splits the text into word-bounded chunks, and
// stamps each chunk with the conversation's clinical profile. Each chunk
// records the index of the turn it starts in, so callers can locate a
// match back in the source conversation. Turns that
// normalize to nothing or fail the embedding-validity gate are dropped
// and counted; vectors are left empty for the embedding stage to fill.
//
// The second return value reports the per-turn accounting for this
// conversation.
func BuildChunks(conv *core.Conversation, profile *core.ClinicalProfile, maxWords int) ([]*core.Chunk, core.DataQuality) {
	var quality core.DataQuality
	var lines []string
	var lineTurns []int

	for _, turn := range conv.Turns {
		quality.TotalProcessed++

		text := sanitize.Normalize(turn.Text)
		if text == "" {
			quality.FilteredPreprocessing++
			continue
		}

		verdict := sanitize.Validate(text)
		if !verdict.Valid {
			quality.FilteredValidation++
			continue
		}

		quality.MessagesKept++
		quality.TotalTokens += verdict.EstimatedTokens
		if sanitize.ContainsPlaceholder(text) {
			quality.PIIDetectedCount++
		}

		label := labelUser
		if turn.Speaker == core.SpeakerProvider {
			label = labelProvider
		}
		lines = append(lines, label+": "+text)
		lineTurns = append(lineTurns, turn.TurnIndex)
	}

	if len(lines) == 0 {
		return nil, quality
	}

	// Word offset each line starts at in the joined text. Splitting is
	// word-bounded, so a chunk's starting word offset maps it back to the
	// line, and hence the turn, it begins in.
	starts := make([]int, len(lines))
	words := 0
	for i, line := range lines {
		starts[i] = words
		words += len(strings.Fields(line))
	}

	texts := SplitWords(strings.Join(lines, "\n"), maxWords)
	chunks := make([]*core.Chunk, 0, len(texts))
	offset := 0
	for _, text := range texts {
		line := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
		chunks = append(chunks, &core.Chunk{
			ConversationId: conv.Id,
			UserId:         conv.UserId,
			TurnIndex:      lineTurns[line],
			Speaker:        chunkSpeaker(text),
			Text:           text,
			CrisisLevel:    profile.CrisisLevel,
			Suicidal:       profile.SuicidalContent,
			SelfHarm:       profile.SelfHarmContent,
			Symptoms:       profile.Symptoms,
			Coping:         profile.CopingStrategies,
			Outcome:        profile.Outcome,
		})
		offset += len(strings.Fields(text))
	}
	return chunks, quality
}

// chunkSpeaker classifies a chunk by which speaker labels appear in it.
// A chunk may start mid-utterance and carry no label at all; those are
// "mixed" since attribution is ambiguous.
func chunkSpeaker(text string) string {
	hasUser := strings.Contains(text, labelUser+":")
	hasProvider := strings.Contains(text, labelProvider+":")
	switch {
	case hasUser && !hasProvider:
		return core.SpeakerUser.String()
	case hasProvider && !hasUser:
		return core.SpeakerProvider.String()
	default:
		return "mixed"
	}
}
