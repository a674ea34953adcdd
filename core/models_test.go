package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashContent_Deterministic(t *testing.T) {
	h1 := HashContent("i have been feeling anxious lately")
	h2 := HashContent("i have been feeling anxious lately")
	h3 := HashContent("a different chunk of text")

	assert.Equal(t, h1, h2, "identical content must hash identically")
	assert.NotEqual(t, h1, h3)
}

func TestParseSpeaker(t *testing.T) {
	tests := []struct {
		label string
		want  Speaker
	}{
		{"Agent", SpeakerProvider},
		{"AGENT", SpeakerProvider},
		{"Provider", SpeakerProvider},
		{"Customer", SpeakerUser},
		{"user", SpeakerUser},
		{"Patient", SpeakerUser},
		{"", SpeakerUnknown},
		{"narrator", SpeakerUnknown},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseSpeaker(tc.label), "label %q", tc.label)
	}
}

func TestCrisisLevel_Ordering(t *testing.T) {
	assert.True(t, CrisisNone < CrisisMedium)
	assert.True(t, CrisisMedium < CrisisHigh)
	assert.True(t, CrisisHigh < CrisisCritical)
}

func TestCrisisLevel_RoundTrip(t *testing.T) {
	for _, level := range []CrisisLevel{CrisisNone, CrisisMedium, CrisisHigh, CrisisCritical} {
		assert.Equal(t, level, ParseCrisisLevel(level.String()))
	}
}

func TestOutcome_RoundTrip(t *testing.T) {
	for _, o := range []Outcome{OutcomeUnknown, OutcomeNeutral, OutcomePositive, OutcomeConcerning} {
		assert.Equal(t, o, ParseOutcome(o.String()))
	}
}

func TestChunkHash_MatchesContent(t *testing.T) {
	c := &Chunk{Text: "some normalized chunk text"}
	assert.Equal(t, HashContent("some normalized chunk text"), c.Hash())
}
