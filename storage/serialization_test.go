package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/core"
)

func sampleChunk() *core.Chunk {
	return &core.Chunk{
		ConversationId: "conv-42",
		UserId:         "user-7",
		TurnIndex:      3,
		Speaker:        "User",
		Text:           "patient: i could not sleep at all this week",
		Vector:         []float32{0.1, -0.5, 0.25, 0.9},
		CrisisLevel:    core.CrisisMedium,
		Suicidal:       false,
		SelfHarm:       false,
		Symptoms:       []string{"insomnia"},
		Coping:         []string{"breathing"},
		Outcome:        core.OutcomeNeutral,
	}
}

func TestChunkSerialization_RoundTrip(t *testing.T) {
	original := sampleChunk()

	data := MarshalChunk(original)
	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestChunkSerialization_EmptyOptionalFields(t *testing.T) {
	original := &core.Chunk{
		ConversationId: "conv-1",
		UserId:         "user-1",
		Speaker:        "mixed",
		Text:           "short exchange",
		Vector:         []float32{1},
	}

	decoded, err := UnmarshalChunk(MarshalChunk(original))
	require.NoError(t, err)
	assert.Equal(t, original.ConversationId, decoded.ConversationId)
	assert.Equal(t, original.Text, decoded.Text)
	assert.Empty(t, decoded.Symptoms)
	assert.Empty(t, decoded.Coping)
	assert.Equal(t, core.CrisisNone, decoded.CrisisLevel)
	assert.Equal(t, core.OutcomeUnknown, decoded.Outcome)
}

func TestChunkSerialization_SizeMatchesMarshal(t *testing.T) {
	chunk := sampleChunk()
	data := MarshalChunk(chunk)
	assert.Equal(t, ChunkMUS.Size(*chunk), len(data))
}

func TestChunkSerialization_SkipConsumesWholeRecord(t *testing.T) {
	data := MarshalChunk(sampleChunk())
	n, err := ChunkMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestUnmarshalChunk_Corrupt(t *testing.T) {
	_, err := UnmarshalChunk([]byte{0xff})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
