package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	index, backend, err := NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	require.NoError(t, index.EnsureSchema(context.Background()))
	return index
}

func chunkWithVector(conv, user string, idx int, vector []float32) *core.Chunk {
	return &core.Chunk{
		ConversationId: conv,
		UserId:         user,
		TurnIndex:      idx,
		Speaker:        "User",
		Text:           fmt.Sprintf("chunk %s/%d", conv, idx),
		Vector:         vector,
	}
}

func TestIndex_EnsureSchemaIdempotent(t *testing.T) {
	index := newTestIndex(t)
	assert.NoError(t, index.EnsureSchema(context.Background()))
	assert.NoError(t, index.EnsureSchema(context.Background()))
}

func TestIndex_BulkUpsertAndQuery(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{
		chunkWithVector("c1", "u1", 0, []float32{1, 0, 0}),
		chunkWithVector("c1", "u1", 1, []float32{0, 1, 0}),
		chunkWithVector("c2", "u1", 0, []float32{0.9, 0.1, 0}),
	}))

	matches, err := index.Query(ctx, []float32{1, 0, 0}, storage.Filter{UserId: "u1"})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "c1", matches[0].Chunk.ConversationId)
	assert.Equal(t, 0, matches[0].Chunk.TurnIndex)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	assert.LessOrEqual(t, matches[1].Distance, matches[2].Distance)
}

func TestIndex_QueryFiltersByUser(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{
		chunkWithVector("c1", "alice", 0, []float32{1, 0}),
		chunkWithVector("c2", "bob", 0, []float32{1, 0}),
	}))

	matches, err := index.Query(ctx, []float32{1, 0}, storage.Filter{UserId: "alice"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].Chunk.UserId)
}

func TestIndex_QueryLimit(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	var chunks []*core.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkWithVector("c1", "u1", i, []float32{1, float32(i) / 10}))
	}
	require.NoError(t, index.BulkUpsert(ctx, chunks))

	matches, err := index.Query(ctx, []float32{1, 0}, storage.Filter{UserId: "u1", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestIndex_UpsertIsIdempotentByContent(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	chunk := chunkWithVector("c1", "u1", 0, []float32{1, 0})
	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{chunk}))
	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{chunk}))

	matches, err := index.Query(ctx, []float32{1, 0}, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, matches, 1, "same content hash must not duplicate")
}

func TestIndex_SameContentAcrossConversationsIsKeptApart(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	a := chunkWithVector("c1", "alice", 0, []float32{1, 0})
	b := chunkWithVector("c2", "bob", 0, []float32{1, 0})
	a.Text = "Patient: the same sentence word for word"
	b.Text = a.Text

	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{a, b}))

	for user, conv := range map[string]string{"alice": "c1", "bob": "c2"} {
		matches, err := index.Query(ctx, []float32{1, 0}, storage.Filter{UserId: user})
		require.NoError(t, err)
		require.Len(t, matches, 1, "user %s keeps their own copy", user)
		assert.Equal(t, conv, matches[0].Chunk.ConversationId)
	}
}

func TestIndex_HasConversation(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.BulkUpsert(ctx, []*core.Chunk{
		chunkWithVector("c1", "u1", 0, []float32{1, 0}),
	}))

	found, err := index.HasConversation(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = index.HasConversation(ctx, "never-ingested")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}

func TestCheckpoint_MarkAndReload(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	cp, err := OpenCheckpoint(backend)
	require.NoError(t, err)

	assert.False(t, cp.Contains("c1"))
	require.NoError(t, cp.Mark("c1"))
	require.NoError(t, cp.Mark("c2"))
	assert.True(t, cp.Contains("c1"))
	assert.Equal(t, 2, cp.Len())

	// A fresh checkpoint view over the same backend sees the marks.
	cp2, err := OpenCheckpoint(backend)
	require.NoError(t, err)
	assert.True(t, cp2.Contains("c1"))
	assert.True(t, cp2.Contains("c2"))
	assert.Equal(t, 2, cp2.Len())
}
