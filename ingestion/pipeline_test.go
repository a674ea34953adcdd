package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/embedding"
	"github.com/centauraa/angel-context/embedding/mock"
	"github.com/centauraa/angel-context/storage"
	badgerstore "github.com/centauraa/angel-context/storage/badger"
	"github.com/centauraa/angel-context/storage/flatfile"
)

// memSource serves a fixed set of conversations in batches.
type memSource struct {
	convs  []*core.Conversation
	offset int
}

func (m *memSource) Next(ctx context.Context, limit int) ([]*core.Conversation, error) {
	if m.offset >= len(m.convs) {
		return nil, nil
	}
	end := m.offset + limit
	if end > len(m.convs) {
		end = len(m.convs)
	}
	batch := m.convs[m.offset:end]
	m.offset = end
	return batch, nil
}

func (m *memSource) Close() error { return nil }

// cancelingSource serves one batch and cancels the run context on the
// next read, like an interrupt arriving while the source is mid-fetch.
type cancelingSource struct {
	inner  *memSource
	cancel context.CancelFunc
	calls  int
}

func (s *cancelingSource) Next(ctx context.Context, limit int) ([]*core.Conversation, error) {
	s.calls++
	if s.calls > 1 {
		s.cancel()
		return nil, ctx.Err()
	}
	return s.inner.Next(ctx, limit)
}

func (s *cancelingSource) Close() error { return nil }

func testConversation(id string, turns int) *core.Conversation {
	conv := &core.Conversation{
		Id:        id,
		UserId:    "user-1",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	for i := 0; i < turns; i++ {
		speaker := core.SpeakerUser
		if i%2 == 1 {
			speaker = core.SpeakerProvider
		}
		conv.Turns = append(conv.Turns, core.Turn{
			Speaker:   speaker,
			Text:      fmt.Sprintf("this is a perfectly ordinary sentence number %d about how the week went", i),
			TurnIndex: i,
		})
	}
	return conv
}

type pipelineEnv struct {
	index      *badgerstore.Index
	checkpoint storage.CheckpointStore
	client     *embedding.Client
	embedder   *mock.Embedder
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	index, backend, err := badgerstore.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	cp, err := flatfile.OpenCheckpoint(filepath.Join(t.TempDir(), "done.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })

	embedder := mock.NewEmbedder()
	client := embedding.NewClient(embedder, embedding.NewLimiter(8, 500, 0), 3, time.Millisecond)

	return &pipelineEnv{index: index, checkpoint: cp, client: client, embedder: embedder}
}

func newTestPipeline(t *testing.T, env *pipelineEnv, source storage.ConversationSource, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithPoolSize(2), WithSourceBatch(2)}, opts...)
	p, err := NewPipeline(source, env.index, env.checkpoint, env.client, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestPipeline_IngestsAllConversations(t *testing.T) {
	env := newPipelineEnv(t)
	source := &memSource{convs: []*core.Conversation{
		testConversation("c1", 6),
		testConversation("c2", 6),
		testConversation("c3", 6),
	}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.ConversationsProcessed)
	assert.Zero(t, stats.ConversationsFailed)
	assert.Equal(t, 3, stats.ChunksIndexed)

	for _, id := range []string{"c1", "c2", "c3"} {
		found, err := env.index.HasConversation(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, found, "conversation %s indexed", id)
		assert.True(t, env.checkpoint.Contains(id))
	}
}

func TestPipeline_SkipsCheckpointedConversations(t *testing.T) {
	env := newPipelineEnv(t)
	require.NoError(t, env.checkpoint.Mark("c1"))

	source := &memSource{convs: []*core.Conversation{
		testConversation("c1", 6),
		testConversation("c2", 6),
	}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConversationsSkipped)
	assert.Equal(t, 1, stats.ConversationsProcessed)

	found, err := env.index.HasConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, found, "checkpointed conversation never re-embedded")
}

func TestPipeline_IndexedConversationBackfillsCheckpoint(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	// Simulate a previous run that flushed the index but lost the
	// checkpoint write.
	require.NoError(t, env.index.EnsureSchema(ctx))
	require.NoError(t, env.index.BulkUpsert(ctx, []*core.Chunk{{
		ConversationId: "c1", UserId: "user-1", Speaker: "mixed",
		Text: "Patient: already here", Vector: []float32{1, 0},
	}}))

	source := &memSource{convs: []*core.Conversation{testConversation("c1", 6)}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConversationsSkipped)
	assert.True(t, env.checkpoint.Contains("c1"), "checkpoint backfilled from index")
	assert.Zero(t, env.embedder.CallCount(), "no re-embedding")
}

func TestPipeline_InvalidConversationIsIsolated(t *testing.T) {
	env := newPipelineEnv(t)
	broken := testConversation("broken", 4)
	broken.Turns[2].TurnIndex = 0 // duplicate index

	source := &memSource{convs: []*core.Conversation{
		broken,
		testConversation("c2", 6),
	}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConversationsFailed)
	assert.Equal(t, 1, stats.ConversationsProcessed)
	assert.False(t, env.checkpoint.Contains("broken"))
	assert.True(t, env.checkpoint.Contains("c2"))
}

func TestPipeline_EmbeddingFailureIsIsolated(t *testing.T) {
	env := newPipelineEnv(t)
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}

	source := &memSource{convs: []*core.Conversation{testConversation("c1", 6)}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err, "per-conversation failures never abort the run")

	assert.Equal(t, 1, stats.ConversationsFailed)
	assert.False(t, env.checkpoint.Contains("c1"), "failed conversation stays unmarked")
}

func TestPipeline_UnembeddableConversationIsMarkedDone(t *testing.T) {
	env := newPipelineEnv(t)
	conv := &core.Conversation{
		Id:     "junk",
		UserId: "user-1",
		Turns: []core.Turn{
			{Speaker: core.SpeakerUser, Text: "ok", TurnIndex: 0},
		},
	}

	source := &memSource{convs: []*core.Conversation{conv}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConversationsProcessed)
	assert.True(t, env.checkpoint.Contains("junk"), "nothing embeddable, never retry")
	assert.Zero(t, stats.ChunksIndexed)
}

func TestPipeline_CancelMidRunFlushesPendingBuffer(t *testing.T) {
	env := newPipelineEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &cancelingSource{
		inner: &memSource{convs: []*core.Conversation{
			testConversation("c1", 6),
			testConversation("c2", 6),
		}},
		cancel: cancel,
	}

	// Commit size stays at the default, so everything embedded before the
	// cancellation is still sitting in the buffer when the run winds down.
	p := newTestPipeline(t, env, source)
	stats, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.ConversationsProcessed)

	for _, id := range []string{"c1", "c2"} {
		found, ferr := env.index.HasConversation(context.Background(), id)
		require.NoError(t, ferr)
		assert.True(t, found, "conversation %s flushed on cancel", id)
		assert.True(t, env.checkpoint.Contains(id), "conversation %s checkpointed after flush", id)
	}
}

func TestPipeline_QualityCountersAccumulate(t *testing.T) {
	env := newPipelineEnv(t)
	conv := testConversation("c1", 4)
	conv.Turns = append(conv.Turns, core.Turn{
		Speaker: core.SpeakerUser, Text: "hm", TurnIndex: 4,
	})

	source := &memSource{convs: []*core.Conversation{conv}}

	p := newTestPipeline(t, env, source)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Quality.TotalProcessed)
	assert.Equal(t, 4, stats.Quality.MessagesKept)
	assert.Equal(t, 1, stats.Quality.FilteredValidation)
	assert.Greater(t, stats.Quality.TotalTokens, 0)
}

func TestImporter_AdmissionRules(t *testing.T) {
	writer := &capturingWriter{}
	importer := NewImporter(writer, 10)

	short := testConversation("short", 5)
	long := testConversation("long", maxImportTurns+50)
	normal := testConversation("normal", 30)
	unnamed := testConversation("", 25)

	source := &memSource{convs: []*core.Conversation{short, long, normal, unnamed}}
	stats, err := importer.Import(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Imported)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Truncated)

	require.Len(t, writer.convs, 3)
	assert.Len(t, writer.convs[0].Turns, maxImportTurns)
	assert.NotEmpty(t, writer.convs[2].Id, "missing IDs are assigned")
	assert.Greater(t, writer.convs[1].Turns[0].TokenCount, 0)
}

type capturingWriter struct {
	convs []*core.Conversation
}

func (w *capturingWriter) UpsertConversations(ctx context.Context, convs []*core.Conversation) error {
	w.convs = append(w.convs, convs...)
	return nil
}
