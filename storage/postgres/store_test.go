package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

// newTestStore connects to the database named by ANGEL_TEST_DATABASE_URL
// or skips the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ANGEL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ANGEL_TEST_DATABASE_URL not set")
	}

	store, err := New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestStore_UpsertAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	conv := &core.Conversation{
		Id:        "itest-c1",
		UserId:    "itest-u1",
		Title:     "first session",
		CreatedAt: now,
		Turns: []core.Turn{
			{Speaker: core.SpeakerUser, Text: "hello", TurnIndex: 0, TokenCount: 1},
			{Speaker: core.SpeakerProvider, Text: "hi there", TurnIndex: 1, TokenCount: 2},
		},
	}

	require.NoError(t, store.UpsertConversations(ctx, []*core.Conversation{conv}))
	// Replaying the same conversation must not duplicate anything.
	require.NoError(t, store.UpsertConversations(ctx, []*core.Conversation{conv}))

	summaries, err := store.RecentConversations(ctx, "itest-u1", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "itest-c1", summaries[0].Id)
	assert.Equal(t, 2, summaries[0].MessageCount)
	require.Len(t, summaries[0].Preview, 2)
	assert.Equal(t, "hello", summaries[0].Preview[0].Text)
}

func TestStore_GetConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &core.Conversation{
		Id:        "itest-get",
		UserId:    "itest-u4",
		Title:     "lookup test",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Turns: []core.Turn{
			{Speaker: core.SpeakerUser, Text: "hello", TurnIndex: 0, TokenCount: 1},
			{Speaker: core.SpeakerProvider, Text: "hi there", TurnIndex: 1, TokenCount: 2},
		},
	}
	require.NoError(t, store.UpsertConversations(ctx, []*core.Conversation{conv}))

	got, err := store.GetConversation(ctx, "itest-get")
	require.NoError(t, err)
	assert.Equal(t, "itest-u4", got.UserId)
	assert.Equal(t, "lookup test", got.Title)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, core.SpeakerProvider, got.Turns[1].Speaker)

	_, err = store.GetConversation(ctx, "itest-no-such-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_HistoryCutoffExcludesOld(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &core.Conversation{
		Id:        "itest-old",
		UserId:    "itest-u2",
		CreatedAt: time.Now().UTC().AddDate(0, 0, -120),
		Turns:     []core.Turn{{Speaker: core.SpeakerUser, Text: "long ago", TurnIndex: 0}},
	}
	require.NoError(t, store.UpsertConversations(ctx, []*core.Conversation{old}))

	cutoff := time.Now().UTC().AddDate(0, 0, -90)
	summaries, err := store.RecentConversations(ctx, "itest-u2", cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSource_BatchesWholeArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convs := []*core.Conversation{
		{Id: "itest-s1", UserId: "itest-u3", CreatedAt: time.Now().UTC(),
			Turns: []core.Turn{{Speaker: core.SpeakerUser, Text: "one", TurnIndex: 0}}},
		{Id: "itest-s2", UserId: "itest-u3", CreatedAt: time.Now().UTC(),
			Turns: []core.Turn{{Speaker: core.SpeakerUser, Text: "two", TurnIndex: 0}}},
		{Id: "itest-s3", UserId: "itest-u3", CreatedAt: time.Now().UTC(),
			Turns: []core.Turn{{Speaker: core.SpeakerUser, Text: "three", TurnIndex: 0}}},
	}
	require.NoError(t, store.UpsertConversations(ctx, convs))

	src := NewSource(store)
	defer src.Close()

	var seen int
	for {
		batch, err := src.Next(ctx, 2)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, conv := range batch {
			require.NotEmpty(t, conv.Turns, "turns loaded with the batch")
		}
		seen += len(batch)
	}
	assert.GreaterOrEqual(t, seen, 3)
}
