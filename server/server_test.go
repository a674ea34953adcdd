package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/assembly"
	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/search"
	"github.com/centauraa/angel-context/storage"
)

type stubBuilder struct {
	out      *assembly.Assembled
	err      error
	lastId   string
	session  []core.Turn
	lastOpts int
}

func (s *stubBuilder) BuildContext(ctx context.Context, userId string, session []core.Turn, opts ...assembly.BuildOption) (*assembly.Assembled, error) {
	s.lastId = userId
	s.session = session
	s.lastOpts = len(opts)
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type stubSearcher struct {
	results []search.Result
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, userId, query string) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type stubHistory struct {
	summaries []storage.ConversationSummary
	err       error
	lastLimit int
}

func (s *stubHistory) RecentConversations(ctx context.Context, userId string, cutoff time.Time, limit int) ([]storage.ConversationSummary, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.summaries, nil
}

func (s *stubHistory) Close() error { return nil }

func newTestServer(builder ContextBuilder, searcher SimilaritySearcher, history storage.HistoryStore) *httptest.Server {
	srv := NewServer(builder, searcher, history, "localhost", 0)
	return httptest.NewServer(srv.Router())
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleBuildContext(t *testing.T) {
	builder := &stubBuilder{out: &assembly.Assembled{
		Text:   "=== THERAPEUTIC CONTEXT ===\n",
		Topics: []string{"anxiety"},
		Usage:  assembly.Usage{TotalTokens: 120, Budget: 8000},
	}}
	ts := newTestServer(builder, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/context/build", map[string]any{
		"user_id": "u1",
		"session": []map[string]string{
			{"speaker": "user", "text": "i feel anxious"},
			{"speaker": "provider", "text": "tell me more"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[buildContextResponse](t, resp)
	assert.Contains(t, out.Context, "THERAPEUTIC CONTEXT")
	assert.Equal(t, []string{"anxiety"}, out.Topics)
	assert.Equal(t, 120, out.Usage.TotalTokens)
	assert.Equal(t, 8000, out.Usage.Budget)

	assert.Equal(t, "u1", builder.lastId)
	require.Len(t, builder.session, 2)
	assert.Equal(t, core.SpeakerUser, builder.session[0].Speaker)
	assert.Equal(t, core.SpeakerProvider, builder.session[1].Speaker)
	assert.Equal(t, 1, builder.session[1].TurnIndex)
}

func TestHandleBuildContext_PerRequestOptions(t *testing.T) {
	builder := &stubBuilder{out: &assembly.Assembled{}}
	ts := newTestServer(builder, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/context/build", map[string]any{
		"user_id":         "u1",
		"token_budget":    2000,
		"include_similar": false,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, builder.lastOpts, "budget override and similar toggle forwarded")
}

func TestHandleBuildContext_MissingUserId(t *testing.T) {
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/context/build", map[string]any{
		"session": []map[string]string{{"speaker": "user", "text": "hello"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBuildContext_InvalidBody(t *testing.T) {
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/context/build", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBuildContext_EngineFailure(t *testing.T) {
	ts := newTestServer(&stubBuilder{err: errors.New("boom")}, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/context/build", map[string]any{
		"user_id": "u1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleSearchSimilar(t *testing.T) {
	searcher := &stubSearcher{results: []search.Result{
		{
			Chunk: &core.Chunk{
				ConversationId: "c1",
				Text:           "patient: breathing exercises helped",
				CrisisLevel:    core.CrisisHigh,
			},
			Similarity: 0.91,
		},
		{
			Chunk:      &core.Chunk{ConversationId: "c2", Text: "calm session"},
			Similarity: 0.74,
		},
	}}
	ts := newTestServer(&stubBuilder{}, searcher, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/search/similar", map[string]string{
		"user_id": "u1",
		"query":   "breathing",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[searchResponse](t, resp)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "c1", out.Results[0].ConversationId)
	assert.InDelta(t, 0.91, out.Results[0].Similarity, 1e-6)
	assert.Equal(t, "high", out.Results[0].CrisisLevel)
	assert.Empty(t, out.Results[1].CrisisLevel, "none is omitted")
}

func TestHandleSearchSimilar_NoResults(t *testing.T) {
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/search/similar", map[string]string{
		"user_id": "u1",
		"query":   "anything",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[searchResponse](t, resp)
	assert.Empty(t, out.Results)
}

func TestHandleRecentConversations(t *testing.T) {
	history := &stubHistory{summaries: []storage.ConversationSummary{
		{
			Id:           "c1",
			Title:        "tuesday check-in",
			CreatedAt:    time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
			MessageCount: 24,
		},
	}}
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, history)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/users/u1/recent-conversations?limit=3")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[recentConversationsResponse](t, resp)
	require.Len(t, out.Conversations, 1)
	assert.Equal(t, "c1", out.Conversations[0].Id)
	assert.Equal(t, "tuesday check-in", out.Conversations[0].Title)
	assert.Equal(t, 24, out.Conversations[0].MessageCount)
	assert.Equal(t, 3, history.lastLimit)
}

func TestHandleRecentConversations_HistoryFailure(t *testing.T) {
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, &stubHistory{err: errors.New("down")})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/users/u1/recent-conversations")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(&stubBuilder{}, &stubSearcher{}, &stubHistory{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", out["status"])
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?days=30&bad=oops&neg=-1", nil)
	assert.Equal(t, 30, queryInt(req, "days", 90))
	assert.Equal(t, 90, queryInt(req, "missing", 90))
	assert.Equal(t, 90, queryInt(req, "bad", 90))
	assert.Equal(t, 90, queryInt(req, "neg", 90))
}
