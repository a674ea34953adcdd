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


package assembly

import (
	"context"
	"log/slog"
	"time"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/search"
	"github.com/centauraa/angel-context/storage"
)

// Tier shares of the total token budget. The live session dominates
// because safety and immediacy come first. Unused tier budget is never
// reallocated to another tier, so one oversized tier cannot crowd out
// the others.
const (
	sessionShare = 40
	historyShare = 35
	similarShare = 25
)

// Defaults for the assembly engine.
const (
	DefaultBudget       = 8000
	DefaultLookbackDays = 90
	DefaultMaxSummaries = 4
	DefaultMaxSimilar   = 5
)

// Retriever finds past chunks relevant to a query. *search.Searcher
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, userId, query string) ([]search.Result, error)
}

// Usage is the token accounting for one assembled context.
type Usage struct {
	HistoryTokens int
	SimilarTokens int
	SessionTokens int
	TotalTokens   int
	Budget        int
}

// Assembled is a built therapeutic context ready for prompt injection.
type Assembled struct {
	Text   string
	Topics []string
	Usage  Usage

	// Degraded lists tiers that were skipped because their backing store
	// failed. Empty means every tier was attempted normally.
	Degraded []string
}

// Engine assembles therapeutic context from three tiers: recent
// conversation history, semantically relevant past discussion, and the
// current session. Each tier has a fixed share of the token budget;
// tiers degrade independently when their backing store fails.
type Engine struct {
	history   storage.HistoryStore
	retriever Retriever
	estimator Estimator
	logger    *slog.Logger

	budget       int
	lookback     time.Duration
	maxSummaries int
	maxSimilar   int

	// now is swappable for tests.
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget sets the total token budget.
func WithBudget(budget int) Option {
	return func(e *Engine) {
		if budget > 0 {
			e.budget = budget
		}
	}
}

// WithLookback sets how far back the history tier reaches.
func WithLookback(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// WithMaxSummaries caps the history tier's conversation count.
func WithMaxSummaries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSummaries = n
		}
	}
}

// WithMaxSimilar caps the relevant-past tier's chunk count.
func WithMaxSimilar(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSimilar = n
		}
	}
}

// WithEstimator replaces the token estimator.
func WithEstimator(est Estimator) Option {
	return func(e *Engine) {
		if est != nil {
			e.estimator = est
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a context assembly engine.
func NewEngine(history storage.HistoryStore, retriever Retriever, opts ...Option) *Engine {
	e := &Engine{
		history:      history,
		retriever:    retriever,
		estimator:    WordRatioEstimator{},
		logger:       slog.Default().With("component", "assembly"),
		budget:       DefaultBudget,
		lookback:     DefaultLookbackDays * 24 * time.Hour,
		maxSummaries: DefaultMaxSummaries,
		maxSimilar:   DefaultMaxSimilar,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildOption adjusts a single BuildContext call.
type BuildOption func(*buildSettings)

type buildSettings struct {
	budget         int
	includeSimilar bool
}

// WithRequestBudget overrides the engine's token budget for one request.
func WithRequestBudget(budget int) BuildOption {
	return func(s *buildSettings) {
		if budget > 0 {
			s.budget = budget
		}
	}
}

// WithoutSimilar skips the semantic-similarity tier for one request. Its
// budget share is left unused, not redistributed.
func WithoutSimilar() BuildOption {
	return func(s *buildSettings) {
		s.includeSimilar = false
	}
}

// BuildContext assembles the context for one user and session. Tier
// failures never fail the build; the affected tier is skipped and named
// in Degraded. The returned usage always satisfies TotalTokens <=
// Budget.
func (e *Engine) BuildContext(ctx context.Context, userId string, session []core.Turn, opts ...BuildOption) (*Assembled, error) {
	settings := buildSettings{budget: e.budget, includeSimilar: true}
	for _, opt := range opts {
		opt(&settings)
	}

	out := &Assembled{
		Topics: DetectTopics(session),
		Usage:  Usage{Budget: settings.budget},
	}

	historyBudget := settings.budget * historyShare / 100
	similarBudget := settings.budget * similarShare / 100
	sessionBudget := settings.budget * sessionShare / 100

	historyBlocks := e.buildHistoryTier(ctx, userId, historyBudget, out)
	var similarBlocks []string
	if settings.includeSimilar {
		similarBlocks = e.buildSimilarTier(ctx, userId, session, similarBudget, out)
	}
	sessionBlocks := e.buildSessionTier(session, sessionBudget, out)

	out.Usage.TotalTokens = out.Usage.HistoryTokens + out.Usage.SimilarTokens + out.Usage.SessionTokens
	out.Text = Format(historyBlocks, similarBlocks, sessionBlocks, out.Usage)

	e.logger.Debug("context assembled",
		"user", userId,
		"history_tokens", out.Usage.HistoryTokens,
		"similar_tokens", out.Usage.SimilarTokens,
		"session_tokens", out.Usage.SessionTokens,
		"budget", settings.budget,
		"degraded", out.Degraded)
	return out, nil
}

// buildHistoryTier renders recent conversation summaries and shrinks the
// COUNT of summaries, newest kept first, until the tier fits its budget.
// Individual summaries are never trimmed internally.
func (e *Engine) buildHistoryTier(ctx context.Context, userId string, budget int, out *Assembled) []string {
	if e.history == nil {
		return nil
	}

	cutoff := e.now().Add(-e.lookback)
	summaries, err := e.history.RecentConversations(ctx, userId, cutoff, e.maxSummaries)
	if err != nil {
		e.logger.Warn("history tier degraded", "user", userId, "err", err)
		out.Degraded = append(out.Degraded, "history")
		return nil
	}

	blocks := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		blocks = append(blocks, formatSummary(sum))
	}

	blocks, used := fitBlocks(blocks, budget, e.estimator)
	out.Usage.HistoryTokens = used
	return blocks
}

// buildSimilarTier retrieves chunks relevant to the user's latest
// message and shrinks the count to fit the budget. A session with no
// user turns has no query, so the tier is empty by construction.
func (e *Engine) buildSimilarTier(ctx context.Context, userId string, session []core.Turn, budget int, out *Assembled) []string {
	if e.retriever == nil {
		return nil
	}

	query := lastUserText(session)
	if query == "" {
		return nil
	}

	results, err := e.retriever.Search(ctx, userId, query)
	if err != nil {
		e.logger.Warn("similar tier degraded", "user", userId, "err", err)
		out.Degraded = append(out.Degraded, "similar")
		return nil
	}
	if len(results) > e.maxSimilar {
		results = results[:e.maxSimilar]
	}

	blocks := make([]string, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, formatResult(res))
	}

	blocks, used := fitBlocks(blocks, budget, e.estimator)
	out.Usage.SimilarTokens = used
	return blocks
}

// buildSessionTier renders the current session and truncates OLDEST
// turns first until it fits: the most recent exchange is the one the
// reply hangs on.
func (e *Engine) buildSessionTier(session []core.Turn, budget int, out *Assembled) []string {
	blocks := make([]string, 0, len(session))
	for _, turn := range session {
		blocks = append(blocks, formatTurn(turn))
	}

	used := 0
	for _, b := range blocks {
		used += e.estimator.Estimate(b)
	}
	for len(blocks) > 0 && used > budget {
		used -= e.estimator.Estimate(blocks[0])
		blocks = blocks[1:]
	}

	out.Usage.SessionTokens = used
	return blocks
}

// fitBlocks drops trailing blocks until the total estimate fits the
// budget. Blocks arrive most-important-first, so the tail goes first.
func fitBlocks(blocks []string, budget int, est Estimator) ([]string, int) {
	used := 0
	for _, b := range blocks {
		used += est.Estimate(b)
	}
	for len(blocks) > 0 && used > budget {
		used -= est.Estimate(blocks[len(blocks)-1])
		blocks = blocks[:len(blocks)-1]
	}
	return blocks, used
}

func lastUserText(session []core.Turn) string {
	for i := len(session) - 1; i >= 0; i-- {
		if session[i].Speaker == core.SpeakerUser {
			return session[i].Text
		}
	}
	return ""
}
