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


package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/embedding"
	"github.com/centauraa/angel-context/sanitize"
	"github.com/centauraa/angel-context/storage"
)

const (
	// DefaultMinSimilarity is the relevance floor for retrieved chunks.
	DefaultMinSimilarity = 0.7

	// DefaultLimit caps how many chunks a search returns.
	DefaultLimit = 5
)

// Result is a retrieved chunk with its similarity to the query,
// normalized to [0, 1] where 1 is an exact match.
type Result struct {
	Chunk      *core.Chunk
	Similarity float32
}

// Searcher answers semantic queries against the vector index.
type Searcher struct {
	embedder      embedding.Embedder
	index         storage.VectorIndex
	minSimilarity float32
	limit         int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithMinSimilarity sets the relevance floor.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) {
		s.minSimilarity = min
	}
}

// WithLimit caps how many results a search returns.
func WithLimit(limit int) Option {
	return func(s *Searcher) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewSearcher creates a Searcher with the default threshold and limit.
func NewSearcher(embedder embedding.Embedder, index storage.VectorIndex, opts ...Option) *Searcher {
	s := &Searcher{
		embedder:      embedder,
		index:         index,
		minSimilarity: DefaultMinSimilarity,
		limit:         DefaultLimit,
		logger:        slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds the query and returns the user's most similar chunks at
// or above the similarity floor, best first. Query text goes through the
// same normalization as indexed text so both sides share a vocabulary.
func (s *Searcher) Search(ctx context.Context, userId, query string) ([]Result, error) {
	normalized := sanitize.Normalize(query)
	if normalized == "" {
		return nil, nil
	}

	vector, err := s.embedder.EmbedText(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Over-fetch so the similarity floor is applied before the limit.
	matches, err := s.index.Query(ctx, vector, storage.Filter{UserId: userId})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, s.limit)
	for _, match := range matches {
		similarity := Similarity(match.Distance)
		if similarity < s.minSimilarity {
			break // matches are distance-ordered, the rest are worse
		}
		results = append(results, Result{Chunk: match.Chunk, Similarity: similarity})
		if len(results) == s.limit {
			break
		}
	}

	s.logger.Debug("search complete",
		"user", userId, "candidates", len(matches), "results", len(results))
	return results, nil
}

// Similarity converts a cosine distance in [0, 2] to a similarity in
// [0, 1].
func Similarity(distance float32) float32 {
	return 1 - distance/2
}
