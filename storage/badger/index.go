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


package badger

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

// Index is the BadgerDB-backed vector index. Chunks are keyed by
// conversation id plus content hash, so re-ingesting a conversation
// overwrites its own chunks in place without clobbering identical text
// owned by another conversation. Queries
// scan all chunks and score them by cosine distance; at therapy-archive
// scale (tens of thousands of chunks) a brute-force scan stays well
// under interactive latency.
type Index struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates a vector index on the given backend.
func NewIndex(backend *Backend) *Index {
	return &Index{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

// EnsureSchema writes the schema marker. Idempotent.
func (x *Index) EnsureSchema(ctx context.Context) error {
	return x.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(schemaKey))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return tx.Set([]byte(schemaKey), []byte{1})
	})
}

// BulkUpsert writes chunks and their conversation-index entries in one
// transaction. The write is durable when BulkUpsert returns, which is
// the property checkpoint-after-flush depends on.
func (x *Index) BulkUpsert(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := x.backend.Update(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			hash := chunk.Hash()
			if err := tx.Set(makeChunkKey(chunk.ConversationId, hash), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeConvKey(chunk.ConversationId, hash), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.logger.Debug("flushed chunks to index", "count", len(chunks))
	return nil
}

// HasConversation probes the conversation index for any entry.
func (x *Index) HasConversation(ctx context.Context, conversationId string) (bool, error) {
	var found bool
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeConvPrefix(conversationId)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		found = iter.Valid()
		return nil
	}, false)
	return found, err
}

// Query scans all chunks and returns the nearest matches by cosine
// distance, ascending, honoring the filter.
func (x *Index) Query(ctx context.Context, vector []float32, filter storage.Filter) ([]storage.Match, error) {
	var matches []storage.Match

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			if len(chunk.Vector) == 0 {
				continue
			}
			if filter.UserId != "" && chunk.UserId != filter.UserId {
				continue
			}

			matches = append(matches, storage.Match{
				Chunk:    chunk,
				Distance: cosineDistance(vector, chunk.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b storage.Match) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return 0
	})

	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	return matches, nil
}

// Close is a no-op; the shared backend owns the database lifecycle.
func (x *Index) Close() error {
	return nil
}

// cosineDistance returns 1 - cosine(a, b), in [0, 2]. Orthogonal vectors
// score 1, opposite vectors 2.
func cosineDistance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(1 - cos)
}
