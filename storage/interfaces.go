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


package storage

import (
	"context"
	"time"

	"github.com/centauraa/angel-context/core"
)

// ConversationSource yields conversations to ingest, in batches, so the
// pipeline never loads a whole archive into memory.
type ConversationSource interface {
	// Next returns up to limit conversations past the cursor position.
	// An empty slice means the source is exhausted.
	Next(ctx context.Context, limit int) ([]*core.Conversation, error)

	// Close releases source resources.
	Close() error
}

// ConversationSummary is a lightweight view of a past conversation used
// by the history tier.
type ConversationSummary struct {
	Id           string
	Title        string
	CreatedAt    time.Time
	MessageCount int

	// Preview holds the opening turns, speaker-labeled, used to summarize
	// the conversation in assembled context.
	Preview []core.Turn
}

// HistoryStore serves per-user conversation history for context assembly.
type HistoryStore interface {
	// RecentConversations returns summaries of the user's conversations
	// newer than the cutoff, most recent first, up to limit.
	RecentConversations(ctx context.Context, userId string, cutoff time.Time, limit int) ([]ConversationSummary, error)

	// Close releases store resources.
	Close() error
}

// Filter narrows a vector index query.
type Filter struct {
	// UserId restricts matches to one user's chunks. Empty matches all.
	UserId string

	// Limit caps the number of matches returned. Zero means no cap.
	Limit int
}

// Match is a vector index hit.
type Match struct {
	Chunk *core.Chunk

	// Distance is 1 - cosine(query, chunk), in [0, 2]. Lower is closer.
	Distance float32
}

// VectorIndex stores embedded chunks and answers nearest-neighbor
// queries. Implementations must be safe for concurrent use.
type VectorIndex interface {
	// EnsureSchema prepares the index for writes. Idempotent.
	EnsureSchema(ctx context.Context) error

	// BulkUpsert writes chunks, replacing any existing chunk with the
	// same content hash. It returns only after the write is durable,
	// which is what makes checkpoint-after-flush safe.
	BulkUpsert(ctx context.Context, chunks []*core.Chunk) error

	// HasConversation reports whether any chunk of the conversation is
	// already indexed.
	HasConversation(ctx context.Context, conversationId string) (bool, error)

	// Query returns the chunks nearest to vector, filtered, ordered by
	// ascending distance.
	Query(ctx context.Context, vector []float32, filter Filter) ([]Match, error)

	// Close closes the index and releases resources.
	Close() error
}

// CheckpointStore tracks which conversations have been fully ingested so
// an interrupted run resumes where it stopped.
type CheckpointStore interface {
	// Contains reports whether the conversation was already processed.
	Contains(conversationId string) bool

	// Mark records the conversation as processed. The mark may be
	// buffered; Flush makes it durable.
	Mark(conversationId string) error

	// Flush persists buffered marks.
	Flush() error

	// Len returns the number of processed conversations.
	Len() int

	// Close flushes and releases resources.
	Close() error
}
