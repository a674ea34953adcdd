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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/sanitize"
	"github.com/centauraa/angel-context/storage"
)

const (
	// minImportTurns is the floor below which a transcript carries too
	// little signal to archive.
	minImportTurns = 20

	// maxImportTurns caps pathological transcripts; the tail beyond it is
	// dropped and the conversation flagged as truncated.
	maxImportTurns = 2000
)

// ConversationWriter persists imported conversations. *postgres.Store
// satisfies it.
type ConversationWriter interface {
	UpsertConversations(ctx context.Context, convs []*core.Conversation) error
}

// ImportStats reports an archive import.
type ImportStats struct {
	Imported  int
	Skipped   int
	Truncated int
}

// Importer copies transcripts from a source into the conversation
// archive, applying admission rules: conversations under minImportTurns
// are skipped, conversations over maxImportTurns are truncated, and every
// kept turn gets an estimated token count. Conversations without an ID
// are assigned one.
type Importer struct {
	writer    ConversationWriter
	batchSize int
	logger    *slog.Logger
}

// NewImporter creates an archive importer.
func NewImporter(writer ConversationWriter, batchSize int) *Importer {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Importer{
		writer:    writer,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "importer"),
	}
}

// Import drains the source into the archive.
func (im *Importer) Import(ctx context.Context, source storage.ConversationSource) (ImportStats, error) {
	var stats ImportStats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch, err := source.Next(ctx, im.batchSize)
		if err != nil {
			return stats, fmt.Errorf("reading import source: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		keep := make([]*core.Conversation, 0, len(batch))
		for _, conv := range batch {
			if len(conv.Turns) < minImportTurns {
				stats.Skipped++
				continue
			}
			if len(conv.Turns) > maxImportTurns {
				conv.Turns = conv.Turns[:maxImportTurns]
				stats.Truncated++
				im.logger.Warn("truncated oversized conversation",
					"conversation", conv.Id, "kept_turns", maxImportTurns)
			}
			if conv.Id == "" {
				conv.Id = uuid.NewString()
			}
			for i := range conv.Turns {
				conv.Turns[i].TokenCount = sanitize.EstimateTokens(conv.Turns[i].Text)
			}
			keep = append(keep, conv)
		}

		if len(keep) > 0 {
			if err := im.writer.UpsertConversations(ctx, keep); err != nil {
				return stats, fmt.Errorf("writing import batch: %w", err)
			}
			stats.Imported += len(keep)
		}
	}
}
