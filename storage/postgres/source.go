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


package postgres

import (
	"context"
	"fmt"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

// Source iterates the conversation archive in batches, keyed past the
// last conversation ID seen, so ingestion never holds the whole archive
// in memory.
type Source struct {
	store  *Store
	cursor string
}

var _ storage.ConversationSource = (*Source)(nil)

// NewSource creates a batched source over the store's archive.
func NewSource(store *Store) *Source {
	return &Source{store: store}
}

// Next returns up to limit conversations past the cursor, with their
// turns loaded, ordered by conversation ID.
func (s *Source) Next(ctx context.Context, limit int) ([]*core.Conversation, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT id, user_id, title, created_at
		FROM conversations
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, s.cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation batch: %w", err)
	}
	defer rows.Close()

	var convs []*core.Conversation
	for rows.Next() {
		conv := &core.Conversation{}
		if err := rows.Scan(&conv.Id, &conv.UserId, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}

	for _, conv := range convs {
		if err := s.loadTurns(ctx, conv); err != nil {
			return nil, err
		}
	}

	s.cursor = convs[len(convs)-1].Id
	return convs, nil
}

func (s *Source) loadTurns(ctx context.Context, conv *core.Conversation) error {
	rows, err := s.store.pool.Query(ctx, `
		SELECT turn_index, speaker, text, token_count
		FROM messages
		WHERE conversation_id = $1
		ORDER BY turn_index
	`, conv.Id)
	if err != nil {
		return fmt.Errorf("load turns %s: %w", conv.Id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			turn    core.Turn
			speaker string
		)
		if err := rows.Scan(&turn.TurnIndex, &speaker, &turn.Text, &turn.TokenCount); err != nil {
			return err
		}
		turn.Speaker = core.ParseSpeaker(speaker)
		conv.Turns = append(conv.Turns, turn)
	}
	return rows.Err()
}

// Close is a no-op; the store owns the pool.
func (s *Source) Close() error {
	return nil
}
