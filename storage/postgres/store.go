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
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

// previewTurns is how many opening turns a conversation summary carries.
const previewTurns = 10

// Store is the PostgreSQL-backed conversation archive. It serves both as
// an ingestion source and as the history store for context assembly.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.HistoryStore = (*Store)(nil)

// New connects to the database and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: slog.Default().With("component", "postgres-store"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// EnsureSchema creates the conversations and messages tables. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL,
			message_count INT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS conversations_user_created
			ON conversations (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			turn_index      INT NOT NULL,
			speaker         TEXT NOT NULL,
			text            TEXT NOT NULL,
			token_count     INT NOT NULL DEFAULT 0,
			PRIMARY KEY (conversation_id, turn_index)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertConversations writes conversations and their turns. Existing
// conversations are replaced wholesale, which keeps re-imports
// idempotent.
func (s *Store) UpsertConversations(ctx context.Context, convs []*core.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	var rows [][]any
	for _, conv := range convs {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, user_id, title, created_at, message_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				title = EXCLUDED.title,
				created_at = EXCLUDED.created_at,
				message_count = EXCLUDED.message_count
		`, conv.Id, conv.UserId, conv.Title, conv.CreatedAt, len(conv.Turns))
		if err != nil {
			return fmt.Errorf("upsert conversation %s: %w", conv.Id, err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM messages WHERE conversation_id = $1`, conv.Id); err != nil {
			return fmt.Errorf("clear messages %s: %w", conv.Id, err)
		}

		for _, turn := range conv.Turns {
			rows = append(rows, []any{
				conv.Id, turn.TurnIndex, turn.Speaker.String(), turn.Text, turn.TokenCount,
			})
		}
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"messages"},
		[]string{"conversation_id", "turn_index", "speaker", "text", "token_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Debug("upserted conversations", "count", len(convs), "messages", len(rows))
	return nil
}

// GetConversation loads one conversation with all of its turns.
func (s *Store) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	conv := &core.Conversation{Id: id}
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, title, created_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&conv.UserId, &conv.Title, &conv.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("conversation %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT turn_index, speaker, text, token_count
		FROM messages
		WHERE conversation_id = $1
		ORDER BY turn_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query turns %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			turn    core.Turn
			speaker string
		)
		if err := rows.Scan(&turn.TurnIndex, &speaker, &turn.Text, &turn.TokenCount); err != nil {
			return nil, err
		}
		turn.Speaker = core.ParseSpeaker(speaker)
		conv.Turns = append(conv.Turns, turn)
	}
	return conv, rows.Err()
}

// RecentConversations returns summaries of the user's conversations newer
// than the cutoff, most recent first, each with its opening turns as a
// preview.
func (s *Store) RecentConversations(ctx context.Context, userId string, cutoff time.Time, limit int) ([]storage.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, created_at, message_count
		FROM conversations
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userId, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent conversations: %w", err)
	}
	defer rows.Close()

	var summaries []storage.ConversationSummary
	for rows.Next() {
		var sum storage.ConversationSummary
		if err := rows.Scan(&sum.Id, &sum.Title, &sum.CreatedAt, &sum.MessageCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		preview, err := s.openingTurns(ctx, summaries[i].Id)
		if err != nil {
			return nil, err
		}
		summaries[i].Preview = preview
	}

	return summaries, nil
}

func (s *Store) openingTurns(ctx context.Context, conversationId string) ([]core.Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT turn_index, speaker, text, token_count
		FROM messages
		WHERE conversation_id = $1
		ORDER BY turn_index
		LIMIT $2
	`, conversationId, previewTurns)
	if err != nil {
		return nil, fmt.Errorf("query opening turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			turn    core.Turn
			speaker string
		)
		if err := rows.Scan(&turn.TurnIndex, &speaker, &turn.Text, &turn.TokenCount); err != nil {
			return nil, err
		}
		turn.Speaker = core.ParseSpeaker(speaker)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}
