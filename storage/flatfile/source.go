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


package flatfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/storage"
)

// sourceRecord is the JSONL schema for exported conversations.
type sourceRecord struct {
	Id        string         `json:"id"`
	UserId    string         `json:"user_id"`
	Title     string         `json:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Messages  []sourceTurn   `json:"messages"`
}

type sourceTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Index   int    `json:"index"`
}

// Source reads conversations from a JSONL export, one conversation per
// line. Lines that fail to parse are skipped with an error count rather
// than aborting the run; one malformed export line must not block an
// archive.
type Source struct {
	file    *os.File
	scanner *bufio.Scanner

	// BadLines counts skipped unparseable lines.
	BadLines int
}

var _ storage.ConversationSource = (*Source)(nil)

// maxLineBytes accommodates long transcripts on a single JSONL line.
const maxLineBytes = 16 << 20

// OpenSource opens a JSONL conversation export.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	return &Source{file: f, scanner: scanner}, nil
}

// Next returns up to limit conversations from the file.
func (s *Source) Next(ctx context.Context, limit int) ([]*core.Conversation, error) {
	var out []*core.Conversation

	for len(out) < limit && s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec sourceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			s.BadLines++
			continue
		}

		conv := &core.Conversation{
			Id:        rec.Id,
			UserId:    rec.UserId,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt,
			Turns:     make([]core.Turn, 0, len(rec.Messages)),
		}
		for _, m := range rec.Messages {
			conv.Turns = append(conv.Turns, core.Turn{
				Speaker:   core.ParseSpeaker(m.Speaker),
				Text:      m.Text,
				TurnIndex: m.Index,
			})
		}
		out = append(out, conv)
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation export: %w", err)
	}
	return out, nil
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}
