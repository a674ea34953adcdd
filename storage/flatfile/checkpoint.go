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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/centauraa/angel-context/storage"
)

// autoFlushEvery bounds how many buffered marks can be lost to a crash.
const autoFlushEvery = 64

// Checkpoint is a newline-delimited file of processed conversation IDs.
// The whole set is loaded at open; marks are buffered in memory and
// appended to the file on Flush, or automatically every autoFlushEvery
// marks.
type Checkpoint struct {
	path string

	mu      sync.Mutex
	seen    map[string]struct{}
	pending []string
	closed  bool
}

var _ storage.CheckpointStore = (*Checkpoint)(nil)

// OpenCheckpoint loads the checkpoint file, creating parent directories
// as needed. A missing file is an empty checkpoint.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{
		path: path,
		seen: make(map[string]struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			c.seen[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return c, nil
}

// Contains reports whether the conversation was already processed.
func (c *Checkpoint) Contains(conversationId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[conversationId]
	return ok
}

// Mark buffers the conversation as processed. Marks are persisted by
// Flush; every autoFlushEvery buffered marks trigger one automatically.
func (c *Checkpoint) Mark(conversationId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return storage.ErrClosed
	}
	if _, ok := c.seen[conversationId]; ok {
		return nil
	}

	c.seen[conversationId] = struct{}{}
	c.pending = append(c.pending, conversationId)

	if len(c.pending) >= autoFlushEvery {
		return c.flushLocked()
	}
	return nil
}

// Flush appends buffered marks to the file and syncs it.
func (c *Checkpoint) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return storage.ErrClosed
	}
	return c.flushLocked()
}

func (c *Checkpoint) flushLocked() error {
	if len(c.pending) == 0 {
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, id := range c.pending {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	c.pending = c.pending[:0]
	return nil
}

// Len returns the number of processed conversations.
func (c *Checkpoint) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Close flushes buffered marks and marks the store closed.
func (c *Checkpoint) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err := c.flushLocked(); err != nil {
		return fmt.Errorf("flushing checkpoint on close: %w", err)
	}
	c.closed = true
	return nil
}
