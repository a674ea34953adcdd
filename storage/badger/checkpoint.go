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
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/centauraa/angel-context/storage"
)

// Checkpoint is the BadgerDB-backed checkpoint store. The processed set
// is loaded into memory at open so Contains is a map lookup; Mark writes
// through to the database immediately, so Flush has nothing buffered.
type Checkpoint struct {
	backend *Backend

	mu   sync.RWMutex
	seen map[string]struct{}
}

var _ storage.CheckpointStore = (*Checkpoint)(nil)

// OpenCheckpoint loads the processed-conversation set from the backend.
func OpenCheckpoint(backend *Backend) (*Checkpoint, error) {
	c := &Checkpoint{
		backend: backend,
		seen:    make(map[string]struct{}),
	}

	prefix := []byte(checkpointPrefix + ":")
	err := backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			c.seen[string(key[len(prefix):])] = struct{}{}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Contains reports whether the conversation was already processed.
func (c *Checkpoint) Contains(conversationId string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[conversationId]
	return ok
}

// Mark records the conversation as processed, durably.
func (c *Checkpoint) Mark(conversationId string) error {
	err := c.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeCheckpointKey(conversationId), []byte{1})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.seen[conversationId] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Flush is a no-op; marks are written through.
func (c *Checkpoint) Flush() error {
	return nil
}

// Len returns the number of processed conversations.
func (c *Checkpoint) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// Close is a no-op; the shared backend owns the database lifecycle.
func (c *Checkpoint) Close() error {
	return nil
}
