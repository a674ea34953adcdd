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
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/centauraa/angel-context/clinical"
	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/embedding"
	"github.com/centauraa/angel-context/storage"
)

const (
	defaultChunkWords  = 800
	defaultCommitSize  = 1000
	defaultSourceBatch = 100
	defaultConvTimeout = 5 * time.Minute
)

// Stats accumulates a run's counters. All fields are totals for the run.
type Stats struct {
	ConversationsProcessed int
	ConversationsSkipped   int
	ConversationsFailed    int
	ChunksIndexed          int
	Quality                core.DataQuality
}

// Pipeline drives bulk ingestion: it pulls conversation batches from the
// source, fans them out to a worker pool, and funnels embedded chunks
// through a commit buffer into the vector index. A conversation is
// checkpointed only after its chunks are durably flushed, so an
// interrupted run re-processes at most the unflushed tail.
type Pipeline struct {
	source     storage.ConversationSource
	index      storage.VectorIndex
	checkpoint storage.CheckpointStore
	client     *embedding.Client
	detector   clinical.Detector
	pool       *ants.Pool
	logger     *slog.Logger

	chunkWords  int
	commitSize  int
	sourceBatch int
	convTimeout time.Duration

	mu      sync.Mutex
	pending []*core.Chunk
	owners  []string
	stats   Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size. Default is half the CPUs,
// minimum 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunkWords sets the maximum words per chunk.
func WithChunkWords(words int) Option {
	return func(p *Pipeline) error {
		if words < 1 {
			words = 1
		}
		p.chunkWords = words
		return nil
	}
}

// WithCommitSize sets how many buffered chunks trigger a flush to the
// index.
func WithCommitSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.commitSize = size
		return nil
	}
}

// WithSourceBatch sets how many conversations are pulled from the source
// per batch.
func WithSourceBatch(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.sourceBatch = size
		return nil
	}
}

// WithConversationTimeout bounds the time spent embedding one
// conversation before it is failed and the run moves on.
func WithConversationTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.convTimeout = d
		}
		return nil
	}
}

// WithDetector replaces the clinical detector.
func WithDetector(d clinical.Detector) Option {
	return func(p *Pipeline) error {
		if d != nil {
			p.detector = d
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	source storage.ConversationSource,
	index storage.VectorIndex,
	checkpoint storage.CheckpointStore,
	client *embedding.Client,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if checkpoint == nil {
		return nil, ErrCheckpointRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:      source,
		index:       index,
		checkpoint:  checkpoint,
		client:      client,
		detector:    clinical.NewKeywordDetector(),
		pool:        pool,
		logger:      slog.Default(),
		chunkWords:  defaultChunkWords,
		commitSize:  defaultCommitSize,
		sourceBatch: defaultSourceBatch,
		convTimeout: defaultConvTimeout,
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Run ingests the whole source. It returns the run's stats and the first
// fatal error, if any. Per-conversation failures are counted and logged
// but never abort the run; buffered chunks are flushed on every exit
// path, including cancellation.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if err := p.index.EnsureSchema(ctx); err != nil {
		return p.snapshot(), fmt.Errorf("ensuring index schema: %w", err)
	}

	defer func() {
		if err := p.flush(context.Background()); err != nil {
			p.logger.Error("final flush failed", "err", err)
		}
		if err := p.checkpoint.Flush(); err != nil {
			p.logger.Error("checkpoint flush failed", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return p.snapshot(), err
		}

		batch, err := p.source.Next(ctx, p.sourceBatch)
		if err != nil {
			wg.Wait()
			return p.snapshot(), fmt.Errorf("reading source batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, conv := range batch {
			conv := conv
			wg.Add(1)
			submitErr := p.pool.Submit(func() {
				defer wg.Done()
				p.processConversation(ctx, conv)
			})
			if submitErr != nil {
				wg.Done()
				wg.Wait()
				return p.snapshot(), fmt.Errorf("submitting work: %w", submitErr)
			}
		}
	}
	wg.Wait()

	if err := p.flush(ctx); err != nil {
		return p.snapshot(), fmt.Errorf("flushing chunks: %w", err)
	}

	stats := p.snapshot()
	p.logger.Info("ingestion run complete",
		"processed", stats.ConversationsProcessed,
		"skipped", stats.ConversationsSkipped,
		"failed", stats.ConversationsFailed,
		"chunks", stats.ChunksIndexed)
	return stats, nil
}

// processConversation handles one conversation end to end. Errors are
// absorbed into the failure count; one broken conversation must not
// poison the run.
func (p *Pipeline) processConversation(ctx context.Context, conv *core.Conversation) {
	log := p.logger.With("conversation", conv.Id)

	if err := core.ValidateConversation(conv); err != nil {
		log.Warn("skipping invalid conversation", "err", err)
		p.countFailed()
		return
	}

	if p.checkpoint.Contains(conv.Id) {
		p.countSkipped()
		return
	}

	// A conversation already in the index was fully flushed by an earlier
	// run whose checkpoint write was lost. Re-marking it is safe exactly
	// because presence in the index implies durability.
	if found, err := p.index.HasConversation(ctx, conv.Id); err != nil {
		log.Error("index probe failed", "err", err)
		p.countFailed()
		return
	} else if found {
		if err := p.checkpoint.Mark(conv.Id); err != nil {
			log.Error("checkpoint mark failed", "err", err)
		}
		p.countSkipped()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.convTimeout)
	defer cancel()

	profile := p.detector.Annotate(conv.Turns)
	chunks, quality := BuildChunks(conv, profile, p.chunkWords)
	p.addQuality(quality)

	if len(chunks) == 0 {
		// Nothing embeddable; done with it for good.
		if err := p.checkpoint.Mark(conv.Id); err != nil {
			log.Error("checkpoint mark failed", "err", err)
		}
		p.countProcessed()
		return
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		log.Error("embedding conversation failed", "chunks", len(chunks), "err", err)
		p.countFailed()
		return
	}

	p.enqueue(ctx, conv.Id, chunks, log)
	p.countProcessed()
}

// embedChunks embeds a conversation's chunks in sub-batches. The batch
// size is re-read from the client before every slice because a rate
// limit hit by any worker shrinks it mid-conversation.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) error {
	for start := 0; start < len(chunks); {
		size := p.client.BatchSize()
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := p.client.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, vector := range vectors {
			chunks[start+i].Vector = vector
		}
		start = end
	}
	return nil
}

// enqueue adds a finished conversation to the commit buffer and flushes
// when the threshold is reached.
func (p *Pipeline) enqueue(ctx context.Context, conversationId string, chunks []*core.Chunk, log *slog.Logger) {
	p.mu.Lock()
	p.pending = append(p.pending, chunks...)
	p.owners = append(p.owners, conversationId)
	shouldFlush := len(p.pending) >= p.commitSize
	p.mu.Unlock()

	if shouldFlush {
		if err := p.flush(ctx); err != nil {
			log.Error("commit flush failed", "err", err)
		}
	}
}

// flush writes buffered chunks to the index and, on success, checkpoints
// every conversation in the buffer. The order is the invariant: marks
// happen only after BulkUpsert has returned, i.e. after durability.
func (p *Pipeline) flush(ctx context.Context) error {
	p.mu.Lock()
	chunks := p.pending
	owners := p.owners
	p.pending = nil
	p.owners = nil
	p.mu.Unlock()

	if len(chunks) == 0 {
		return nil
	}

	if err := p.index.BulkUpsert(ctx, chunks); err != nil {
		// Put the batch back so a later flush can retry it.
		p.mu.Lock()
		p.pending = append(chunks, p.pending...)
		p.owners = append(owners, p.owners...)
		p.mu.Unlock()
		return err
	}

	for _, id := range owners {
		if err := p.checkpoint.Mark(id); err != nil {
			return fmt.Errorf("marking checkpoint %s: %w", id, err)
		}
	}

	p.mu.Lock()
	p.stats.ChunksIndexed += len(chunks)
	p.mu.Unlock()

	p.logger.Debug("flushed commit buffer", "chunks", len(chunks), "conversations", len(owners))
	return nil
}

// Stats returns a copy of the run counters.
func (p *Pipeline) Stats() Stats {
	return p.snapshot()
}

// Release releases the worker pool. The pipeline must not be used after
// Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) countProcessed() {
	p.mu.Lock()
	p.stats.ConversationsProcessed++
	p.mu.Unlock()
}

func (p *Pipeline) countSkipped() {
	p.mu.Lock()
	p.stats.ConversationsSkipped++
	p.mu.Unlock()
}

func (p *Pipeline) countFailed() {
	p.mu.Lock()
	p.stats.ConversationsFailed++
	p.mu.Unlock()
}

func (p *Pipeline) addQuality(q core.DataQuality) {
	p.mu.Lock()
	p.stats.Quality.TotalProcessed += q.TotalProcessed
	p.stats.Quality.MessagesKept += q.MessagesKept
	p.stats.Quality.FilteredPreprocessing += q.FilteredPreprocessing
	p.stats.Quality.FilteredValidation += q.FilteredValidation
	p.stats.Quality.TotalTokens += q.TotalTokens
	p.stats.Quality.PIIDetectedCount += q.PIIDetectedCount
	p.mu.Unlock()
}
