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


package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// hintSafetyFactor pads the provider's retry-after hint so the retried
// call lands slightly after the window reopens.
const hintSafetyFactor = 1.2

// Client wraps an Embedder with adaptive batch sizing and a bounded retry
// loop. One Client (and its Limiter) is shared by all pipeline workers so
// throttling feedback from any worker slows everyone down.
type Client struct {
	embedder    Embedder
	limiter     *Limiter
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a retrying client. maxAttempts bounds the retry loop
// per batch; baseDelay seeds the backoff schedule.
func NewClient(embedder Embedder, limiter *Limiter, maxAttempts int, baseDelay time.Duration) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		embedder:    embedder,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      slog.Default().With("component", "embedding-client"),
		sleep:       sleepCtx,
	}
}

// BatchSize returns the limiter's current adaptive batch size.
func (c *Client) BatchSize() int {
	return c.limiter.BatchSize()
}

// EmbedBatch embeds one batch of texts, retrying on failure up to the
// attempt cap. The loop is iterative: each attempt waits out the pacing
// interval, calls the provider, and on failure sleeps the computed
// backoff before the next attempt. A batch that exhausts its attempts
// returns ErrMaxRetries; the caller decides what that kills.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.embedder.EmbedTexts(ctx, texts)
		c.limiter.CallEnded()

		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("%w: got %d, want %d",
					ErrVectorCountMismatch, len(vectors), len(texts))
			}
			c.limiter.OnSuccess()
			return vectors, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := c.delayFor(err, attempt)
		c.logger.Warn("embedding call failed, backing off",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"batch", len(texts),
			"delay", delay,
			"err", err)

		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %w", ErrMaxRetries, c.maxAttempts, lastErr)
}

// delayFor computes the backoff before the next attempt. Rate limits with
// a provider hint use the hint padded by the safety factor; rate limits
// without one back off exponentially. Other transient errors back off
// linearly.
func (c *Client) delayFor(err error, attempt int) time.Duration {
	if rle, ok := AsRateLimit(err); ok {
		c.limiter.OnRateLimit()
		if rle.RetryAfter > 0 {
			return time.Duration(float64(rle.RetryAfter) * hintSafetyFactor)
		}
		return c.baseDelay * time.Duration(1<<attempt)
	}
	return c.baseDelay * time.Duration(attempt)
}
