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
	"regexp"
	"sync"
	"time"
)

// growthStreak is how many consecutive successful calls it takes before
// the batch size is allowed to grow again after throttling.
const growthStreak = 10

// growthFactor is the multiplier applied to the batch size once the
// success streak is reached.
const growthFactor = 1.5

// Limiter adapts the embedding batch size and call pacing to provider
// throttling. The batch size starts at the maximum and is halved on every
// rate-limit response, never dropping below the floor; after a streak of
// successes it grows back multiplicatively, capped at the maximum.
//
// A single mutex guards all state, so one Limiter can pace calls from
// many workers.
type Limiter struct {
	mu sync.Mutex

	batchSize int
	minBatch  int
	maxBatch  int
	streak    int

	// minInterval is the enforced gap between the END of one provider
	// call and the start of the next.
	minInterval time.Duration
	lastCallEnd time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a Limiter starting at maxBatch with a floor of
// minBatch.
func NewLimiter(minBatch, maxBatch int, minInterval time.Duration) *Limiter {
	if minBatch < 1 {
		minBatch = 1
	}
	if maxBatch < minBatch {
		maxBatch = minBatch
	}
	return &Limiter{
		batchSize:   maxBatch,
		minBatch:    minBatch,
		maxBatch:    maxBatch,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// BatchSize returns the current adaptive batch size. Callers slicing work
// into sub-batches should re-read it before every slice, since a
// concurrent 429 may have shrunk it.
func (l *Limiter) BatchSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batchSize
}

// OnSuccess records a successful provider call. Every growthStreak
// consecutive successes the batch size grows by growthFactor, capped at
// the maximum.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.streak++
	if l.streak < growthStreak {
		return
	}
	l.streak = 0

	grown := int(float64(l.batchSize) * growthFactor)
	if grown > l.maxBatch {
		grown = l.maxBatch
	}
	l.batchSize = grown
}

// OnRateLimit records a throttled call: the batch size is halved (not
// below the floor) and the success streak resets.
func (l *Limiter) OnRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.streak = 0
	halved := l.batchSize / 2
	if halved < l.minBatch {
		halved = l.minBatch
	}
	l.batchSize = halved
}

// WaitIfNeeded blocks until the minimum inter-call interval since the end
// of the previous call has elapsed. It returns early with the context's
// error if the context is canceled while waiting.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	var wait time.Duration
	if !l.lastCallEnd.IsZero() {
		elapsed := l.now().Sub(l.lastCallEnd)
		if elapsed < l.minInterval {
			wait = l.minInterval - elapsed
		}
	}
	sleep := l.sleep
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleep(ctx, wait)
}

// CallEnded marks the end of a provider call. The inter-call interval is
// measured from this moment, not from when the call started.
func (l *Limiter) CallEnded() {
	l.mu.Lock()
	l.lastCallEnd = l.now()
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfterPattern matches hints like "retry in 500ms", "try again in
// 1.2s", or "retry after 2s" inside provider error messages.
var retryAfterPattern = regexp.MustCompile(`(?i)(?:retry|try again)(?: after| in)?\s+([0-9.]+\s*(?:ms|s|m)\b)`)

// ParseRetryAfter extracts a retry-after hint from a provider error
// message. It returns zero when no hint is present or the hint does not
// parse.
func ParseRetryAfter(msg string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	hint := regexp.MustCompile(`\s+`).ReplaceAllString(m[1], "")
	d, err := time.ParseDuration(hint)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
