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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoHost indicates the embedding host was not configured.
	ErrNoHost = errors.New("embedding host not configured")

	// ErrNoModel indicates the embedding model was not configured.
	ErrNoModel = errors.New("embedding model not configured")

	// ErrMaxRetries indicates a batch kept failing after the retry budget
	// was spent. The batch is fatal; other batches continue.
	ErrMaxRetries = errors.New("embedding batch failed after max retries")

	// ErrVectorCountMismatch indicates the provider returned a different
	// number of vectors than texts submitted.
	ErrVectorCountMismatch = errors.New("provider returned wrong vector count")
)

// RateLimitError is returned by an Embedder when the provider throttled
// the request. RetryAfter carries the provider's hint when it gave one,
// zero otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// AsRateLimit unwraps err to a *RateLimitError if one is in the chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
