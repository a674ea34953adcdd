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


package storage

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates an operation on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrNoSchema indicates the index was used before EnsureSchema.
	ErrNoSchema = errors.New("index schema not initialized")

	// ErrCorruptRecord indicates a stored record failed to deserialize.
	ErrCorruptRecord = errors.New("corrupt stored record")
)
