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

import "errors"

var (
	// ErrSourceRequired indicates the pipeline was built without a
	// conversation source.
	ErrSourceRequired = errors.New("conversation source is required")

	// ErrIndexRequired indicates the pipeline was built without a vector
	// index.
	ErrIndexRequired = errors.New("vector index is required")

	// ErrCheckpointRequired indicates the pipeline was built without a
	// checkpoint store.
	ErrCheckpointRequired = errors.New("checkpoint store is required")

	// ErrClientRequired indicates the pipeline was built without an
	// embedding client.
	ErrClientRequired = errors.New("embedding client is required")
)
