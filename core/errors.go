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


package core

import "errors"

var (
	// ErrInvalidConversation indicates a conversation failed domain validation.
	ErrInvalidConversation = errors.New("invalid conversation")

	// ErrInvalidTurn indicates a turn failed domain validation.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrEmptyConversationId indicates a conversation has no identifier.
	ErrEmptyConversationId = errors.New("conversation id is empty")

	// ErrEmptyText indicates a turn has no text content.
	ErrEmptyText = errors.New("turn text is empty")

	// ErrInvalidSpeaker indicates a turn has an unrecognized speaker.
	ErrInvalidSpeaker = errors.New("invalid speaker")

	// ErrTurnOrder indicates turn indexes are not strictly increasing.
	ErrTurnOrder = errors.New("turn indexes must be strictly increasing")
)
