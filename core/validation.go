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

import "fmt"

// ValidateTurn validates a Turn according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Speaker must be Provider or User
//   - TurnIndex must not be negative
//
// NOT validated:
//   - TokenCount (populated at import, 0 is valid)
//   - Id (may be empty for live session turns)
func ValidateTurn(turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}

	if turn.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyText)
	}

	if turn.Speaker != SpeakerProvider && turn.Speaker != SpeakerUser {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidSpeaker)
	}

	if turn.TurnIndex < 0 {
		return fmt.Errorf("%w: negative turn index %d", ErrInvalidTurn, turn.TurnIndex)
	}

	return nil
}

// ValidateConversation validates a Conversation according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - Every turn must be valid
//   - Turn indexes must be strictly increasing (and therefore unique)
//
// NOT validated (populated at ingestion time):
//   - Clinical (nil until the annotator runs)
func ValidateConversation(conv *Conversation) error {
	if conv == nil {
		return fmt.Errorf("%w: conversation is nil", ErrInvalidConversation)
	}

	if conv.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConversation, ErrEmptyConversationId)
	}

	prev := -1
	for i := range conv.Turns {
		if err := ValidateTurn(&conv.Turns[i]); err != nil {
			return fmt.Errorf("%w: turn %d: %w", ErrInvalidConversation, i, err)
		}
		if conv.Turns[i].TurnIndex <= prev {
			return fmt.Errorf("%w: %w (index %d after %d)",
				ErrInvalidConversation, ErrTurnOrder, conv.Turns[i].TurnIndex, prev)
		}
		prev = conv.Turns[i].TurnIndex
	}

	return nil
}

// UserTurns returns the user-side turns of a conversation in order.
func UserTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Speaker == SpeakerUser {
			out = append(out, t)
		}
	}
	return out
}
