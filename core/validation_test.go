package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConversation() *Conversation {
	return &Conversation{
		Id:     "conv-1",
		UserId: "user-1",
		Turns: []Turn{
			{Speaker: SpeakerUser, Text: "hello", TurnIndex: 0},
			{Speaker: SpeakerProvider, Text: "hi, how are you feeling today", TurnIndex: 1},
			{Speaker: SpeakerUser, Text: "a bit stressed", TurnIndex: 2},
		},
	}
}

func TestValidateConversation_Valid(t *testing.T) {
	require.NoError(t, ValidateConversation(validConversation()))
}

func TestValidateConversation_Nil(t *testing.T) {
	err := ValidateConversation(nil)
	assert.ErrorIs(t, err, ErrInvalidConversation)
}

func TestValidateConversation_EmptyId(t *testing.T) {
	conv := validConversation()
	conv.Id = ""
	assert.ErrorIs(t, ValidateConversation(conv), ErrEmptyConversationId)
}

func TestValidateConversation_DuplicateTurnIndex(t *testing.T) {
	conv := validConversation()
	conv.Turns[2].TurnIndex = 1
	assert.ErrorIs(t, ValidateConversation(conv), ErrTurnOrder)
}

func TestValidateConversation_DecreasingTurnIndex(t *testing.T) {
	conv := validConversation()
	conv.Turns[1].TurnIndex = 5
	assert.ErrorIs(t, ValidateConversation(conv), ErrTurnOrder)
}

func TestValidateTurn_EmptyText(t *testing.T) {
	err := ValidateTurn(&Turn{Speaker: SpeakerUser, Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestValidateTurn_UnknownSpeaker(t *testing.T) {
	err := ValidateTurn(&Turn{Speaker: SpeakerUnknown, Text: "hello"})
	assert.ErrorIs(t, err, ErrInvalidSpeaker)
}

func TestUserTurns(t *testing.T) {
	conv := validConversation()
	users := UserTurns(conv.Turns)
	require.Len(t, users, 2)
	assert.Equal(t, 0, users[0].TurnIndex)
	assert.Equal(t, 2, users[1].TurnIndex)
}
