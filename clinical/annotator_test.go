package clinical

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centauraa/angel-context/core"
)

func turnsFrom(pairs ...[2]string) []core.Turn {
	turns := make([]core.Turn, len(pairs))
	for i, p := range pairs {
		turns[i] = core.Turn{
			Speaker:   core.ParseSpeaker(p[0]),
			Text:      p[1],
			TurnIndex: i,
		}
	}
	return turns
}

func TestAnnotate_SuicidalContentIsCritical(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "sometimes i think about ending my life"},
		[2]string{"provider", "thank you for telling me, that takes courage"},
	))

	require.NotNil(t, profile)
	assert.Equal(t, core.CrisisCritical, profile.CrisisLevel)
	assert.True(t, profile.SuicidalContent)
}

func TestAnnotate_SelfHarmIsHigh(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "i have been cutting myself when it gets bad"},
	))

	assert.Equal(t, core.CrisisHigh, profile.CrisisLevel)
	assert.True(t, profile.SelfHarmContent)
	assert.False(t, profile.SuicidalContent)
}

func TestAnnotate_HopelessnessIsMedium(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "everything feels hopeless, there is no point"},
	))

	assert.Equal(t, core.CrisisMedium, profile.CrisisLevel)
	assert.True(t, profile.Hopelessness)
}

func TestAnnotate_HighestSeverityWins(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "i feel hopeless"},
		[2]string{"user", "i want to die"},
		[2]string{"user", "i hurt myself yesterday"},
	))

	assert.Equal(t, core.CrisisCritical, profile.CrisisLevel)
	assert.True(t, profile.SuicidalContent)
	assert.True(t, profile.SelfHarmContent)
	assert.True(t, profile.Hopelessness)
}

func TestAnnotate_ProviderTurnsNeverRaiseCrisis(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"provider", "many people who feel suicidal find that talking helps"},
		[2]string{"user", "that makes sense, thank you"},
	))

	assert.Equal(t, core.CrisisNone, profile.CrisisLevel)
	assert.False(t, profile.SuicidalContent)
}

func TestAnnotate_LongCalmConversationStaysNone(t *testing.T) {
	d := NewKeywordDetector()

	var turns []core.Turn
	for i := 0; i < 25; i++ {
		speaker := core.SpeakerUser
		if i%2 == 1 {
			speaker = core.SpeakerProvider
		}
		turns = append(turns, core.Turn{
			Speaker:   speaker,
			Text:      fmt.Sprintf("we talked about the garden on visit number %d", i),
			TurnIndex: i,
		})
	}

	profile := d.Annotate(turns)
	assert.Equal(t, core.CrisisNone, profile.CrisisLevel)
	assert.Equal(t, 25, profile.MessageCount)
}

func TestAnnotate_SymptomsFromUserTurnsOnly(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "i am so anxious and i can't sleep"},
		[2]string{"provider", "depression and fatigue often travel together"},
	))

	assert.ElementsMatch(t, []string{"anxiety", "insomnia"}, profile.Symptoms)
}

func TestAnnotate_CopingFromAllTurns(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"provider", "have you tried a breathing exercise when it starts"},
		[2]string{"user", "i do meditate most mornings"},
	))

	// "breathing exercise" trips both the breathing and exercise
	// detectors; both are real strategies the therapist suggested.
	assert.ElementsMatch(t, []string{"breathing", "exercise", "meditation"}, profile.CopingStrategies)
}

func TestAnnotate_OutcomePositive(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "i was a mess this morning"},
		[2]string{"provider", "let's try the grounding steps"},
		[2]string{"user", "okay"},
		[2]string{"user", "that helped, i feel calmer now, thank you"},
	))

	assert.Equal(t, core.OutcomePositive, profile.Outcome)
}

func TestAnnotate_OutcomeConcerning(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "i tried what we discussed"},
		[2]string{"user", "it made things worse and i am still anxious"},
	))

	assert.Equal(t, core.OutcomeConcerning, profile.Outcome)
}

func TestAnnotate_OutcomeWindowIgnoresEarlyTurns(t *testing.T) {
	// The positive language sits outside the trailing window, so it must
	// not influence the score.
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"user", "things were so much better last month, really good"},
		[2]string{"user", "we talked on the phone"},
		[2]string{"user", "we met on tuesday"},
		[2]string{"user", "nothing new since then"},
	))

	assert.Equal(t, core.OutcomeNeutral, profile.Outcome)
}

func TestAnnotate_NoUserTurnsIsUnknown(t *testing.T) {
	d := NewKeywordDetector()
	profile := d.Annotate(turnsFrom(
		[2]string{"provider", "are you still there?"},
	))

	assert.Equal(t, core.OutcomeUnknown, profile.Outcome)
}
