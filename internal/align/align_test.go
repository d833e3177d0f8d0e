package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/transcript"
)

func TestBuildSplitsOnSpeakerChange(t *testing.T) {
	tokens := []transcript.Token{
		{Text: "hi", StartSec: 0, EndSec: 0.5},
		{Text: "there", StartSec: 0.5, EndSec: 1.0},
		{Text: "hello", StartSec: 1.0, EndSec: 1.5},
	}
	speakers := []transcript.SpeakerInterval{
		{SpeakerID: 0, StartSec: 0, EndSec: 1.0},
		{SpeakerID: 1, StartSec: 1.0, EndSec: 2.0},
	}

	segments := Build(tokens, speakers, nil, 2.0)
	require.Len(t, segments, 2)
	assert.Equal(t, "hi there", segments[0].Text)
	assert.Equal(t, 0, segments[0].SpeakerID)
	assert.Equal(t, "hello", segments[1].Text)
	assert.Equal(t, 1, segments[1].SpeakerID)
}

func TestBuildSplitsOnSentenceBoundary(t *testing.T) {
	tokens := []transcript.Token{
		{Text: "Hi.", StartSec: 0, EndSec: 0.5},
		{Text: "There", StartSec: 0.5, EndSec: 1.0},
	}
	speakers := []transcript.SpeakerInterval{{SpeakerID: 0, StartSec: 0, EndSec: 2.0}}

	segments := Build(tokens, speakers, nil, 2.0)
	require.Len(t, segments, 2)
	assert.Equal(t, "Hi.", segments[0].Text)
	assert.Equal(t, "There", segments[1].Text)
}

func TestBuildAttachesCoveringTranslation(t *testing.T) {
	tokens := []transcript.Token{
		{Text: "Hi.", StartSec: 0, EndSec: 0.5},
	}
	speakers := []transcript.SpeakerInterval{{SpeakerID: 0, StartSec: 0, EndSec: 1.0}}
	translations := []transcript.Translation{
		{StartSec: 0, EndSec: 0.5, Text: "Hola.", Language: "es"},
	}

	segments := Build(tokens, speakers, translations, 1.0)
	require.Len(t, segments, 1)
	require.NotNil(t, segments[0].Translation)
	assert.Equal(t, "Hola.", segments[0].Translation.Text)
}

func TestBuildEmptyTokens(t *testing.T) {
	assert.Nil(t, Build(nil, nil, nil, 0))
}

func TestBuildAssignsSpeakerByLargestIntersection(t *testing.T) {
	// A token spanning [0.8, 1.6) straddles the 1.0s speaker boundary
	// asymmetrically: 0.2s with speaker 0, 0.6s with speaker 1. The larger
	// overlap should win even though the token starts in speaker 0's span.
	tokens := []transcript.Token{
		{Text: "straddle", StartSec: 0.8, EndSec: 1.6},
	}
	speakers := []transcript.SpeakerInterval{
		{SpeakerID: 0, StartSec: 0, EndSec: 1.0},
		{SpeakerID: 1, StartSec: 1.0, EndSec: 2.0},
	}

	segments := Build(tokens, speakers, nil, 2.0)
	require.Len(t, segments, 1)
	assert.Equal(t, 1, segments[0].SpeakerID)
}

func TestBuildGatesOnEndOfDiarizedAudio(t *testing.T) {
	// The token ends after the diarization frontier, so it must not be
	// assigned a speaker even though an interval would otherwise cover it.
	tokens := []transcript.Token{
		{Text: "future", StartSec: 1.0, EndSec: 1.5},
	}
	speakers := []transcript.SpeakerInterval{
		{SpeakerID: 1, StartSec: 0, EndSec: 2.0},
	}

	segments := Build(tokens, speakers, nil, 1.0)
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].SpeakerID)
}
