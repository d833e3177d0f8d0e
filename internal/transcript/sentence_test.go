package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndsSentence(t *testing.T) {
	assert.True(t, EndsSentence("hello there."))
	assert.True(t, EndsSentence("hello there. "))
	assert.True(t, EndsSentence("今天天气很好。"))
	assert.False(t, EndsSentence("hello there"))
	assert.False(t, EndsSentence(""))
	assert.False(t, EndsSentence("   "))
}

func TestSplitSentences(t *testing.T) {
	sentences, remainder := SplitSentences("Hi there. How are you? I am fine")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Hi there.", sentences[0])
	assert.Equal(t, "How are you?", sentences[1])
	assert.Equal(t, "I am fine", remainder)
}

func TestSplitSentencesNoRemainder(t *testing.T) {
	sentences, remainder := SplitSentences("Done.")
	require.Len(t, sentences, 1)
	assert.Equal(t, "", remainder)
}

func TestSplitSentencesRepeatedPunctuation(t *testing.T) {
	sentences, remainder := SplitSentences("Wait... Really?!")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Wait...", sentences[0])
	assert.Equal(t, "Really?!", sentences[1])
	assert.Equal(t, "", remainder)
}
