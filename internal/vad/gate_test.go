package vad

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/model"
)

func frame() []float32 { return make([]float32, frameSize) }

func TestGateOpensAndRepaysPreSpeech(t *testing.T) {
	fake := &model.FakeVad{Events: []model.VadEvent{
		{}, {}, {SpeechStart: true}, {}, {SpeechEnd: true},
	}}
	g := New(fake, Config{PreSpeechFrames: 3, MinSpeechFrames: 1})
	ctx := context.Background()

	r, err := g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.Equal(t, Silent, r.State)

	r, err = g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.Equal(t, Silent, r.State)

	r, err = g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.True(t, r.SpeechStart)
	assert.Equal(t, Active, r.State)
	// pre-speech ring held the two prior silent frames, replayed now
	// ahead of the speech-start frame itself.
	assert.Len(t, r.Samples, 3*frameSize)

	r, err = g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.Equal(t, Active, r.State)
	assert.False(t, r.SpeechEnd)

	r, err = g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.True(t, r.SpeechEnd)
	assert.Equal(t, Silent, r.State)
}

func TestGateFiltersShortSpeech(t *testing.T) {
	fake := &model.FakeVad{Events: []model.VadEvent{
		{SpeechStart: true}, {SpeechEnd: true},
	}}
	g := New(fake, Config{PreSpeechFrames: 2, MinSpeechFrames: 5})
	ctx := context.Background()

	_, err := g.Feed(ctx, frame())
	require.NoError(t, err)
	r, err := g.Feed(ctx, frame())
	require.NoError(t, err)
	assert.False(t, r.SpeechEnd, "below MinSpeechFrames should not signal an utterance boundary")
}

func TestGateRejectsWrongFrameSize(t *testing.T) {
	g := New(&model.FakeVad{}, DefaultConfig())
	_, err := g.Feed(context.Background(), make([]float32, 10))
	assert.Error(t, err)
}
