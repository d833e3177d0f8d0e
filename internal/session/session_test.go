package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/diarize"
	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/publish"
	"github.com/transcriberd/transcriberd/internal/transcribe"
	"github.com/transcriberd/transcriberd/internal/vad"
)

// failingPolicy always fails Tick, for exercising the AsrPersistent
// fatal-escalation path.
type failingPolicy struct{}

func (failingPolicy) Tick(_ context.Context, _ []float32, _ float64) (transcribe.TickResult, error) {
	return transcribe.TickResult{}, errors.New("backend unreachable")
}

func (failingPolicy) Flush(_ context.Context) (transcribe.TickResult, error) {
	return transcribe.TickResult{}, nil
}

func TestSessionEndToEndCommitsAndPublishes(t *testing.T) {
	fakeVad := &model.FakeVad{Events: []model.VadEvent{
		{SpeechStart: true}, {}, {SpeechEnd: true},
	}}
	fakeASR := &model.FakeWholeChunkASR{Results: []model.WholeChunkResult{
		{Words: []model.Word{{Text: "hello", EndSec: 0.5}}},
		{Words: []model.Word{{Text: "hello", EndSec: 0.5}, {Text: "world", EndSec: 1.0}}},
		{Words: []model.Word{{Text: "hello", EndSec: 0.5}, {Text: "world.", EndSec: 1.0}}},
	}}
	policy := transcribe.NewLocalAgreement(fakeASR, transcribe.DefaultLocalAgreementConfig())

	cfg := Config{
		SessionID:     "test-session",
		Policy:        policy,
		Vad:           fakeVad,
		VadConfig:     vad.Config{PreSpeechFrames: 2, MinSpeechFrames: 1},
		Diarizer:      &model.FakeDiarizer{SpeakerIDs: []int{0}},
		DiarizeConfig: diarize.DefaultConfig(),
		PublishConfig: publish.Config{Rate: time.Millisecond},
		SampleRate:    16000,
	}
	s, err := New(cfg)
	require.NoError(t, err)

	var snapshots []Snapshot
	s.Subscribe(func(snap Snapshot) { snapshots = append(snapshots, snap) })

	frames := make(chan []float32, 4)
	frames <- make([]float32, 512)
	frames <- make([]float32, 512)
	frames <- make([]float32, 512)
	close(frames)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.Run(ctx, frames))
	require.NotEmpty(t, snapshots)

	last := snapshots[len(snapshots)-1]
	assert.True(t, last.Ended)
	// "hello" commits once two hypotheses agree; "world." is committed by
	// the Flush that the utterance end triggers.
	assert.Equal(t, "hello world.", last.CommittedText())
}

func TestSessionRejectsBadTranslateConfig(t *testing.T) {
	cfg := Config{
		SessionID:       "bad-lang",
		Policy:          transcribe.NewLocalAgreement(&model.FakeWholeChunkASR{}, transcribe.DefaultLocalAgreementConfig()),
		Vad:             &model.FakeVad{},
		VadConfig:       vad.DefaultConfig(),
		Diarizer:        &model.FakeDiarizer{},
		DiarizeConfig:   diarize.DefaultConfig(),
		Translator:      &model.FakeTranslator{},
		TranslateConfig: TranslateConfig("not-a-lang!!", "en"),
		PublishConfig:   publish.DefaultConfig(),
	}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSessionEscalatesRepeatedAsrFailureToFatal(t *testing.T) {
	fakeVad := &model.FakeVad{Events: []model.VadEvent{
		{SpeechStart: true}, {}, {}, {}, {},
	}}

	cfg := Config{
		SessionID:      "wedged-backend",
		Policy:         failingPolicy{},
		Vad:            fakeVad,
		VadConfig:      vad.Config{PreSpeechFrames: 1, MinSpeechFrames: 1},
		Diarizer:       &model.FakeDiarizer{},
		DiarizeConfig:  diarize.DefaultConfig(),
		PublishConfig:  publish.Config{Rate: time.Millisecond},
		SampleRate:     16000,
		MaxAsrFailures: 3,
	}
	s, err := New(cfg)
	require.NoError(t, err)

	frames := make(chan []float32, 5)
	for i := 0; i < 5; i++ {
		frames <- make([]float32, 512)
	}
	close(frames)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = s.Run(ctx, frames)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, AsrPersistent, stageErr.Kind)
}
