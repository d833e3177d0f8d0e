package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transcriberd/transcriberd/internal/audio"
	"github.com/transcriberd/transcriberd/internal/decoder"
	"github.com/transcriberd/transcriberd/internal/diarize"
	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/publish"
	"github.com/transcriberd/transcriberd/internal/session"
	"github.com/transcriberd/transcriberd/internal/transcribe"
	"github.com/transcriberd/transcriberd/internal/vad"
)

var (
	replayASRURL   string
	replayTransURL string
	replayLang     string
	replayTarget   string
)

// replayCmd drives the pipeline over a recorded audio file outside of
// any WebSocket connection, exercising the same Session wiring a live
// subscriber would — useful for exercising the round-trip/idempotence
// testable property offline, and for smoke-testing a deployment's model
// backends without a browser in the loop.
func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <audio-file>",
		Short: "Run the pipeline over a recorded audio file and print the final transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	cmd.Flags().StringVar(&replayASRURL, "asr-url", "", "whole-chunk ASR backend URL; uses a scripted fake transcriber if empty")
	cmd.Flags().StringVar(&replayTransURL, "translate-url", "", "translation backend URL; translation disabled if empty")
	cmd.Flags().StringVar(&replayLang, "language", "en", "source language")
	cmd.Flags().StringVar(&replayTarget, "target-language", "", "target language for translation")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	samples, err := loadSamples(ctx, path)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	asr := newReplayASR()
	var translator model.Translator
	if replayTransURL != "" {
		translator = model.NewHTTPTranslator(replayTransURL, 4)
	}

	cfg := transcribe.DefaultLocalAgreementConfig()
	policy := transcribe.NewLocalAgreement(asr, cfg)

	numFrames := len(samples) / 512
	events := make([]model.VadEvent, numFrames)
	if numFrames > 0 {
		events[0] = model.VadEvent{SpeechStart: true}
		events[numFrames-1] = model.VadEvent{SpeechEnd: true}
	}

	sessCfg := session.Config{
		SessionID:     "replay",
		Policy:        policy,
		Vad:           &model.FakeVad{Events: events},
		VadConfig:     vad.DefaultConfig(),
		Diarizer:      &model.FakeDiarizer{},
		DiarizeConfig: diarize.DefaultConfig(),
		Translator:    translator,
		PublishConfig: publish.DefaultConfig(),
		SampleRate:    16000,
	}
	if replayTarget != "" {
		sessCfg.TranslateConfig = session.TranslateConfig(replayLang, replayTarget)
	}

	sess, err := session.New(sessCfg)
	if err != nil {
		return fmt.Errorf("replay: build session: %w", err)
	}

	var final session.Snapshot
	sess.Subscribe(func(snap session.Snapshot) { final = snap })

	frames := make(chan []float32, 256)
	go func() {
		defer close(frames)
		const frameSize = 512
		for i := 0; i+frameSize <= len(samples); i += frameSize {
			frames <- samples[i : i+frameSize]
		}
	}()

	if err := sess.Run(ctx, frames); err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	out, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return fmt.Errorf("replay: encode transcript: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// loadSamples decodes a WAV file directly, or shells out through the
// configured decoder command (ffmpeg by default) for any other
// container, resampling to 16 kHz mono along the way.
func loadSamples(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, rate, err := audio.WAVFromBytes(data)
		if err != nil {
			return nil, err
		}
		return audio.Resample(samples, rate, 16000), nil
	}

	dec := decoder.New(decoder.Config{
		Command:           env.DecoderCommand,
		Args:              []string{"-loglevel", "error", "-i", "pipe:0", "-f", "s16le", "-ar", "16000", "-ac", "1", "pipe:1"},
		ChunkSamples:      512,
		MaxRestarts:       0,
		RestartBackoff:    0,
		RestartBackoffMax: 0,
	})
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := dec.Start(dctx); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	if err := dec.Feed(data); err != nil {
		return nil, fmt.Errorf("feed decoder: %w", err)
	}
	if err := dec.CloseInput(); err != nil {
		return nil, fmt.Errorf("close decoder input: %w", err)
	}

	var samples []float32
	for {
		chunk, err := dec.ReadChunk()
		for _, s := range chunk {
			samples = append(samples, float32(s)/32768.0)
		}
		if err != nil {
			break
		}
	}
	_ = dec.Wait(dctx)
	return samples, nil
}

func newReplayASR() model.AsrWholeChunkTranscriber {
	if replayASRURL != "" {
		return model.NewHTTPWholeChunkASR(replayASRURL, 4)
	}
	return &model.FakeWholeChunkASR{}
}
