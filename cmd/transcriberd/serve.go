package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/transcriberd/transcriberd/internal/diag"
	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/workerpool"
	"github.com/transcriberd/transcriberd/internal/ws"
)

var (
	asrURL             string
	translateURL       string
	diarizeURL         string
	httpPoolSize       int
	asrConcurrency     int
	diarizeConcurrency int
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve transcription sessions over WebSocket",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&asrURL, "asr-url", "", "whole-chunk ASR backend URL (required for local_agreement policy)")
	cmd.Flags().StringVar(&translateURL, "translate-url", "", "translation backend URL (required when translation is enabled)")
	cmd.Flags().StringVar(&diarizeURL, "diarize-url", "", "speaker-diarization backend URL (required when diarization is enabled)")
	cmd.Flags().IntVar(&httpPoolSize, "http-pool-size", 8, "max idle connections per model backend")
	cmd.Flags().IntVar(&asrConcurrency, "asr-concurrency", 4, "max simultaneous in-flight ASR backend calls across all sessions")
	cmd.Flags().IntVar(&diarizeConcurrency, "diarize-concurrency", 4, "max simultaneous in-flight diarization backend calls across all sessions")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	var diagStore *diag.Store
	if env.PostgresURL != "" {
		store, err := diag.Open(env.PostgresURL)
		if err != nil {
			return fmt.Errorf("serve: diagnostics store: %w", err)
		}
		defer store.Close()
		diagStore = store
		slog.Info("diagnostics sink enabled")
	}

	backends := ws.Backends{
		Vad: func() (model.Vad, error) {
			return model.NewSileroVAD(model.SileroVADConfig{
				ModelPath:            env.SileroModelPath,
				SampleRate:           16000,
				Threshold:            0.5,
				MinSilenceDurationMs: 300,
				SpeechPadMs:          30,
			})
		},
	}
	if diarizeURL != "" {
		diarizePool := workerpool.New(diarizeConcurrency)
		backends.Diarizer = model.NewPooledDiarizer(model.NewHTTPDiarizer(diarizeURL, httpPoolSize), diarizePool)
	}
	if translateURL != "" {
		backends.Translator = model.NewHTTPTranslator(translateURL, httpPoolSize)
	}
	if asrURL != "" {
		asrPool := workerpool.New(asrConcurrency)
		backends.WholeChunkASR = func() model.AsrWholeChunkTranscriber {
			return model.NewPooledWholeChunkASR(model.NewHTTPWholeChunkASR(asrURL, httpPoolSize), asrPool)
		}
	}
	// No streaming encoder/decoder HTTP adapter ships with this daemon:
	// attention-score-emitting ASR backends are deployment-specific and
	// out of scope here, so align_att sessions fail fast in buildSession
	// rather than silently falling back to a fake.

	handler := ws.NewHandler(ws.HandlerConfig{
		Backends:       backends,
		Tuning:         tuning,
		Diag:           diagStore,
		DecoderCommand: env.DecoderCommand,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + env.Port
	slog.Info("transcriberd listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
