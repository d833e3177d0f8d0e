// Package metrics exposes Prometheus instrumentation for the pipeline's
// stages, following the teacher's promauto registration idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcriber_sessions_active",
		Help: "Currently active transcription sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_sessions_total",
		Help: "Total sessions started",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcriber_stage_duration_seconds",
		Help:    "Per-stage processing latency",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0},
	}, []string{"stage"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcriber_queue_depth",
		Help: "Items currently queued between pipeline stages",
	}, []string{"queue"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriber_errors_total",
		Help: "Stage error counts by kind",
	}, []string{"stage", "error_kind"})

	AudioFramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_audio_frames_total",
		Help: "Total audio frames processed by the VAD gate",
	})

	SpeechSegmentsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_speech_segments_total",
		Help: "Utterance boundaries detected by the VAD gate",
	})

	DecoderRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_decoder_restarts_total",
		Help: "Decoder child-process restarts after a crash",
	})

	PublishedSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcriber_published_snapshots_total",
		Help: "Snapshots delivered to subscribers",
	})
)
