package model

import (
	"context"
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"
)

// SileroVAD adapts github.com/streamer45/silero-vad-go's ONNX-backed
// detector to the Vad capability interface. It is the one in-process
// model binding this module ships; ASR, diarizer, and translator backends
// are reached through the HTTP adapters in this package.
type SileroVAD struct {
	detector *speech.Detector
	inSpeech bool
}

// SileroVADConfig mirrors the knobs speech.DetectorConfig exposes.
type SileroVADConfig struct {
	ModelPath            string
	SampleRate           int
	Threshold            float32
	MinSilenceDurationMs int
	SpeechPadMs          int
}

// NewSileroVAD loads the ONNX model at cfg.ModelPath and returns a Vad
// implementation. The returned detector is not safe for concurrent use;
// callers hold one per session, matching the Vad interface's contract.
func NewSileroVAD(cfg SileroVADConfig) (*SileroVAD, error) {
	det, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            cfg.Threshold,
		MinSilenceDurationMs: cfg.MinSilenceDurationMs,
		SpeechPadMs:          cfg.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero vad: load model: %w", err)
	}
	return &SileroVAD{detector: det}, nil
}

// Feed implements Vad by running one detector pass over the frame and
// diffing the resulting speech segments against the previous in-speech
// state, since the underlying detector reports segments rather than a
// per-frame event directly.
func (s *SileroVAD) Feed(_ context.Context, samples []float32) (VadEvent, error) {
	segments, err := s.detector.Detect(samples)
	if err != nil {
		return VadEvent{}, fmt.Errorf("silero vad: detect: %w", err)
	}

	nowInSpeech := s.inSpeech
	for _, seg := range segments {
		if seg.SpeechStartAt > 0 {
			nowInSpeech = true
		}
		if seg.SpeechEndAt > 0 {
			nowInSpeech = false
		}
	}

	ev := VadEvent{
		SpeechStart: !s.inSpeech && nowInSpeech,
		SpeechEnd:   s.inSpeech && !nowInSpeech,
	}
	s.inSpeech = nowInSpeech
	return ev, nil
}

// Reset clears the detector's internal state for reuse on a new session.
func (s *SileroVAD) Reset() {
	s.detector.Reset()
	s.inSpeech = false
}

// Close releases the underlying ONNX runtime session.
func (s *SileroVAD) Close() error {
	return s.detector.Destroy()
}
