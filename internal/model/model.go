// Package model defines the narrow external capability interfaces the
// pipeline drives: ASR encoder/decoder steps, whole-chunk ASR, voice
// activity detection, diarization, and translation. These describe model
// calls, not deployment transport — a concrete adapter may be an
// in-process binding (see silero.go) or an HTTP client; the pipeline only
// ever depends on the interfaces below.
package model

import "context"

// EncoderState is an opaque, implementation-specific snapshot of an ASR
// encoder's running state (e.g. an attention cache). The pipeline never
// inspects it; it only threads it from one AsrEncoder.Encode call to the
// next within a session.
type EncoderState any

// AsrEncoder incrementally encodes streaming audio into model-internal
// representations, used by the AlignAtt policy.
type AsrEncoder interface {
	// Encode consumes newly available samples (16 kHz mono float32) and
	// the previous encoder state (nil on the first call), returning the
	// updated state.
	Encode(ctx context.Context, samples []float32, prevState EncoderState) (EncoderState, error)
}

// AttentionScores reports, for each decoded token, the cross-attention
// distribution over encoder frames — already averaged over the model's
// curated alignment-heads set — that AlignAtt inspects to decide how much
// of a hypothesis is safe to commit.
type AttentionScores struct {
	Tokens []string
	// Attention holds one distribution per token in Tokens: Attention[i]
	// has FrameCount entries summing to 1, the averaged cross-attention
	// weight that token i places on each encoder frame.
	Attention  [][]float64
	FrameCount int
}

// AsrDecoder decodes tokens from encoder state, reporting the attention
// scores AlignAtt uses for its tail-mass fire rule.
type AsrDecoder interface {
	Decode(ctx context.Context, state EncoderState) (AttentionScores, error)
}

// AsrWholeChunkTranscriber transcribes a bounded window of audio in one
// call, used by the LocalAgreement policy, which re-transcribes its
// trailing buffer on every tick and reconciles hypotheses via longest
// common prefix.
type AsrWholeChunkTranscriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (WholeChunkResult, error)
}

// WholeChunkResult is one transcription pass over a bounded audio window.
type WholeChunkResult struct {
	Words      []Word
	Language   string
}

// Word is a single hypothesized word with its audio-relative timing.
type Word struct {
	Text       string
	StartSec   float64
	EndSec     float64
	Confidence float64
}

// VadEvent reports a start or end of speech detected on the most recent
// frame, or neither.
type VadEvent struct {
	SpeechStart bool
	SpeechEnd   bool
}

// Vad detects voice activity on fixed-size frames of audio. Implementations
// are stateful across calls within one session and must not be shared
// across sessions without external synchronization.
type Vad interface {
	// Feed consumes exactly one frame of samples (nominally 512 samples
	// at 16 kHz) and returns any speech boundary crossed on this frame.
	Feed(ctx context.Context, samples []float32) (VadEvent, error)
	// Reset clears internal state for reuse on a new session.
	Reset()
}

// Diarizer assigns a stable integer speaker ID to a window of audio,
// given a speaker embedding model's view of who has spoken so far in the
// session. IDs are stable only within one Diarizer instance's lifetime.
type Diarizer interface {
	Assign(ctx context.Context, samples []float32, sampleRate int, startSec, endSec float64) (speakerID int, err error)
}

// Translator translates a batch of sentence-grouped source text into the
// configured target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
