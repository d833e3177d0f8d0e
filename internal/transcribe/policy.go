// Package transcribe implements the transcriber stage: it turns gated
// speech audio into committed tokens plus a tentative hypothesis, using
// one of two interchangeable stabilization policies — AlignAtt (attention-
// fire based) or LocalAgreement (hypothesis-buffering based) — behind a
// single Policy interface rather than a class hierarchy.
package transcribe

import (
	"context"

	"github.com/transcriberd/transcriberd/internal/transcript"
)

// TickResult is what one Policy.Tick or Policy.Flush call reports: the
// newly committed tokens and the current tentative hypothesis.
type TickResult struct {
	Committed []transcript.Token
	Tentative transcript.TentativeBuffer
}

// Policy incrementally transcribes streaming audio, committing tokens it
// is confident are stable and reporting the rest as tentative.
type Policy interface {
	// Tick consumes newly available audio (16 kHz mono float32) appended
	// at audioEndSec and returns any newly committed tokens plus the
	// current tentative hypothesis.
	Tick(ctx context.Context, newSamples []float32, audioEndSec float64) (TickResult, error)
	// Flush forces commitment of the remaining tentative hypothesis, used
	// when the VAD gate reports an utterance end or the session drains.
	Flush(ctx context.Context) (TickResult, error)
}
