package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammazero/deque"

	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/transcript"
)

// LocalAgreementConfig tunes the hypothesis-buffering commit rule.
type LocalAgreementConfig struct {
	SampleRate int
	// AgreementN is how many consecutive whole-chunk hypotheses must
	// agree on a prefix before it commits.
	AgreementN int
	// BufferTrimSec: once committed, trailing audio older than the last
	// committed token minus this much context is dropped from the
	// re-transcription window.
	BufferTrimSec float64
	// MaxBufferSec caps how much audio LocalAgreement will ever hold,
	// independent of commits, as a backpressure safety valve.
	MaxBufferSec float64
}

// DefaultLocalAgreementConfig returns the policy's published defaults.
func DefaultLocalAgreementConfig() LocalAgreementConfig {
	return LocalAgreementConfig{
		SampleRate:    16000,
		AgreementN:    2,
		BufferTrimSec: 1.0,
		MaxBufferSec:  20,
	}
}

// LocalAgreement re-transcribes its trailing audio buffer on every tick
// and commits the longest word prefix agreed upon across AgreementN
// consecutive hypotheses, trimming committed audio from the buffer so
// re-transcription cost stays bounded.
type LocalAgreement struct {
	cfg LocalAgreementConfig
	asr model.AsrWholeChunkTranscriber

	samples     *deque.Deque[float32]
	bufferStart float64
	history     [][]model.Word // most recent hypotheses, oldest first
	committed   []model.Word
}

// NewLocalAgreement constructs the policy over the given whole-chunk ASR.
func NewLocalAgreement(asr model.AsrWholeChunkTranscriber, cfg LocalAgreementConfig) *LocalAgreement {
	return &LocalAgreement{cfg: cfg, asr: asr, samples: deque.New[float32]()}
}

func (l *LocalAgreement) Tick(ctx context.Context, newSamples []float32, audioEndSec float64) (TickResult, error) {
	for _, s := range newSamples {
		l.samples.PushBack(s)
	}
	l.capBuffer()

	buf := l.flattenBuffer()
	result, err := l.asr.Transcribe(ctx, buf, l.cfg.SampleRate)
	if err != nil {
		return TickResult{}, fmt.Errorf("localagreement: transcribe: %w", err)
	}

	l.history = append(l.history, result.Words)
	if len(l.history) > l.cfg.AgreementN {
		l.history = l.history[len(l.history)-l.cfg.AgreementN:]
	}

	var prefix []model.Word
	if len(l.history) >= l.cfg.AgreementN {
		prefix = agreedPrefix(l.history)
	}
	if len(prefix) <= len(l.committed) {
		// Hypothesis retracted to or below what's already committed — most
		// commonly an empty current hypothesis after a non-empty one.
		// Never un-commit: just report the tentative tail.
		return TickResult{Tentative: l.tentative(result.Words, audioEndSec)}, nil
	}

	newlyCommitted := prefix[len(l.committed):]
	l.committed = prefix
	l.trimCommitted(prefix[len(prefix)-1].EndSec)

	return TickResult{
		Committed: wordsToTokens(newlyCommitted),
		Tentative: l.tentative(result.Words, audioEndSec),
	}, nil
}

// agreedPrefix returns the longest word-text prefix shared by every
// hypothesis in history; with fewer than two hypotheses nothing is agreed.
func agreedPrefix(history [][]model.Word) []model.Word {
	if len(history) < 2 {
		return nil
	}
	shortest := history[0]
	for _, h := range history[1:] {
		if len(h) < len(shortest) {
			shortest = h
		}
	}

	var agreed []model.Word
	for i := range shortest {
		text := strings.ToLower(shortest[i].Text)
		match := true
		for _, h := range history {
			if i >= len(h) || strings.ToLower(h[i].Text) != text {
				match = false
				break
			}
		}
		if !match {
			break
		}
		agreed = append(agreed, shortest[i])
	}
	return agreed
}

func (l *LocalAgreement) tentative(words []model.Word, audioEndSec float64) transcript.TentativeBuffer {
	tail := words
	if len(l.committed) < len(words) {
		tail = words[len(l.committed):]
	} else {
		tail = nil
	}
	return transcript.TentativeBuffer{Tokens: wordsToTokens(tail), AsOfSec: audioEndSec}
}

// trimCommitted drops audio older than upToSec minus BufferTrimSec,
// keeping the re-transcription window bounded as commits advance.
func (l *LocalAgreement) trimCommitted(upToSec float64) {
	keepFrom := upToSec - l.cfg.BufferTrimSec
	dropSamples := int((keepFrom - l.bufferStart) * float64(l.cfg.SampleRate))
	for i := 0; i < dropSamples && l.samples.Len() > 0; i++ {
		l.samples.PopFront()
		l.bufferStart += 1 / float64(l.cfg.SampleRate)
	}
}

func (l *LocalAgreement) capBuffer() {
	maxSamples := int(l.cfg.MaxBufferSec * float64(l.cfg.SampleRate))
	for l.samples.Len() > maxSamples {
		l.samples.PopFront()
		l.bufferStart += 1 / float64(l.cfg.SampleRate)
	}
}

func (l *LocalAgreement) flattenBuffer() []float32 {
	out := make([]float32, l.samples.Len())
	for i := 0; i < l.samples.Len(); i++ {
		out[i] = l.samples.At(i)
	}
	return out
}

// Flush commits every word of the most recent hypothesis beyond what is
// already committed, used at utterance end when no further agreement can
// accrue.
func (l *LocalAgreement) Flush(_ context.Context) (TickResult, error) {
	if len(l.history) == 0 {
		return TickResult{}, nil
	}
	latest := l.history[len(l.history)-1]
	if len(latest) <= len(l.committed) {
		return TickResult{}, nil
	}
	newlyCommitted := latest[len(l.committed):]
	l.committed = latest
	return TickResult{Committed: wordsToTokens(newlyCommitted)}, nil
}

func wordsToTokens(words []model.Word) []transcript.Token {
	out := make([]transcript.Token, len(words))
	for i, w := range words {
		out[i] = transcript.Token{
			Text:       w.Text,
			StartSec:   w.StartSec,
			EndSec:     w.EndSec,
			Confidence: w.Confidence,
		}
	}
	return out
}
