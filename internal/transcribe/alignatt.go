package transcribe

import (
	"context"
	"fmt"

	"github.com/gammazero/deque"

	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/transcript"
)

// AlignAttConfig tunes the attention-fire commit rule.
type AlignAttConfig struct {
	SampleRate int
	// FrameThreshold is the number of most-recent encoder frames treated
	// as "too close to the stream tail" (default 25 frames ~= 500ms at
	// the model's frame rate) when computing a token's tail mass.
	FrameThreshold int
	// FireThreshold is the maximum tail mass — the share of a token's
	// attention distribution resting on the last FrameThreshold encoder
	// frames — for which the token is considered localized enough to
	// commit. Above it, the token is still anchored near the live edge
	// and remains tentative.
	FireThreshold float64
	// BeamSize records the configured decoder search width; the policy
	// itself does not read it and does not pass it to the encoder or
	// decoder.
	BeamSize int
	// MaxBufferSec bounds how much trailing audio is re-encoded each tick:
	// the oldest samples beyond it are dropped. The trim does not depend on
	// the committed boundary, and the encoder state is not trimmed.
	MaxBufferSec float64
}

// DefaultAlignAttConfig returns the policy's published defaults.
func DefaultAlignAttConfig() AlignAttConfig {
	return AlignAttConfig{
		SampleRate:     16000,
		FrameThreshold: 25,
		FireThreshold:  0.25,
		BeamSize:       1,
		MaxBufferSec:   30,
	}
}

// AlignAtt commits tokens whose decoded attention has moved past a
// trailing-frame threshold. Its sample buffer is capped at MaxBufferSec;
// the encoder state it threads between calls is passed through untrimmed.
type AlignAtt struct {
	cfg     AlignAttConfig
	encoder model.AsrEncoder
	decoder model.AsrDecoder

	state       model.EncoderState
	samples     *deque.Deque[float32]
	bufferStart float64 // session-time of samples.At(0)
	committedN  int      // count of tokens already committed this utterance
	lastScores  model.AttentionScores
}

// NewAlignAtt constructs the policy over the given encoder/decoder pair.
func NewAlignAtt(enc model.AsrEncoder, dec model.AsrDecoder, cfg AlignAttConfig) *AlignAtt {
	return &AlignAtt{
		cfg:     cfg,
		encoder: enc,
		decoder: dec,
		samples: deque.New[float32](),
	}
}

func (a *AlignAtt) Tick(ctx context.Context, newSamples []float32, audioEndSec float64) (TickResult, error) {
	for _, s := range newSamples {
		a.samples.PushBack(s)
	}

	buf := a.flattenBuffer()
	var err error
	a.state, err = a.encoder.Encode(ctx, buf, a.state)
	if err != nil {
		return TickResult{}, fmt.Errorf("alignatt: encode: %w", err)
	}

	scores, err := a.decoder.Decode(ctx, a.state)
	if err != nil {
		return TickResult{}, fmt.Errorf("alignatt: decode: %w", err)
	}
	a.lastScores = scores

	committed := a.commitReadyTokens(scores, audioEndSec)
	a.trimBuffer(audioEndSec)
	return TickResult{Committed: committed, Tentative: a.tentative(scores, audioEndSec)}, nil
}

// commitReadyTokens walks newly-decoded tokens in order and, for each,
// computes its tail mass — the share of its (alignment-heads-averaged)
// attention distribution resting on the FrameThreshold most recent encoder
// frames. A token whose tail mass is at or below FireThreshold has already
// been localized away from the live edge and is committed, with its
// start/end estimated from the attention peak frame; the walk then
// continues to the next token within the same tick, per spec §4.4.1 step 6.
// The first token whose tail mass exceeds FireThreshold is still anchored
// near the live edge — decoding for this tick stops there and it remains
// tentative, which also preserves commit order.
func (a *AlignAtt) commitReadyTokens(scores model.AttentionScores, audioEndSec float64) []transcript.Token {
	var out []transcript.Token
	secPerFrame := 0.0
	if scores.FrameCount > 0 {
		secPerFrame = audioEndSec / float64(scores.FrameCount)
	}

	for i := a.committedN; i < len(scores.Tokens); i++ {
		var dist []float64
		if i < len(scores.Attention) {
			dist = scores.Attention[i]
		}
		if tailMass(dist, scores.FrameCount, a.cfg.FrameThreshold) > a.cfg.FireThreshold {
			break
		}
		startSec := float64(argmaxFrame(dist)) * secPerFrame
		out = append(out, transcript.Token{
			Text:     scores.Tokens[i],
			StartSec: startSec,
			EndSec:   startSec + secPerFrame,
		})
		a.committedN++
	}
	return out
}

// tailMass sums an attention distribution's weight on the last
// frameThreshold encoder frames (spec §4.4.1 step 5). A token with no
// distribution at all (a decoder that hasn't produced attention yet) is
// treated as maximally anchored to the live edge, never eligible to commit.
func tailMass(dist []float64, frameCount, frameThreshold int) float64 {
	if len(dist) == 0 {
		return 1
	}
	start := frameCount - frameThreshold
	if start < 0 {
		start = 0
	}
	mass := 0.0
	for i := start; i < len(dist) && i < frameCount; i++ {
		mass += dist[i]
	}
	return mass
}

// argmaxFrame returns the encoder frame index holding a token's peak
// attention weight, used to estimate the token's start/end time.
func argmaxFrame(dist []float64) int {
	peak := 0
	best := -1.0
	for i, w := range dist {
		if w > best {
			best = w
			peak = i
		}
	}
	return peak
}

func (a *AlignAtt) tentative(scores model.AttentionScores, audioEndSec float64) transcript.TentativeBuffer {
	var tokens []transcript.Token
	for i := a.committedN; i < len(scores.Tokens); i++ {
		tokens = append(tokens, transcript.Token{Text: scores.Tokens[i]})
	}
	return transcript.TentativeBuffer{Tokens: tokens, AsOfSec: audioEndSec}
}

// trimBuffer discards samples older than MaxBufferSec, keeping the
// encoder's working set bounded regardless of session length.
func (a *AlignAtt) trimBuffer(audioEndSec float64) {
	maxSamples := int(a.cfg.MaxBufferSec * float64(a.cfg.SampleRate))
	for a.samples.Len() > maxSamples {
		a.samples.PopFront()
		a.bufferStart += 1 / float64(a.cfg.SampleRate)
	}
}

func (a *AlignAtt) flattenBuffer() []float32 {
	out := make([]float32, a.samples.Len())
	for i := 0; i < a.samples.Len(); i++ {
		out[i] = a.samples.At(i)
	}
	return out
}

// Flush commits every remaining tentative token, used at utterance end.
func (a *AlignAtt) Flush(_ context.Context) (TickResult, error) {
	var out []transcript.Token
	for i := a.committedN; i < len(a.lastScores.Tokens); i++ {
		out = append(out, transcript.Token{Text: a.lastScores.Tokens[i]})
	}
	a.committedN = len(a.lastScores.Tokens)
	return TickResult{Committed: out}, nil
}
