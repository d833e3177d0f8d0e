// Package vad implements the VAD gate: the stage that drives an external
// model.Vad capability frame-by-frame and turns its start/end events into
// a simple Active/Silent state machine with a pre-speech lookback buffer,
// so the transcriber never misses the first word of an utterance.
package vad

import (
	"context"
	"fmt"

	"github.com/transcriberd/transcriberd/internal/model"
)

const frameSize = 512

// State is the gate's voice-activity state.
type State int

const (
	Silent State = iota
	Active
)

// Config tunes the gate's pre-speech buffering and minimum-speech filter.
type Config struct {
	// PreSpeechFrames is how many frames of audio preceding a detected
	// speech start are retained and replayed once the gate opens.
	PreSpeechFrames int
	// MinSpeechFrames: a speech segment that ends after fewer than this
	// many frames is treated as a spurious trigger and does not signal an
	// utterance end downstream; its audio is still forwarded.
	MinSpeechFrames int
}

// DefaultConfig returns the gate's default tuning.
func DefaultConfig() Config {
	return Config{PreSpeechFrames: 10, MinSpeechFrames: 4}
}

// Result is emitted once per Feed call.
type Result struct {
	State       State
	Samples     []float32 // samples to forward downstream this call, if any
	SpeechStart bool       // true on the call that opens a new utterance
	SpeechEnd   bool       // true on the call that closes an utterance
}

// Gate wraps a model.Vad instance with pre-speech buffering and a
// minimum-duration filter. One Gate is owned by exactly one session.
type Gate struct {
	vad    model.Vad
	cfg    Config
	state  State
	ring   [][]float32 // pre-speech lookback ring buffer
	ringAt int
	activeFrames int
}

// New creates a Gate driving the given Vad capability.
func New(v model.Vad, cfg Config) *Gate {
	return &Gate{
		vad:  v,
		cfg:  cfg,
		ring: make([][]float32, cfg.PreSpeechFrames),
	}
}

// Feed processes exactly one frame (frameSize samples) and returns the
// gate's decision. Frames shorter than frameSize are rejected — callers
// (the decoder's output chunker) are responsible for framing.
func (g *Gate) Feed(ctx context.Context, samples []float32) (Result, error) {
	if len(samples) != frameSize {
		return Result{}, fmt.Errorf("vad gate: expected %d samples, got %d", frameSize, len(samples))
	}

	ev, err := g.vad.Feed(ctx, samples)
	if err != nil {
		return Result{}, fmt.Errorf("vad gate: feed: %w", err)
	}

	switch g.state {
	case Silent:
		if ev.SpeechStart {
			g.state = Active
			g.activeFrames = 1
			out := append(g.drainRing(), samples...)
			return Result{State: Active, Samples: out, SpeechStart: true}, nil
		}
		g.pushRing(samples)
		return Result{State: Silent}, nil

	default: // Active
		g.activeFrames++
		if ev.SpeechEnd {
			g.state = Silent
			if g.activeFrames < g.cfg.MinSpeechFrames {
				// too short to count as real speech: emit the frame but
				// do not signal an utterance boundary downstream.
				return Result{State: Silent, Samples: samples}, nil
			}
			return Result{State: Silent, Samples: samples, SpeechEnd: true}, nil
		}
		return Result{State: Active, Samples: samples}, nil
	}
}

// Reset clears the gate and underlying Vad state for reuse.
func (g *Gate) Reset() {
	g.vad.Reset()
	g.state = Silent
	g.activeFrames = 0
	g.ringAt = 0
	for i := range g.ring {
		g.ring[i] = nil
	}
}

func (g *Gate) pushRing(samples []float32) {
	if len(g.ring) == 0 {
		return
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	g.ring[g.ringAt] = cp
	g.ringAt = (g.ringAt + 1) % len(g.ring)
}

// drainRing returns the buffered pre-speech frames in chronological
// order, flattened into one sample slice, and clears the ring.
func (g *Gate) drainRing() []float32 {
	var out []float32
	for i := 0; i < len(g.ring); i++ {
		idx := (g.ringAt + i) % len(g.ring)
		if g.ring[idx] == nil {
			continue
		}
		out = append(out, g.ring[idx]...)
		g.ring[idx] = nil
	}
	return out
}
