// Package ingress implements the pipeline's entry stage: it accepts a
// stream of opaque byte frames from a transport (WebSocket, file replay,
// ...) and routes them either straight into the PCM path or through a
// supervised Decoder child process, recognizing a zero-length frame as
// the end-of-stream sentinel that starts the drain protocol.
package ingress

import (
	"fmt"

	"github.com/transcriberd/transcriberd/internal/audio"
	"github.com/transcriberd/transcriberd/internal/decoder"
	"github.com/transcriberd/transcriberd/internal/denoise"
)

// Config describes how one session routes incoming frames.
type Config struct {
	// PCMInput, if true, means incoming frames already carry the
	// negotiated Codec at SampleRate and should be decoded/resampled
	// directly rather than routed through a Decoder child process.
	PCMInput   bool
	Codec      audio.Codec
	SampleRate int
}

// Ingress routes opaque frames for one session. Not safe for concurrent
// use from multiple goroutines.
type Ingress struct {
	cfg      Config
	decoder  *decoder.Decoder // nil when cfg.PCMInput
	denoiser *denoise.Denoiser
	opus     *audio.OpusDecoder // non-nil only when cfg.Codec == audio.CodecOpus
	opusErr  error
}

// New constructs an Ingress. dec is required (and must already be
// Started) when cfg.PCMInput is false; it is ignored otherwise.
// denoiser may be nil to disable pre-VAD noise suppression. When
// cfg.Codec is audio.CodecOpus, New builds a persistent per-session
// *audio.OpusDecoder, since Opus packets cannot be decoded statelessly;
// any construction failure is deferred and returned from the first Feed.
func New(cfg Config, dec *decoder.Decoder, denoiser *denoise.Denoiser) *Ingress {
	g := &Ingress{cfg: cfg, decoder: dec, denoiser: denoiser}
	if cfg.PCMInput && cfg.Codec == audio.CodecOpus {
		g.opus, g.opusErr = audio.NewOpusDecoder(cfg.SampleRate)
	}
	return g
}

// Feed routes one opaque frame. A zero-length frame is the end-of-stream
// sentinel: samples is always nil and end is true. For a PCM session the
// caller has nothing further to drain; for a decoded session, Feed closes
// the decoder's stdin so the child flushes and exits, and the caller
// keeps draining decoder.ReadChunk until it returns io.EOF.
//
// For a non-PCM session, decoded samples are not returned synchronously
// here — they arrive from decoder.ReadChunk on the caller's own read
// loop, since the child process decodes asynchronously relative to Feed.
func (g *Ingress) Feed(data []byte) (samples []float32, end bool, err error) {
	if len(data) == 0 {
		if !g.cfg.PCMInput && g.decoder != nil {
			if cerr := g.decoder.CloseInput(); cerr != nil {
				return nil, true, fmt.Errorf("ingress: close decoder input: %w", cerr)
			}
		}
		return nil, true, nil
	}

	if !g.cfg.PCMInput {
		if g.decoder == nil {
			return nil, false, fmt.Errorf("ingress: non-pcm session with no decoder configured")
		}
		if err := g.decoder.Feed(data); err != nil {
			return nil, false, fmt.Errorf("ingress: feed decoder: %w", err)
		}
		return nil, false, nil
	}

	var out []float32
	rate := g.cfg.SampleRate
	if g.cfg.Codec == audio.CodecOpus {
		if g.opusErr != nil {
			return nil, false, fmt.Errorf("ingress: opus decoder unavailable: %w", g.opusErr)
		}
		out, err = g.opus.Decode(data)
		if err != nil {
			return nil, false, fmt.Errorf("ingress: decode opus frame: %w", err)
		}
	} else {
		out, rate, err = audio.Decode(data, g.cfg.Codec, g.cfg.SampleRate)
		if err != nil {
			return nil, false, fmt.Errorf("ingress: decode pcm frame: %w", err)
		}
	}
	if rate != 16000 {
		out = audio.Resample(out, rate, 16000)
	}
	if g.denoiser != nil {
		out = g.denoiser.Denoise(out)
	}
	return out, false, nil
}

// Int16ToSamples normalizes a decoder-produced int16 PCM chunk to the
// [-1, 1] float32 domain the rest of the pipeline operates on, applying
// the same optional denoising pass as the PCM path.
func (g *Ingress) Int16ToSamples(chunk []int16) []float32 {
	out := make([]float32, len(chunk))
	for i, s := range chunk {
		out[i] = float32(s) / 32768.0
	}
	if g.denoiser != nil {
		out = g.denoiser.Denoise(out)
	}
	return out
}
