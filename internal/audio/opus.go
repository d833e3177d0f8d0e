package audio

import (
	"fmt"

	"layeh.com/gopus"
)

const opusFrameSizeMs = 20

// OpusDecoder wraps a persistent libopus decoder for one session's stream.
// Unlike G.711 or raw PCM, Opus is a stateful codec — packet loss
// concealment and inter-frame prediction require decoding packets through
// the same decoder instance in order, so this type is held per session
// rather than constructed fresh per call like Decode.
type OpusDecoder struct {
	dec       *gopus.Decoder
	frameSize int
}

// NewOpusDecoder creates a mono Opus decoder at sampleRate, one of the
// rates libopus natively supports (8000, 12000, 16000, 24000, 48000).
func NewOpusDecoder(sampleRate int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, frameSize: sampleRate * opusFrameSizeMs / 1000}, nil
}

// Decode decodes one Opus packet into float32 PCM normalized to [-1, 1].
func (d *OpusDecoder) Decode(packet []byte) ([]float32, error) {
	pcm, err := d.dec.Decode(packet, d.frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}
