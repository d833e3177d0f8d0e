package ingress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/audio"
	"github.com/transcriberd/transcriberd/internal/decoder"
)

func TestFeedPCMDecodesAndReturnsSamples(t *testing.T) {
	g := New(Config{PCMInput: true, Codec: audio.CodecPCM, SampleRate: 16000}, nil, nil)

	samples := []int16{1000, -1000, 500}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}

	out, end, err := g.Feed(data)
	require.NoError(t, err)
	assert.False(t, end)
	require.Len(t, out, 3)
	assert.InDelta(t, 1000.0/32768.0, out[0], 1e-6)
}

func TestFeedEmptyFramePCMSignalsEnd(t *testing.T) {
	g := New(Config{PCMInput: true, Codec: audio.CodecPCM, SampleRate: 16000}, nil, nil)

	out, end, err := g.Feed(nil)
	require.NoError(t, err)
	assert.True(t, end)
	assert.Nil(t, out)
}

func TestFeedNonPCMRoutesToDecoderAndEmptyFrameClosesInput(t *testing.T) {
	cfg := decoder.DefaultConfig()
	cfg.Command = "cat"
	cfg.Args = nil
	cfg.ChunkSamples = 2

	dec := decoder.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dec.Start(ctx))

	g := New(Config{PCMInput: false, Codec: audio.CodecPCM, SampleRate: 16000}, dec, nil)

	_, end, err := g.Feed([]byte{1, 0, 2, 0})
	require.NoError(t, err)
	assert.False(t, end)

	chunk, err := dec.ReadChunk()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2}, chunk)

	_, end, err = g.Feed(nil)
	require.NoError(t, err)
	assert.True(t, end)
	assert.Equal(t, decoder.Running, dec.State())
}

func TestFeedOpusUnsupportedSampleRateSurfacesError(t *testing.T) {
	// libopus only accepts 8000/12000/16000/24000/48000 Hz; any other
	// rate fails decoder construction, and Feed should report that
	// failure rather than panic on a nil *audio.OpusDecoder.
	g := New(Config{PCMInput: true, Codec: audio.CodecOpus, SampleRate: 44100}, nil, nil)

	_, _, err := g.Feed([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
}

func TestInt16ToSamplesNormalizes(t *testing.T) {
	g := New(Config{PCMInput: true}, nil, nil)
	out := g.Int16ToSamples([]int16{32767, -32768})
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0], 1e-4)
	assert.InDelta(t, -1.0, out[1], 1e-4)
}
