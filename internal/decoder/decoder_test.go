package decoder

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catConfig uses /bin/cat as a stand-in child process: it passes bytes
// from stdin to stdout unchanged, letting the test exercise the pipe and
// shutdown protocol without a real transcoder binary.
func catConfig() Config {
	cfg := DefaultConfig()
	cfg.Command = "cat"
	cfg.Args = nil
	cfg.ChunkSamples = 4
	return cfg
}

func TestDecoderFeedAndReadRoundTrip(t *testing.T) {
	d := New(catConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, Running, d.State())

	samples := []int16{1, 2, 3, 4}
	require.NoError(t, d.Feed(int16ToBytes(samples)))

	got, err := d.ReadChunk()
	require.NoError(t, err)
	assert.Equal(t, samples, got)

	require.NoError(t, d.CloseInput())
	done := make(chan error, 1)
	go func() { done <- d.Wait(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("decoder did not exit after CloseInput")
	}
	assert.Equal(t, Stopped, d.State())
}

func TestDecoderReadChunkEOFOnClosedStream(t *testing.T) {
	d := New(catConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.CloseInput())

	_, err := d.ReadChunk()
	assert.ErrorIs(t, err, io.EOF)
}

func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
