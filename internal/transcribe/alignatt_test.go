package transcribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/model"
)

func TestAlignAttCommitsOnlyStableTokens(t *testing.T) {
	fake := &model.FakeEncoderDecoder{
		Scores: []model.AttentionScores{
			{
				Tokens: []string{"hello", "world"},
				Attention: [][]float64{
					{0, 1, 0, 0, 0, 0, 0, 0, 0, 0}, // peak at frame 1, no tail mass
					{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, // peak at frame 9, all mass in the tail
				},
				FrameCount: 10,
			},
		},
	}
	cfg := DefaultAlignAttConfig()
	cfg.FrameThreshold = 4
	cfg.FireThreshold = 0.25
	p := NewAlignAtt(fake, fake, cfg)

	res, err := p.Tick(context.Background(), make([]float32, 1600), 0.1)
	require.NoError(t, err)
	// "hello"'s tail mass (0) is at or below FireThreshold, "world"'s (1) is not.
	require.Len(t, res.Committed, 1)
	assert.Equal(t, "hello", res.Committed[0].Text)
	require.Len(t, res.Tentative.Tokens, 1)
	assert.Equal(t, "world", res.Tentative.Tokens[0].Text)
}

func TestAlignAttFlushCommitsRemainder(t *testing.T) {
	fake := &model.FakeEncoderDecoder{
		Scores: []model.AttentionScores{
			{
				Tokens: []string{"a", "b"},
				Attention: [][]float64{
					{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
					{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
				},
				FrameCount: 10,
			},
		},
	}
	cfg := DefaultAlignAttConfig() // FrameThreshold=25 covers the whole 10-frame window
	p := NewAlignAtt(fake, fake, cfg)

	_, err := p.Tick(context.Background(), make([]float32, 1600), 0.1)
	require.NoError(t, err)

	res, err := p.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Committed, 2)
}
