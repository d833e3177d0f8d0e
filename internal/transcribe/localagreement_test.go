package transcribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/model"
)

func TestLocalAgreementCommitsAgreedPrefix(t *testing.T) {
	fake := &model.FakeWholeChunkASR{Results: []model.WholeChunkResult{
		{Words: []model.Word{{Text: "hello", EndSec: 0.5}}},
		{Words: []model.Word{{Text: "hello", EndSec: 0.5}, {Text: "world", EndSec: 1.0}}},
	}}
	cfg := DefaultLocalAgreementConfig()
	cfg.AgreementN = 2
	p := NewLocalAgreement(fake, cfg)
	ctx := context.Background()

	res, err := p.Tick(ctx, make([]float32, 800), 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Committed, "first hypothesis alone cannot agree with anything")

	res, err = p.Tick(ctx, make([]float32, 800), 1.0)
	require.NoError(t, err)
	require.Len(t, res.Committed, 1)
	assert.Equal(t, "hello", res.Committed[0].Text)
	require.Len(t, res.Tentative.Tokens, 1)
	assert.Equal(t, "world", res.Tentative.Tokens[0].Text)
}

func TestLocalAgreementFlushCommitsLatestHypothesis(t *testing.T) {
	fake := &model.FakeWholeChunkASR{Results: []model.WholeChunkResult{
		{Words: []model.Word{{Text: "one"}, {Text: "two"}}},
	}}
	p := NewLocalAgreement(fake, DefaultLocalAgreementConfig())
	ctx := context.Background()

	_, err := p.Tick(ctx, make([]float32, 400), 0.5)
	require.NoError(t, err)

	res, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, res.Committed, 2)
}

func TestAgreedPrefixCaseInsensitive(t *testing.T) {
	history := [][]model.Word{
		{{Text: "Hello"}, {Text: "There"}},
		{{Text: "hello"}, {Text: "world"}},
	}
	agreed := agreedPrefix(history)
	require.Len(t, agreed, 1)
	assert.Equal(t, "Hello", agreed[0].Text)
}
