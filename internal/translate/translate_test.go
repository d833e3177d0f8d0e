package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/model"
)

func TestTranslatorBatchesCompleteSentences(t *testing.T) {
	tr, err := New(&model.FakeTranslator{Suffix: "-es"}, Config{SourceLang: "en", TargetLang: "es"})
	require.NoError(t, err)
	ctx := context.Background()

	out, err := tr.Feed(ctx, "Hello there. I am", 0.0, 1.0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Hello there.-es", out[0].Text)

	out, err = tr.Feed(ctx, "fine.", 1.0, 2.0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "I am fine.-es", out[0].Text)
}

func TestTranslatorFlushHandlesRemainder(t *testing.T) {
	tr, err := New(&model.FakeTranslator{}, Config{SourceLang: "en", TargetLang: "fr"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tr.Feed(ctx, "no terminal punctuation yet", 0.0, 1.0)
	require.NoError(t, err)

	out, err := tr.Flush(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Contains(t, out.Text, "no terminal punctuation yet")
}

func TestNewRejectsInvalidLanguage(t *testing.T) {
	_, err := New(&model.FakeTranslator{}, Config{SourceLang: "not-a-lang-tag!!", TargetLang: "en"})
	assert.Error(t, err)
}
