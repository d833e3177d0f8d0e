package diag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilTracerIsNoOp(t *testing.T) {
	var tr *Tracer
	assert.NotPanics(t, func() {
		tr.RecordSpan("decode", time.Now(), 1.0, "detail", "ok")
		tr.Close()
	})
}

func TestNewTracerNilStoreReturnsNil(t *testing.T) {
	assert.Nil(t, NewTracer(nil, "session"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "abcdef", truncate("abcdef", 10))
}
