package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transcriberd/transcriberd/internal/transcript"
)

func TestPublisherRateLimits(t *testing.T) {
	p := New(Config{Rate: 50 * time.Millisecond})
	state := transcript.NewSessionState("s1")
	base := time.Now()

	_, ok := p.Tick(base, state)
	assert.True(t, ok, "first tick always emits")

	state.AppendCommitted([]transcript.Token{{Text: "hi", EndSec: 1}})
	_, ok = p.Tick(base.Add(10*time.Millisecond), state)
	assert.False(t, ok, "within rate window should not emit even if changed")

	_, ok = p.Tick(base.Add(60*time.Millisecond), state)
	assert.True(t, ok, "past the rate window with changed content should emit")
}

func TestPublisherSkipsUnchanged(t *testing.T) {
	p := New(Config{Rate: time.Millisecond})
	state := transcript.NewSessionState("s1")
	base := time.Now()

	_, ok := p.Tick(base, state)
	assert.True(t, ok)

	_, ok = p.Tick(base.Add(2*time.Millisecond), state)
	assert.False(t, ok, "unchanged state should not re-emit")
}

func TestPublisherFinalAlwaysEmits(t *testing.T) {
	p := New(DefaultConfig())
	state := transcript.NewSessionState("s1")
	snap := p.Final(state)
	assert.True(t, snap.Ended)
}
