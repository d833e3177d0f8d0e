// Package publish rate-limits and deduplicates SessionState snapshots for
// delivery to subscribers: it emits at most once per tick interval, skips
// ticks whose content fingerprint is unchanged since the last emission,
// and always emits a final, unconditional snapshot on session end.
package publish

import (
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/transcriberd/transcriberd/internal/transcript"
)

// Config tunes the publish rate.
type Config struct {
	// Rate is how often the publisher is willing to emit, e.g. a 20 Hz
	// session uses 50ms.
	Rate time.Duration
}

// DefaultConfig returns the spec's default ~20 Hz rate.
func DefaultConfig() Config {
	return Config{Rate: 50 * time.Millisecond}
}

// Publisher decides, for each call to Tick, whether a snapshot is due to
// go out: not before Rate has elapsed since the last emission, and only
// if the state's fingerprint has actually changed.
type Publisher struct {
	cfg         Config
	lastEmit    time.Time
	lastPrint   [32]byte
	haveLast    bool
}

// New constructs a Publisher with the given rate limit.
func New(cfg Config) *Publisher {
	return &Publisher{cfg: cfg}
}

// Tick evaluates whether state should be published now. now is passed in
// rather than read internally so callers (and tests) control time.
// Returns the snapshot and true if it should be sent, or false if this
// tick is rate-limited or unchanged.
func (p *Publisher) Tick(now time.Time, state *transcript.SessionState) (transcript.SessionState, bool) {
	if p.haveLast && now.Sub(p.lastEmit) < p.cfg.Rate {
		return transcript.SessionState{}, false
	}

	snapshot := *state
	fp := fingerprint(&snapshot)
	if p.haveLast && fp == p.lastPrint {
		return transcript.SessionState{}, false
	}

	p.lastEmit = now
	p.lastPrint = fp
	p.haveLast = true
	return snapshot, true
}

// Final always emits, regardless of rate limit or fingerprint — used once
// a session ends so subscribers see the last word, even if it arrived
// within one rate-limit window of the previous snapshot.
func (p *Publisher) Final(state *transcript.SessionState) transcript.SessionState {
	snapshot := *state
	snapshot.Ended = true
	return snapshot
}

// fingerprint hashes the JSON encoding of the state's visible fields, a
// cheap way to detect "nothing changed" without hand-rolling a diff over
// every nested slice.
func fingerprint(state *transcript.SessionState) [32]byte {
	b, err := json.Marshal(state)
	if err != nil {
		// state is always JSON-marshalable; treat failure as "always
		// changed" rather than propagate an error from a pure function.
		return [32]byte{}
	}
	return sha256.Sum256(b)
}
