// Package diarize turns raw per-window speaker assignments from the
// external model.Diarizer capability into stable, smoothed speaker
// intervals: short blips are absorbed into their neighbors and adjacent
// intervals sharing a speaker are merged.
package diarize

import (
	"context"
	"fmt"

	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/transcript"
)

// Config tunes post-processing.
type Config struct {
	// MinDurationSec: intervals shorter than this are reassigned to the
	// preceding interval's speaker rather than standing alone, since a sub-second
	// speaker flip is more likely diarizer noise than a real turn.
	MinDurationSec float64
	// WindowSec is how much audio each Assign call covers.
	WindowSec float64
}

// DefaultConfig returns the published defaults.
func DefaultConfig() Config {
	return Config{MinDurationSec: 0.8, WindowSec: 1.0}
}

// Diarizer incrementally assigns and smooths speaker intervals for one
// session. SpeakerIntervals in Intervals() never overlap once emitted.
type Diarizer struct {
	cfg      Config
	model    model.Diarizer
	pending  []transcript.SpeakerInterval // not yet smoothed/finalized
	final    []transcript.SpeakerInterval

	// labels maps the external model's raw/internal speaker ID to a
	// dense, 1-based, session-local label assigned in first-appearance
	// order — the model's own IDs are not guaranteed to be dense, 1-based,
	// or stable in appearance order.
	labels   map[int]int
	nextID   int
}

// New constructs a Diarizer driving the given capability.
func New(m model.Diarizer, cfg Config) *Diarizer {
	return &Diarizer{cfg: cfg, model: m, labels: make(map[int]int), nextID: 1}
}

// Assign classifies one window of audio and appends it to the pending
// queue, running smoothing over anything old enough to no longer be
// revised by a future short-blip merge. It is a no-op when no diarizer
// capability is configured (diarization disabled for the session).
func (d *Diarizer) Assign(ctx context.Context, samples []float32, sampleRate int, startSec, endSec float64) error {
	if d.model == nil {
		return nil
	}
	rawID, err := d.model.Assign(ctx, samples, sampleRate, startSec, endSec)
	if err != nil {
		return fmt.Errorf("diarize: assign: %w", err)
	}
	id, ok := d.labels[rawID]
	if !ok {
		id = d.nextID
		d.labels[rawID] = id
		d.nextID++
	}
	d.pending = append(d.pending, transcript.SpeakerInterval{SpeakerID: id, StartSec: startSec, EndSec: endSec})
	d.smooth()
	return nil
}

// smooth merges adjacent same-speaker intervals and absorbs intervals
// shorter than MinDurationSec into their preceding neighbor, promoting stable results from pending into final once no
// further merge can change them (i.e. all but the last pending entry).
func (d *Diarizer) smooth() {
	merged := mergeAdjacent(d.pending)
	absorbed := absorbShort(merged, d.cfg.MinDurationSec)

	if len(absorbed) <= 1 {
		d.pending = absorbed
		return
	}
	// everything but the last interval is final: a future Assign call can
	// only affect the newest (still-open) interval via merge/absorb.
	d.final = append(d.final, absorbed[:len(absorbed)-1]...)
	d.pending = absorbed[len(absorbed)-1:]
}

func mergeAdjacent(intervals []transcript.SpeakerInterval) []transcript.SpeakerInterval {
	if len(intervals) == 0 {
		return nil
	}
	out := []transcript.SpeakerInterval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &out[len(out)-1]
		if last.SpeakerID == iv.SpeakerID {
			last.EndSec = iv.EndSec
			continue
		}
		out = append(out, iv)
	}
	return out
}

// absorbShort reassigns any interval under minDur to its preceding
// neighbor's speaker, then re-merges, repeating until no change occurs or
// only one interval remains.
func absorbShort(intervals []transcript.SpeakerInterval, minDur float64) []transcript.SpeakerInterval {
	for {
		changed := false
		for i := 1; i < len(intervals); i++ {
			dur := intervals[i].EndSec - intervals[i].StartSec
			if dur < minDur {
				intervals[i].SpeakerID = intervals[i-1].SpeakerID
				changed = true
			}
		}
		intervals = mergeAdjacent(intervals)
		if !changed {
			return intervals
		}
	}
}

// Intervals returns all finalized speaker intervals in time order. The
// most recent (still-open) interval is not yet included.
func (d *Diarizer) Intervals() []transcript.SpeakerInterval {
	return d.final
}

// Flush finalizes any remaining pending interval, called at session end.
func (d *Diarizer) Flush() []transcript.SpeakerInterval {
	d.final = append(d.final, d.pending...)
	d.pending = nil
	return d.final
}
