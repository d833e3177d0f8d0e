package model

import (
	"context"

	"github.com/transcriberd/transcriberd/internal/workerpool"
)

// PooledWholeChunkASR bounds concurrent calls into a shared
// AsrWholeChunkTranscriber backend across every session on the
// deployment, protecting a fixed-capacity GPU or CPU inference server from
// being handed more simultaneous requests than it has slots for — distinct
// from the per-backend HTTP transport pool, which only bounds idle TCP
// connections, not in-flight logical requests.
type PooledWholeChunkASR struct {
	inner AsrWholeChunkTranscriber
	pool  *workerpool.Pool
}

// NewPooledWholeChunkASR wraps inner so Transcribe blocks for a free pool
// slot before issuing the call.
func NewPooledWholeChunkASR(inner AsrWholeChunkTranscriber, pool *workerpool.Pool) *PooledWholeChunkASR {
	return &PooledWholeChunkASR{inner: inner, pool: pool}
}

func (p *PooledWholeChunkASR) Transcribe(ctx context.Context, samples []float32, sampleRate int) (WholeChunkResult, error) {
	return workerpool.Submit(ctx, p.pool, func(ctx context.Context) (WholeChunkResult, error) {
		return p.inner.Transcribe(ctx, samples, sampleRate)
	})
}

// PooledDiarizer applies the same bounded-concurrency guard to a shared
// Diarizer backend.
type PooledDiarizer struct {
	inner Diarizer
	pool  *workerpool.Pool
}

// NewPooledDiarizer wraps inner so Assign blocks for a free pool slot
// before issuing the call.
func NewPooledDiarizer(inner Diarizer, pool *workerpool.Pool) *PooledDiarizer {
	return &PooledDiarizer{inner: inner, pool: pool}
}

func (p *PooledDiarizer) Assign(ctx context.Context, samples []float32, sampleRate int, startSec, endSec float64) (int, error) {
	return workerpool.Submit(ctx, p.pool, func(ctx context.Context) (int, error) {
		return p.inner.Assign(ctx, samples, sampleRate, startSec, endSec)
	})
}
