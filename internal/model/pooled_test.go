package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriberd/transcriberd/internal/workerpool"
)

// blockingASR blocks on a channel until released, letting tests observe
// how many calls are in flight at once.
type blockingASR struct {
	inFlight int32
	maxSeen  int32
	release  chan struct{}
}

func (b *blockingASR) Transcribe(ctx context.Context, _ []float32, _ int) (WholeChunkResult, error) {
	n := atomic.AddInt32(&b.inFlight, 1)
	for {
		old := atomic.LoadInt32(&b.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&b.maxSeen, old, n) {
			break
		}
	}
	<-b.release
	atomic.AddInt32(&b.inFlight, -1)
	return WholeChunkResult{}, nil
}

func TestPooledWholeChunkASRBoundsConcurrency(t *testing.T) {
	inner := &blockingASR{release: make(chan struct{})}
	pooled := NewPooledWholeChunkASR(inner, workerpool.New(2))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pooled.Transcribe(context.Background(), nil, 16000)
			assert.NoError(t, err)
		}()
	}

	// Give the pool time to admit as many callers as its capacity allows.
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&inner.maxSeen), int32(2))

	close(inner.release)
	wg.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.maxSeen))
}

func TestPooledWholeChunkASRRespectsContextCancellation(t *testing.T) {
	inner := &blockingASR{release: make(chan struct{})}
	defer close(inner.release)
	pooled := NewPooledWholeChunkASR(inner, workerpool.New(1))

	// Occupy the single slot.
	go pooled.Transcribe(context.Background(), nil, 16000)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pooled.Transcribe(ctx, nil, 16000)
	require.Error(t, err)
}

func TestPooledDiarizerDelegates(t *testing.T) {
	inner := &FakeDiarizer{SpeakerIDs: []int{3, 1}}
	pooled := NewPooledDiarizer(inner, workerpool.New(4))

	id, err := pooled.Assign(context.Background(), nil, 16000, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	id, err = pooled.Assign(context.Background(), nil, 16000, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}
