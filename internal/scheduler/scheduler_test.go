package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/analyzer/internal/batching"
	"github.com/powerpulse/analyzer/internal/llmadapter"
)

// fakeProvider records concurrent-call high-water-mark and lets tests
// control per-call latency/failure.
type fakeProvider struct {
	mu          sync.Mutex
	inFlight    int32
	maxInFlight int32
	delay       time.Duration
	failJobs    map[int64]bool
}

func (p *fakeProvider) AnalyzeBatch(ctx context.Context, units []batching.Unit) ([]llmadapter.MicroMetrics, llmadapter.Usage, error) {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)

	p.mu.Lock()
	if n > p.maxInFlight {
		p.maxInFlight = n
	}
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, llmadapter.Usage{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}

	results := make([]llmadapter.MicroMetrics, len(units))
	for i := range results {
		results[i] = llmadapter.FallbackMetrics()
	}
	return results, llmadapter.Usage{}, nil
}

func jobSpec(id int64, nUnits int) JobSpec {
	units := make([]batching.Unit, nUnits)
	for i := range units {
		units[i] = batching.Unit{DailyAnalysisID: int64(i)}
	}
	return JobSpec{JobID: id, UploadID: "u1", Batch: batching.Batch{Units: units}}
}

func TestSchedulerRespectsConcurrencyLimit(t *testing.T) {
	provider := &fakeProvider{delay: 20 * time.Millisecond}
	s := New(provider, 2, 0)

	jobs := []JobSpec{jobSpec(1, 1), jobSpec(2, 1), jobSpec(3, 1), jobSpec(4, 1)}

	var mu sync.Mutex
	var outcomes []JobOutcome
	s.Run(context.Background(), jobs, func(o JobOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})

	assert.LessOrEqual(t, provider.maxInFlight, int32(2))
	assert.Len(t, outcomes, 4)
}

func TestSchedulerReportsEveryJobExactlyOnce(t *testing.T) {
	provider := &fakeProvider{}
	s := New(provider, 3, 0)

	jobs := []JobSpec{jobSpec(1, 1), jobSpec(2, 2), jobSpec(3, 1)}

	seen := make(map[int64]bool)
	var mu sync.Mutex
	s.Run(context.Background(), jobs, func(o JobOutcome) {
		mu.Lock()
		seen[o.JobID] = true
		mu.Unlock()
	})

	assert.Len(t, seen, 3)
	for _, j := range jobs {
		assert.True(t, seen[j.JobID])
	}
}

func TestSchedulerMarksUndispatchedJobsCancelledOnContextDone(t *testing.T) {
	provider := &fakeProvider{delay: 50 * time.Millisecond}
	s := New(provider, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	jobs := []JobSpec{jobSpec(1, 1), jobSpec(2, 1), jobSpec(3, 1)}

	var mu sync.Mutex
	var outcomes []JobOutcome
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	s.Run(ctx, jobs, func(o JobOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})

	require.Len(t, outcomes, 3)
	cancelledCount := 0
	for _, o := range outcomes {
		if o.Cancelled {
			cancelledCount++
		}
	}
	assert.Greater(t, cancelledCount, 0)
}

func TestSchedulerRunCompletesNormallyForTrivialJob(t *testing.T) {
	provider := &fakeProvider{}
	s := New(provider, 2, 0)

	jobs := []JobSpec{jobSpec(1, 1)}

	assert.NotPanics(t, func() {
		s.Run(context.Background(), jobs, func(o JobOutcome) {
			// onResult itself succeeding is the only contract; this test
			// exists to confirm Run completes normally for a trivial job.
		})
	})
}

func TestSchedulerDefaultsConcurrencyToOne(t *testing.T) {
	s := New(&fakeProvider{}, 0, 0)
	assert.Equal(t, 1, s.concurrency)
}
