// Package scheduler implements the bounded-concurrency job dispatcher
// (spec.md §4.6, component C6): it owns the semaphore, the inter-call
// delay, per-job cancellation, and failure isolation between jobs.
// Retry/backoff against the LLM itself lives one layer down, inside
// llmadapter.Provider.AnalyzeBatch — this package only decides when to
// start a job and how to react to the outcome it returns.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/batching"
	"github.com/powerpulse/analyzer/internal/llmadapter"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// JobSpec is one unit of dispatch: a batch of DailyAnalysis work units
// sharing a single LLM call.
type JobSpec struct {
	JobID    int64
	UploadID string
	Batch    batching.Batch
}

// JobOutcome is what C6 hands back to the orchestrator once a job's
// LLM call (and retries) have resolved, positionally aligned with
// JobSpec.Batch.Units.
type JobOutcome struct {
	JobID      int64
	Units      []batching.Unit
	Results    []llmadapter.MicroMetrics
	Usage      llmadapter.Usage
	Err        error
	Cancelled  bool
}

// Scheduler drives a set of JobSpecs through a Provider with bounded
// concurrency.
type Scheduler struct {
	provider          llmadapter.Provider
	concurrency       int
	minInterCallDelay time.Duration
}

func New(provider llmadapter.Provider, concurrency int, minInterCallDelay time.Duration) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		provider:          provider,
		concurrency:       concurrency,
		minInterCallDelay: minInterCallDelay,
	}
}

// Run dispatches jobs FIFO by slice order, up to s.concurrency at a
// time, and invokes onResult once per job as it completes. onResult is
// called concurrently from worker goroutines — callers must
// synchronize their own side effects (the progress tracker and
// persistence gateway are both already safe for concurrent use).
//
// Run returns only once every job has produced an outcome, or ctx is
// cancelled — in which case undispatched jobs are reported as
// cancelled outcomes so the caller's bookkeeping stays exhaustive.
func (s *Scheduler) Run(ctx context.Context, jobs []JobSpec, onResult func(JobOutcome)) {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			onResult(cancelledOutcome(job))
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(job JobSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Job worker panicked",
						zap.Int64("job_id", job.JobID),
						zap.Any("panic", r),
					)
					onResult(JobOutcome{
						JobID: job.JobID,
						Units: job.Batch.Units,
						Err:   fmt.Errorf("job %d panicked: %v", job.JobID, r),
					})
				}
			}()

			onResult(s.runJob(ctx, job))
		}(job)
	}

	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job JobSpec) JobOutcome {
	if s.minInterCallDelay > 0 {
		select {
		case <-ctx.Done():
			return cancelledOutcome(job)
		case <-time.After(s.minInterCallDelay):
		}
	}

	select {
	case <-ctx.Done():
		return cancelledOutcome(job)
	default:
	}

	results, usage, err := s.provider.AnalyzeBatch(ctx, job.Batch.Units)
	if err != nil {
		if llmadapter.IsCancelled(err) {
			return JobOutcome{JobID: job.JobID, Units: job.Batch.Units, Results: results, Usage: usage, Err: err, Cancelled: true}
		}
		return JobOutcome{JobID: job.JobID, Units: job.Batch.Units, Results: results, Usage: usage, Err: err}
	}

	return JobOutcome{JobID: job.JobID, Units: job.Batch.Units, Results: results, Usage: usage}
}

func cancelledOutcome(job JobSpec) JobOutcome {
	return JobOutcome{
		JobID:     job.JobID,
		Units:     job.Batch.Units,
		Err:       context.Canceled,
		Cancelled: true,
	}
}
