package progress

import (
	"sync"
	"time"
)

// Tracker is the process-lifetime, mutex-protected registry of
// in-flight and recently finished uploads.
type Tracker struct {
	mu      sync.Mutex
	uploads map[string]*record
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{uploads: make(map[string]*record)}
}

// StartUpload begins tracking a new upload_id.
func (t *Tracker) StartUpload(uploadID string, totalConversations int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.uploads[uploadID] = &record{
		uploadID:           uploadID,
		status:             StatusProcessing,
		currentStage:       StageReceiving,
		totalConversations: totalConversations,
		startTime:          now,
		lastUpdate:         now,
	}
}

// UpdateStage advances the current stage and optional processed count.
func (t *Tracker) UpdateStage(uploadID string, stage Stage, processed int, details string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.uploads[uploadID]
	if !ok {
		return
	}
	r.currentStage = stage
	r.processedConversations = processed
	if details != "" {
		r.details = details
	}
	r.lastUpdate = time.Now().UTC()
}

// SetJobTotal records how many jobs C6 scheduled for this upload, so
// progress_percentage can be derived during the ai_analysis stage.
func (t *Tracker) SetJobTotal(uploadID string, totalJobs int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.uploads[uploadID]; ok {
		r.totalJobs = totalJobs
		r.lastUpdate = time.Now().UTC()
	}
}

// IncrementCompletedJobs marks one more scheduled job done (success or
// failure both count — the tracker reports progress, not success rate).
func (t *Tracker) IncrementCompletedJobs(uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.uploads[uploadID]; ok {
		r.completedJobs++
		r.lastUpdate = time.Now().UTC()
	}
}

// IncrementAICallsMade bumps the ai_calls_made statistic.
func (t *Tracker) IncrementAICallsMade(uploadID string) {
	t.bump(uploadID, func(s *Statistics) { s.AICallsMade++ })
}

// IncrementAIFailures bumps the ai_failures statistic.
func (t *Tracker) IncrementAIFailures(uploadID string) {
	t.bump(uploadID, func(s *Statistics) { s.AIFailures++ })
}

// IncrementFilteredAutoresponses bumps the filtered_autoresponses statistic.
func (t *Tracker) IncrementFilteredAutoresponses(uploadID string) {
	t.bump(uploadID, func(s *Statistics) { s.FilteredAutoresponses++ })
}

// IncrementFilteredInvalid bumps the filtered_invalid statistic.
func (t *Tracker) IncrementFilteredInvalid(uploadID string) {
	t.bump(uploadID, func(s *Statistics) { s.FilteredInvalid++ })
}

// AddTokensUsed accumulates tokens_used by n.
func (t *Tracker) AddTokensUsed(uploadID string, n int) {
	t.bump(uploadID, func(s *Statistics) { s.TokensUsed += n })
}

func (t *Tracker) bump(uploadID string, f func(*Statistics)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.uploads[uploadID]; ok {
		f(&r.statistics)
		r.lastUpdate = time.Now().UTC()
	}
}

// AddError appends an error, bounded to maxTrackedErrors — oldest
// entries are dropped first.
func (t *Tracker) AddError(uploadID, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.uploads[uploadID]
	if !ok {
		return
	}
	r.errors = append(r.errors, ErrorEntry{Timestamp: time.Now().UTC(), Error: errText})
	if len(r.errors) > maxTrackedErrors {
		r.errors = r.errors[len(r.errors)-maxTrackedErrors:]
	}
	r.lastUpdate = time.Now().UTC()
}

// Complete marks the upload terminal. success=false always yields
// "failed". success=true yields "completed" only if at least one job
// actually ran; an upload that filtered everything out (including the
// empty-object upload, zero conversations from the start) is
// "completed_with_filters", and its progress reports 100% only when
// total_conversations was zero from the start.
func (t *Tracker) Complete(uploadID string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.uploads[uploadID]
	if !ok {
		return
	}

	now := time.Now().UTC()
	r.endTime = &now
	r.lastUpdate = now

	if !success {
		r.status = StatusFailed
		return
	}

	if r.completedJobs > 0 {
		r.status = StatusCompleted
		return
	}
	r.status = StatusCompletedWithFilter
}

// Cancel marks the upload cancelled, as distinct from a failure.
func (t *Tracker) Cancel(uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.uploads[uploadID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	r.status = StatusCancelled
	r.endTime = &now
	r.lastUpdate = now
}

// Get returns a point-in-time snapshot for a single upload.
func (t *Tracker) Get(uploadID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.uploads[uploadID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// GetAllActive returns snapshots of every upload still processing.
func (t *Tracker) GetAllActive() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Snapshot
	for _, r := range t.uploads {
		if r.status == StatusProcessing {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// Cleanup evicts uploads whose start_time is older than maxAge,
// bounding the tracker's memory across a long-running process.
func (t *Tracker) Cleanup(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, r := range t.uploads {
		if r.startTime.Before(cutoff) {
			delete(t.uploads, id)
			removed++
		}
	}
	return removed
}
