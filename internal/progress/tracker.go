// Package progress implements the in-memory per-upload progress
// tracker (spec.md §4.9, component C9). It is deliberately not
// externalized to Redis or SQLite — progress is a live view of
// in-flight work, not a durable record, and spec.md's design notes
// scope persistence to Conversations/Messages/DailyAnalyses/Jobs only.
// Grounded on original_source/services/progress_tracker.py's shape,
// adapted from asyncio.Lock + global dict to sync.Mutex + struct map.
package progress

import (
	"time"
)

// Status is the upload's overall lifecycle state.
type Status string

const (
	StatusPending             Status = "pending"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithFilter Status = "completed_with_filters"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
)

// Stage is the current processing stage within a processing upload.
type Stage string

const (
	StageReceiving              Stage = "receiving"
	StageValidating             Stage = "validating"
	StageFilteringConversations Stage = "filtering_conversations"
	StagePersisting             Stage = "persisting"
	StageBatching               Stage = "batching"
	StageAIAnalysis             Stage = "ai_analysis"
	StageFinalizing             Stage = "finalizing"
)

const maxTrackedErrors = 50

// Statistics accumulates the upload-wide counters spec.md §4.9 names.
type Statistics struct {
	FilteredAutoresponses int `json:"filtered_autoresponses"`
	FilteredInvalid       int `json:"filtered_invalid"`
	AICallsMade           int `json:"ai_calls_made"`
	AIFailures            int `json:"ai_failures"`
	TokensUsed            int `json:"tokens_used"`
}

// ErrorEntry is one bounded-list error record.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// Snapshot is the read-only view returned to pollers; it is a copy, so
// callers can hold onto it without racing the tracker's mutex.
type Snapshot struct {
	UploadID               string     `json:"upload_id"`
	Status                 Status     `json:"status"`
	CurrentStage           Stage      `json:"current_stage"`
	ProcessedConversations int        `json:"processed_conversations"`
	TotalConversations     int        `json:"total_conversations"`
	StartTime              time.Time  `json:"start_time"`
	LastUpdate             time.Time  `json:"last_update"`
	EndTime                *time.Time `json:"end_time,omitempty"`
	DurationSeconds        *float64   `json:"duration_seconds,omitempty"`
	Details                string     `json:"details,omitempty"`
	Statistics             Statistics `json:"statistics"`
	Errors                 []ErrorEntry `json:"errors"`
	ProgressPercentage     float64    `json:"progress_percentage"`
}

type record struct {
	uploadID               string
	status                 Status
	currentStage           Stage
	processedConversations int
	totalConversations     int
	totalJobs              int
	completedJobs          int
	startTime              time.Time
	lastUpdate             time.Time
	endTime                *time.Time
	details                string
	statistics             Statistics
	errors                 []ErrorEntry
}

func (r *record) progressPercentage() float64 {
	switch r.status {
	case StatusCompleted, StatusCompletedWithFilter:
		if r.status == StatusCompleted {
			return 100
		}
	case StatusFailed, StatusCancelled:
	}
	if r.currentStage == StageAIAnalysis && r.totalJobs > 0 {
		return float64(r.completedJobs) / float64(r.totalJobs) * 100
	}
	if r.status == StatusCompletedWithFilter {
		if r.totalConversations == 0 {
			return 100
		}
		if r.totalJobs > 0 {
			return float64(r.completedJobs) / float64(r.totalJobs) * 100
		}
		return 0
	}
	return 0
}

func (r *record) snapshot() Snapshot {
	errs := make([]ErrorEntry, len(r.errors))
	copy(errs, r.errors)

	var duration *float64
	if r.endTime != nil {
		d := r.endTime.Sub(r.startTime).Seconds()
		duration = &d
	}

	return Snapshot{
		UploadID:               r.uploadID,
		Status:                 r.status,
		CurrentStage:           r.currentStage,
		ProcessedConversations: r.processedConversations,
		TotalConversations:     r.totalConversations,
		StartTime:              r.startTime,
		LastUpdate:             r.lastUpdate,
		EndTime:                r.endTime,
		DurationSeconds:        duration,
		Details:                r.details,
		Statistics:             r.statistics,
		Errors:                 errs,
		ProgressPercentage:     r.progressPercentage(),
	}
}
