// Package models holds the PowerPulse persistence types: conversations,
// their messages, per-day analysis rows, batched LLM jobs, and the
// cached dashboard metrics derived from them.
package models

import "time"

// Direction is the sender side of a Message.
type Direction string

const (
	DirectionToCompany Direction = "to_company"
	DirectionToClient  Direction = "to_client"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Conversation is unique by ChatID and owns its Messages and
// DailyAnalysis rows.
type Conversation struct {
	ID               int64
	ChatID           string
	CustomerName     string
	TotalMessages    int
	CustomerMessages int
	AgentMessages    int
	FirstMessageTime time.Time
	LastMessageTime  time.Time
	CommonTopics     []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AgentInfo is the optional structured agent identity attached to a
// Message.
type AgentInfo struct {
	Username string `json:"agent_username,omitempty"`
	Email    string `json:"agent_email,omitempty"`
}

// Message is an append-only record under a Conversation.
type Message struct {
	ID               int64
	ChatID           string
	ConversationID   int64
	MessageContent   string
	Direction        Direction
	SocialCreateTime time.Time
	AgentInfo        *AgentInfo
}

// DailyAnalysis is one (Conversation, analysis_date) scoring row.
// Micro-metrics and pillars are nil until their stage computes them;
// Error is set when the owning Job's result for this row failed.
type DailyAnalysis struct {
	ID             int64
	ConversationID int64
	AnalysisDate   time.Time // UTC midnight of the calendar day

	SentimentScore     *float64
	SentimentShift     *float64
	ResolutionAchieved *float64
	FCRScore           *float64
	CES                *float64
	FirstResponseTime  *float64 // seconds
	AvgResponseTime    *float64 // seconds
	TotalHandlingTime  *float64 // minutes

	EffectivenessScore *float64
	EffortScore        *float64
	EfficiencyScore    *float64
	EmpathyScore       *float64
	CSIScore           *float64

	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobResultItem is one per-unit outcome recorded in Job.Result.
type JobResultItem struct {
	DailyAnalysisID int64  `json:"daily_analysis_id"`
	Error           string `json:"error,omitempty"`
}

// JobResult is the structured content of Job.Result.
type JobResult struct {
	Items     []JobResultItem `json:"items,omitempty"`
	Error     string          `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

// Job is one batch of DailyAnalysis rows sent to the LLM together.
type Job struct {
	ID          int64
	UploadID    string
	Status      JobStatus
	DailyIDs    []int64
	Result      *JobResult
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ProcessedChat marks a chat_id as already analyzed, to make re-uploads
// idempotent absent force_reprocess.
type ProcessedChat struct {
	ChatID       string
	ProcessedAt  time.Time
	MessageCount int
}

// Metric is a cached key/value row refreshed wholesale after every
// successful upload.
type Metric struct {
	MetricName   string
	MetricValue  float64
	MetricMeta   map[string]any
	CalculatedAt time.Time
}
