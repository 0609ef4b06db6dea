// Package orchestrator implements the upload orchestrator (spec.md
// §4.10, component C10): it accepts an upload, returns synchronously,
// and on a background goroutine drives C1→C2→C3→C4→C6(→C5)→C7→C8→C3
// to completion, updating C9 at each stage transition.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisCache "github.com/powerpulse/analyzer/internal/cache/redis"
	"github.com/powerpulse/analyzer/internal/batching"
	"github.com/powerpulse/analyzer/internal/ingest"
	"github.com/powerpulse/analyzer/internal/llmadapter"
	"github.com/powerpulse/analyzer/internal/metrics"
	"github.com/powerpulse/analyzer/internal/progress"
	"github.com/powerpulse/analyzer/internal/scheduler"
	"github.com/powerpulse/analyzer/internal/scoring"
	"github.com/powerpulse/analyzer/internal/storage/models"
	"github.com/powerpulse/analyzer/internal/storage/sqlite"
	"github.com/powerpulse/analyzer/internal/topics"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// Config holds the pipeline tunables spec.md §6 exposes as
// configuration.
type Config struct {
	MaxTokensPerJob     int
	BatchSize           int
	AIConcurrency       int
	MinInterCallDelay   time.Duration
	UploadTimeout       time.Duration
}

// Orchestrator is C10. One instance is shared across uploads; each
// upload gets its own cancellable context tracked in the cancel
// registry so /api/cancel/{upload_id} can reach it.
type Orchestrator struct {
	storage   *sqlite.Client
	cache     *redisCache.Client // nil if Redis is not configured
	tracker   *progress.Tracker
	validator *ingest.Validator
	provider  llmadapter.Provider
	cfg       Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(storage *sqlite.Client, cache *redisCache.Client, tracker *progress.Tracker, validator *ingest.Validator, provider llmadapter.Provider, cfg Config) *Orchestrator {
	return &Orchestrator{
		storage:   storage,
		cache:     cache,
		tracker:   tracker,
		validator: validator,
		provider:  provider,
		cfg:       cfg,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// UploadPayload is the parsed shape of the uploaded JSON file:
// chat_id -> ordered array of raw message records.
type UploadPayload map[string][]ingest.RawMessage

// StartUpload validates the payload is structurally acceptable (a
// JSON object of chat arrays — spec.md §7's fatal input-level check),
// allocates an upload_id, starts background processing, and returns
// immediately.
func (o *Orchestrator) StartUpload(rawJSON []byte, forceReprocess bool) (string, error) {
	var payload UploadPayload
	if err := json.Unmarshal(rawJSON, &payload); err != nil {
		return "", fmt.Errorf("upload is not a JSON object of chat arrays: %w", err)
	}

	uploadID := uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.UploadTimeout)
	o.mu.Lock()
	o.cancels[uploadID] = cancel
	o.mu.Unlock()

	o.tracker.StartUpload(uploadID, len(payload))
	metrics.ActiveUploads.Inc()

	go func() {
		defer func() {
			metrics.ActiveUploads.Dec()
			o.mu.Lock()
			delete(o.cancels, uploadID)
			o.mu.Unlock()
			cancel()
		}()
		o.processUpload(ctx, uploadID, payload, forceReprocess)
	}()

	return uploadID, nil
}

// Cancel requests cooperative cancellation of an in-flight upload. It
// reports whether the upload was found and still running.
func (o *Orchestrator) Cancel(uploadID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[uploadID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

type dailyMeta struct {
	ConversationID int64
	Messages       []models.Message
}

func (o *Orchestrator) processUpload(ctx context.Context, uploadID string, payload UploadPayload, forceReprocess bool) {
	start := time.Now()
	status := "completed"
	defer func() {
		metrics.UploadDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		metrics.UploadTotal.WithLabelValues(status).Inc()
	}()

	o.tracker.UpdateStage(uploadID, progress.StageValidating, 0, "validating messages")

	accepted := make(map[string][]models.Message)
	messageCounts := make(map[string]int)

	for chatID, rawMessages := range payload {
		if !forceReprocess {
			processed, err := o.storage.IsChatProcessed(chatID)
			if err != nil {
				o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: %v", chatID, err))
			} else if processed {
				continue
			}
		}

		var keep []models.Message
		for _, raw := range rawMessages {
			msg, reject := o.validator.Validate(chatID, raw)
			switch reject {
			case ingest.RejectNone:
				keep = append(keep, msg)
			case ingest.RejectAutoresponse:
				o.tracker.IncrementFilteredAutoresponses(uploadID)
			default:
				o.tracker.IncrementFilteredInvalid(uploadID)
			}
		}

		if len(keep) == 0 {
			continue
		}
		accepted[chatID] = keep
		messageCounts[chatID] = len(keep)
	}

	if len(accepted) == 0 {
		status = terminalStatus(0, len(payload))
		o.tracker.Complete(uploadID, true)
		return
	}

	if ctx.Err() != nil {
		status = "cancelled"
		o.tracker.Cancel(uploadID)
		return
	}

	o.tracker.UpdateStage(uploadID, progress.StageFilteringConversations, 0, "grouping conversations")
	groups := ingest.GroupByChatAndDay(accepted)

	o.tracker.UpdateStage(uploadID, progress.StagePersisting, 0, "persisting conversations and messages")

	dailyMetas := make(map[int64]dailyMeta)
	var units []batching.Unit
	chatIDs := make([]string, 0, len(groups))

	for _, group := range groups {
		select {
		case <-ctx.Done():
			status = "cancelled"
			o.tracker.Cancel(uploadID)
			return
		default:
		}

		texts := make([]string, 0, len(group.Messages))
		for _, m := range group.Messages {
			texts = append(texts, m.MessageContent)
		}

		conv := models.Conversation{
			ChatID:           group.ChatID,
			TotalMessages:    group.TotalMessages,
			CustomerMessages: group.CustomerMessages,
			AgentMessages:    group.AgentMessages,
			FirstMessageTime: group.FirstMessageTime,
			LastMessageTime:  group.LastMessageTime,
			CommonTopics:     topics.Extract(texts),
		}

		conversationID, err := o.storage.UpsertConversation(&conv)
		if err != nil {
			o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: %v", group.ChatID, err))
			continue
		}
		chatIDs = append(chatIDs, group.ChatID)
		metrics.ConversationsIngested.Inc()

		tx, err := o.storage.BeginTx()
		if err != nil {
			o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: begin tx: %v", group.ChatID, err))
			continue
		}
		if err := o.storage.InsertMessages(tx, conversationID, group.Messages); err != nil {
			tx.Rollback()
			o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: insert messages: %v", group.ChatID, err))
			continue
		}
		if err := tx.Commit(); err != nil {
			o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: commit messages: %v", group.ChatID, err))
			continue
		}

		for _, day := range group.Days {
			dailyID, err := o.storage.CreateDailyAnalysis(conversationID, day.AnalysisDate)
			if err != nil {
				o.tracker.AddError(uploadID, fmt.Sprintf("chat %s: create daily analysis: %v", group.ChatID, err))
				continue
			}

			dailyMetas[dailyID] = dailyMeta{ConversationID: conversationID, Messages: day.Messages}

			views := make([]batching.MessageView, len(day.Messages))
			for i, m := range day.Messages {
				views[i] = batching.MessageView{
					Direction: string(m.Direction),
					Content:   m.MessageContent,
					Timestamp: m.SocialCreateTime.Format(time.RFC3339),
				}
			}
			units = append(units, batching.Unit{DailyAnalysisID: dailyID, Messages: views})
		}
	}

	o.tracker.UpdateStage(uploadID, progress.StageBatching, len(accepted), "batching daily analyses")
	batches := batching.Pack(units, o.cfg.MaxTokensPerJob, o.cfg.BatchSize)

	var jobSpecs []scheduler.JobSpec
	for _, b := range batches {
		dailyIDs := make([]int64, len(b.Units))
		for i, u := range b.Units {
			dailyIDs[i] = u.DailyAnalysisID
		}
		jobID, err := o.storage.CreateJob(uploadID, dailyIDs)
		if err != nil {
			o.tracker.AddError(uploadID, fmt.Sprintf("create job: %v", err))
			continue
		}
		jobSpecs = append(jobSpecs, scheduler.JobSpec{JobID: jobID, UploadID: uploadID, Batch: b})
	}

	o.tracker.SetJobTotal(uploadID, len(jobSpecs))
	o.tracker.UpdateStage(uploadID, progress.StageAIAnalysis, len(accepted), "scoring conversations")

	sched := scheduler.New(o.provider, o.cfg.AIConcurrency, o.cfg.MinInterCallDelay)
	sched.Run(ctx, jobSpecs, func(outcome scheduler.JobOutcome) {
		o.handleJobOutcome(uploadID, outcome, dailyMetas)
	})

	if ctx.Err() != nil {
		status = "cancelled"
		o.tracker.Cancel(uploadID)
		return
	}

	o.tracker.UpdateStage(uploadID, progress.StageFinalizing, len(accepted), "finalizing upload")

	if len(chatIDs) > 0 {
		tx, err := o.storage.BeginTx()
		if err == nil {
			if err := o.storage.MarkProcessed(tx, uploadID, chatIDs, messageCounts); err != nil {
				tx.Rollback()
				o.tracker.AddError(uploadID, fmt.Sprintf("mark processed: %v", err))
			} else {
				tx.Commit()
			}
		}
	}

	if err := o.refreshMetrics(ctx); err != nil {
		o.tracker.AddError(uploadID, fmt.Sprintf("refresh metrics: %v", err))
	}

	o.tracker.Complete(uploadID, true)
	snap, _ := o.tracker.Get(uploadID)
	status = string(snap.Status)
}

func (o *Orchestrator) handleJobOutcome(uploadID string, outcome scheduler.JobOutcome, dailyMetas map[int64]dailyMeta) {
	o.tracker.IncrementCompletedJobs(uploadID)
	o.tracker.IncrementAICallsMade(uploadID)
	o.tracker.AddTokensUsed(uploadID, outcome.Usage.TotalTokens)

	jobStart := time.Now()
	jobStatus := models.JobStatusCompleted
	result := &models.JobResult{}

	if outcome.Err != nil {
		o.tracker.IncrementAIFailures(uploadID)
		jobStatus = models.JobStatusFailed
		result.Traceback = outcome.Err.Error()
		if outcome.Cancelled {
			result.Error = "cancelled"
		} else {
			result.Error = "analysis_failed"
			o.tracker.AddError(uploadID, outcome.Err.Error())
		}
	}

	for i, unit := range outcome.Units {
		var m llmadapter.MicroMetrics
		if i < len(outcome.Results) {
			m = outcome.Results[i]
		} else {
			m = llmadapter.FallbackMetrics()
		}

		meta, ok := dailyMetas[unit.DailyAnalysisID]
		if !ok {
			continue
		}

		t := scoring.CalculateTimeMetrics(meta.Messages)
		pillars := scoring.ComputePillars(m, t)
		csi := scoring.ComputeCSI(pillars)

		dam := sqlite.DailyAnalysisMetrics{
			SentimentScore:     ptr(m.SentimentScore),
			SentimentShift:     ptr(m.SentimentShift),
			ResolutionAchieved: ptr(m.ResolutionAchieved),
			FCRScore:           ptr(m.FCRScore),
			CES:                ptr(m.CES),
			FirstResponseTime:  t.FirstResponseTime,
			AvgResponseTime:    t.AvgResponseTime,
			TotalHandlingTime:  t.TotalHandlingTime,
			EffectivenessScore: ptr(pillars.Effectiveness),
			EffortScore:        ptr(pillars.Effort),
			EfficiencyScore:    pillars.Efficiency,
			EmpathyScore:       ptr(pillars.Empathy),
			CSIScore:           csi,
			Error:              m.Error,
		}

		if err := o.storage.UpdateDailyAnalysis(unit.DailyAnalysisID, dam); err != nil {
			logger.Error("Failed to update daily analysis", zap.Int64("daily_analysis_id", unit.DailyAnalysisID), zap.Error(err))
			continue
		}

		result.Items = append(result.Items, models.JobResultItem{DailyAnalysisID: unit.DailyAnalysisID, Error: m.Error})
		if csi != nil {
			metrics.CSIScore.Observe(*csi)
		}
	}

	now := time.Now().UTC()
	if err := o.storage.UpdateJob(outcome.JobID, jobStatus, result, &now); err != nil {
		logger.Error("Failed to update job", zap.Int64("job_id", outcome.JobID), zap.Error(err))
	}

	metrics.JobTotal.WithLabelValues(string(jobStatus)).Inc()
	metrics.JobDuration.WithLabelValues(string(jobStatus)).Observe(time.Since(jobStart).Seconds())
}

// refreshMetrics rewrites the Metric cache wholesale, per spec.md §3's
// "rewritten wholesale after every successful upload" rule.
func (o *Orchestrator) refreshMetrics(ctx context.Context) error {
	systemMean, conversationMean, err := o.storage.AggregateCSI()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	snapshot := []models.Metric{
		{MetricName: "system_csi_mean", MetricValue: systemMean, CalculatedAt: now},
		{MetricName: "conversation_csi_mean", MetricValue: conversationMean, CalculatedAt: now},
	}

	if err := o.storage.ReplaceMetrics(snapshot); err != nil {
		return err
	}

	if o.cache != nil {
		o.cache.InvalidateMetricsSnapshot(ctx)
	}
	return nil
}

func ptr(f float64) *float64 { return &f }

func terminalStatus(completedJobs, totalConversations int) string {
	if completedJobs > 0 {
		return "completed"
	}
	return "completed_with_filters"
}
