package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/analyzer/internal/storage/models"
	appLogger "github.com/powerpulse/analyzer/pkg/logger"
)

func init() {
	_ = appLogger.Init("info", "console", "stdout")
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	c, err := NewClient(dbPath)
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUpsertConversationInsertsThenUpdatesInPlace(t *testing.T) {
	c := newTestClient(t)
	now := time.Now().UTC()

	conv := models.Conversation{
		ChatID:           "chat-1",
		TotalMessages:    2,
		FirstMessageTime: now,
		LastMessageTime:  now,
		CommonTopics:     []string{"billing"},
	}

	id1, err := c.UpsertConversation(&conv)
	require.NoError(t, err)
	assert.NotZero(t, id1)

	conv.TotalMessages = 5
	id2, err := c.UpsertConversation(&conv)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestUpsertConversationResolvesCorrectIDAfterUnrelatedInserts(t *testing.T) {
	c := newTestClient(t)
	now := time.Now()

	convA := models.Conversation{ChatID: "chat-a", FirstMessageTime: now, LastMessageTime: now}
	convAID, err := c.UpsertConversation(&convA)
	require.NoError(t, err)

	// Insert daily_analyses rows on a different table so the connection's
	// last_insert_rowid() carries a stale, unrelated value into the next
	// conflicting upsert below.
	_, err = c.CreateDailyAnalysis(convAID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = c.CreateDailyAnalysis(convAID, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Re-upsert chat-a: this hits the ON CONFLICT DO UPDATE path. The
	// returned id must still be chat-a's id, not a stale rowid from the
	// daily_analyses inserts above.
	convA.TotalMessages = 9
	gotID, err := c.UpsertConversation(&convA)
	require.NoError(t, err)
	assert.Equal(t, convAID, gotID)
}

func TestCreateDailyAnalysisIsIdempotentPerConversationAndDay(t *testing.T) {
	c := newTestClient(t)
	conv := models.Conversation{ChatID: "chat-1", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convID, err := c.UpsertConversation(&conv)
	require.NoError(t, err)

	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	id1, err := c.CreateDailyAnalysis(convID, day)
	require.NoError(t, err)

	id2, err := c.CreateDailyAnalysis(convID, day)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestUpdateDailyAnalysisPersistsScores(t *testing.T) {
	c := newTestClient(t)
	conv := models.Conversation{ChatID: "chat-1", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convID, err := c.UpsertConversation(&conv)
	require.NoError(t, err)
	dailyID, err := c.CreateDailyAnalysis(convID, time.Now())
	require.NoError(t, err)

	csi := 87.5
	err = c.UpdateDailyAnalysis(dailyID, DailyAnalysisMetrics{CSIScore: &csi, Error: ""})
	require.NoError(t, err)

	systemMean, _, err := c.AggregateCSI()
	require.NoError(t, err)
	assert.InDelta(t, 87.5, systemMean, 0.001)
}

func TestCreateJobLinksDailyAnalyses(t *testing.T) {
	c := newTestClient(t)
	conv := models.Conversation{ChatID: "chat-1", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convID, err := c.UpsertConversation(&conv)
	require.NoError(t, err)
	dailyID, err := c.CreateDailyAnalysis(convID, time.Now())
	require.NoError(t, err)

	jobID, err := c.CreateJob("upload-1", []int64{dailyID})
	require.NoError(t, err)
	assert.NotZero(t, jobID)

	err = c.UpdateJob(jobID, models.JobStatusCompleted, &models.JobResult{Items: []models.JobResultItem{{DailyAnalysisID: dailyID}}}, nil)
	assert.NoError(t, err)
}

func TestMarkProcessedThenIsChatProcessed(t *testing.T) {
	c := newTestClient(t)

	processed, err := c.IsChatProcessed("chat-1")
	require.NoError(t, err)
	assert.False(t, processed)

	tx, err := c.BeginTx()
	require.NoError(t, err)
	err = c.MarkProcessed(tx, "upload-1", []string{"chat-1"}, map[string]int{"chat-1": 3})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	processed, err = c.IsChatProcessed("chat-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestReplaceMetricsOverwritesExistingRows(t *testing.T) {
	c := newTestClient(t)
	now := time.Now().UTC()

	err := c.ReplaceMetrics([]models.Metric{{MetricName: "system_csi_mean", MetricValue: 10, CalculatedAt: now}})
	require.NoError(t, err)

	err = c.ReplaceMetrics([]models.Metric{{MetricName: "system_csi_mean", MetricValue: 20, CalculatedAt: now}})
	require.NoError(t, err)

	metrics, err := c.GetMetrics()
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 20.0, metrics[0].MetricValue)
}

func TestAggregateCSIAveragesPerConversationBeforeSystemWide(t *testing.T) {
	c := newTestClient(t)

	convA := models.Conversation{ChatID: "chat-a", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convAID, err := c.UpsertConversation(&convA)
	require.NoError(t, err)
	convB := models.Conversation{ChatID: "chat-b", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convBID, err := c.UpsertConversation(&convB)
	require.NoError(t, err)

	dayA1, err := c.CreateDailyAnalysis(convAID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dayA2, err := c.CreateDailyAnalysis(convAID, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dayB1, err := c.CreateDailyAnalysis(convBID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	csi100, csi0, csi80 := 100.0, 0.0, 80.0
	require.NoError(t, c.UpdateDailyAnalysis(dayA1, DailyAnalysisMetrics{CSIScore: &csi100}))
	require.NoError(t, c.UpdateDailyAnalysis(dayA2, DailyAnalysisMetrics{CSIScore: &csi0}))
	require.NoError(t, c.UpdateDailyAnalysis(dayB1, DailyAnalysisMetrics{CSIScore: &csi80}))

	systemMean, conversationMean, err := c.AggregateCSI()
	require.NoError(t, err)

	// system mean: (100+0+80)/3 = 60
	assert.InDelta(t, 60.0, systemMean, 0.001)
	// conversation mean: chat-a averages to 50, chat-b averages to 80, so (50+80)/2 = 65
	assert.InDelta(t, 65.0, conversationMean, 0.001)
}

func TestMessagesForConversationDayFiltersToUTCCalendarDay(t *testing.T) {
	c := newTestClient(t)
	conv := models.Conversation{ChatID: "chat-1", FirstMessageTime: time.Now(), LastMessageTime: time.Now()}
	convID, err := c.UpsertConversation(&conv)
	require.NoError(t, err)

	tx, err := c.BeginTx()
	require.NoError(t, err)
	messages := []models.Message{
		{ChatID: "chat-1", MessageContent: "a", Direction: models.DirectionToCompany, SocialCreateTime: time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)},
		{ChatID: "chat-1", MessageContent: "b", Direction: models.DirectionToClient, SocialCreateTime: time.Date(2026, 1, 2, 0, 30, 0, 0, time.UTC)},
	}
	require.NoError(t, c.InsertMessages(tx, convID, messages))
	require.NoError(t, tx.Commit())

	day1, err := c.MessagesForConversationDay(convID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, day1, 1)

	day2, err := c.MessagesForConversationDay(convID, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, day2, 1)
}
