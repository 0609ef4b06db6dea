package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/powerpulse/analyzer/internal/storage/models"
	"github.com/powerpulse/analyzer/pkg/logger"
)

// Client is the persistence gateway (spec.md §4.3, component C3):
// the single source of truth for conversations, messages, daily
// analyses, jobs, and the dashboard-facing metric snapshot.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT UNIQUE NOT NULL,
		customer_name TEXT,
		total_messages INTEGER NOT NULL DEFAULT 0,
		customer_messages INTEGER NOT NULL DEFAULT 0,
		agent_messages INTEGER NOT NULL DEFAULT 0,
		first_message_time INTEGER,
		last_message_time INTEGER,
		common_topics TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_chat ON conversations(chat_id);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		conversation_id INTEGER NOT NULL,
		message_content TEXT NOT NULL,
		direction TEXT NOT NULL,
		social_create_time INTEGER NOT NULL,
		agent_username TEXT,
		agent_email TEXT,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(social_create_time);

	CREATE TABLE IF NOT EXISTS daily_analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		analysis_date INTEGER NOT NULL,
		sentiment_score REAL,
		sentiment_shift REAL,
		resolution_achieved REAL,
		fcr_score REAL,
		ces REAL,
		first_response_time REAL,
		avg_response_time REAL,
		total_handling_time REAL,
		effectiveness_score REAL,
		effort_score REAL,
		efficiency_score REAL,
		empathy_score REAL,
		csi_score REAL,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
		UNIQUE (conversation_id, analysis_date)
	);
	CREATE INDEX IF NOT EXISTS idx_daily_conversation ON daily_analyses(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_daily_date ON daily_analyses(analysis_date);

	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL,
		status TEXT NOT NULL,
		result_json TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_upload ON jobs(upload_id);

	CREATE TABLE IF NOT EXISTS job_daily_analyses (
		job_id INTEGER NOT NULL,
		daily_analysis_id INTEGER NOT NULL,
		PRIMARY KEY (job_id, daily_analysis_id),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE,
		FOREIGN KEY (daily_analysis_id) REFERENCES daily_analyses(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS processed_chats (
		chat_id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		processed_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT PRIMARY KEY,
		metric_value REAL NOT NULL,
		metric_meta TEXT,
		calculated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// UpsertConversation implements spec.md §4.3's chat_id-keyed upsert:
// on conflict it updates the rolling message counters and topics and
// returns the existing row's id.
func (c *Client) UpsertConversation(conv *models.Conversation) (int64, error) {
	query := `
		INSERT INTO conversations (chat_id, customer_name, total_messages, customer_messages,
			agent_messages, first_message_time, last_message_time, common_topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			customer_name = excluded.customer_name,
			total_messages = excluded.total_messages,
			customer_messages = excluded.customer_messages,
			agent_messages = excluded.agent_messages,
			first_message_time = excluded.first_message_time,
			last_message_time = excluded.last_message_time,
			common_topics = excluded.common_topics,
			updated_at = excluded.updated_at
	`

	topicsJSON, err := json.Marshal(conv.CommonTopics)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal common_topics: %w", err)
	}

	now := time.Now().UTC()
	if _, err := c.db.Exec(query,
		conv.ChatID,
		conv.CustomerName,
		conv.TotalMessages,
		conv.CustomerMessages,
		conv.AgentMessages,
		conv.FirstMessageTime.Unix(),
		conv.LastMessageTime.Unix(),
		string(topicsJSON),
		now.Unix(),
		now.Unix(),
	); err != nil {
		return 0, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	// last_insert_rowid() is connection-scoped and is not reset to 0 by
	// an ON CONFLICT DO UPDATE — it can carry over a stale id from an
	// unrelated table's last real insert on the same pooled connection.
	// The natural key is the only reliable way to resolve the row.
	var id int64
	if err := c.db.QueryRow(`SELECT id FROM conversations WHERE chat_id = ?`, conv.ChatID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve conversation id for %s: %w", conv.ChatID, err)
	}

	logger.Debug("Conversation upserted", zap.String("chat_id", conv.ChatID), zap.Int64("id", id))
	return id, nil
}

// InsertMessages bulk-inserts one conversation's messages inside the
// caller's transaction. The conversation upsert and daily-analysis
// creation are not part of that transaction.
func (c *Client) InsertMessages(tx *sql.Tx, conversationID int64, messages []models.Message) error {
	stmt, err := tx.Prepare(`
		INSERT INTO messages (chat_id, conversation_id, message_content, direction, social_create_time, agent_username, agent_email)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		var username, email *string
		if m.AgentInfo != nil {
			username, email = &m.AgentInfo.Username, &m.AgentInfo.Email
		}
		if _, err := stmt.Exec(m.ChatID, conversationID, m.MessageContent, string(m.Direction), m.SocialCreateTime.Unix(), username, email); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	return nil
}

// BeginTx starts a transaction for callers that group several writes.
// The orchestrator opens one per conversation for its messages and one
// for MarkProcessed; an upload's raw ingest as a whole is not a single
// transaction.
func (c *Client) BeginTx() (*sql.Tx, error) {
	return c.db.Begin()
}

// CreateDailyAnalysis implements the (conversation_id, analysis_date)
// keyed idempotent create: on conflict it returns the existing row.
func (c *Client) CreateDailyAnalysis(conversationID int64, analysisDate time.Time) (int64, error) {
	day := analysisDate.UTC().Truncate(24 * time.Hour)
	now := time.Now().UTC()

	if _, err := c.db.Exec(`
		INSERT INTO daily_analyses (conversation_id, analysis_date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, analysis_date) DO UPDATE SET conversation_id = conversation_id
	`, conversationID, day.Unix(), now.Unix(), now.Unix()); err != nil {
		return 0, fmt.Errorf("failed to create daily analysis: %w", err)
	}

	// Resolve via the natural key rather than LastInsertId(), which is
	// connection-scoped and not reset by ON CONFLICT DO UPDATE.
	var id int64
	if err := c.db.QueryRow(`SELECT id FROM daily_analyses WHERE conversation_id = ? AND analysis_date = ?`, conversationID, day.Unix()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve daily_analysis id: %w", err)
	}

	return id, nil
}

// DailyAnalysisMetrics is the mutate-once payload C5/C7/C8 assemble
// for one DailyAnalysis row.
type DailyAnalysisMetrics struct {
	SentimentScore, SentimentShift, ResolutionAchieved, FCRScore, CES                     *float64
	FirstResponseTime, AvgResponseTime, TotalHandlingTime                                  *float64
	EffectivenessScore, EffortScore, EfficiencyScore, EmpathyScore, CSIScore               *float64
	Error                                                                                   string
}

// UpdateDailyAnalysis performs the single lifecycle mutation spec.md
// §3 describes for a DailyAnalysis: written exactly once, on job
// completion (success or failure).
func (c *Client) UpdateDailyAnalysis(id int64, m DailyAnalysisMetrics) error {
	_, err := c.db.Exec(`
		UPDATE daily_analyses SET
			sentiment_score = ?, sentiment_shift = ?, resolution_achieved = ?, fcr_score = ?, ces = ?,
			first_response_time = ?, avg_response_time = ?, total_handling_time = ?,
			effectiveness_score = ?, effort_score = ?, efficiency_score = ?, empathy_score = ?, csi_score = ?,
			error = ?, updated_at = ?
		WHERE id = ?
	`,
		m.SentimentScore, m.SentimentShift, m.ResolutionAchieved, m.FCRScore, m.CES,
		m.FirstResponseTime, m.AvgResponseTime, m.TotalHandlingTime,
		m.EffectivenessScore, m.EffortScore, m.EfficiencyScore, m.EmpathyScore, m.CSIScore,
		nullableString(m.Error), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update daily analysis %d: %w", id, err)
	}
	return nil
}

// CreateJob persists a new job and its owned DailyAnalysis ids.
func (c *Client) CreateJob(uploadID string, dailyIDs []int64) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin job transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO jobs (upload_id, status, created_at) VALUES (?, ?, ?)`,
		uploadID, string(models.JobStatusPending), time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	jobID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO job_daily_analyses (job_id, daily_analysis_id) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare job link insert: %w", err)
	}
	defer stmt.Close()

	for _, dailyID := range dailyIDs {
		if _, err := stmt.Exec(jobID, dailyID); err != nil {
			return 0, fmt.Errorf("failed to link job %d to daily analysis %d: %w", jobID, dailyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit job creation: %w", err)
	}

	return jobID, nil
}

// UpdateJob writes a job's terminal status. Per spec.md §4.3's
// transaction-discipline rule, each job's result update is its own
// transaction — independent of its peers.
func (c *Client) UpdateJob(id int64, status models.JobStatus, result *models.JobResult, completedAt *time.Time) error {
	var resultJSON []byte
	var err error
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal job result: %w", err)
		}
	}

	var completedUnix *int64
	if completedAt != nil {
		u := completedAt.UTC().Unix()
		completedUnix = &u
	}

	_, err = c.db.Exec(`UPDATE jobs SET status = ?, result_json = ?, completed_at = ? WHERE id = ?`,
		string(status), nullableBytes(resultJSON), completedUnix, id)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", id, err)
	}

	logger.Debug("Job updated", zap.Int64("job_id", id), zap.String("status", string(status)))
	return nil
}

// MarkProcessed records that chat_ids were ingested under upload_id,
// guarding re-ingestion of the same chat on a later upload.
func (c *Client) MarkProcessed(tx *sql.Tx, uploadID string, chatIDs []string, messageCounts map[string]int) error {
	stmt, err := tx.Prepare(`
		INSERT INTO processed_chats (chat_id, upload_id, processed_at, message_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			upload_id = excluded.upload_id,
			processed_at = excluded.processed_at,
			message_count = excluded.message_count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare processed_chats insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, chatID := range chatIDs {
		if _, err := stmt.Exec(chatID, uploadID, now, messageCounts[chatID]); err != nil {
			return fmt.Errorf("failed to mark chat %s processed: %w", chatID, err)
		}
	}
	return nil
}

// IsChatProcessed reports whether chat_id has already been ingested by
// a prior upload.
func (c *Client) IsChatProcessed(chatID string) (bool, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(1) FROM processed_chats WHERE chat_id = ?`, chatID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check processed chat %s: %w", chatID, err)
	}
	return count > 0, nil
}

// ReplaceMetrics overwrites the named metric rows feeding the
// dashboard's Metric cache, one upsert per metric.
func (c *Client) ReplaceMetrics(snapshot []models.Metric) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO metrics (metric_name, metric_value, metric_meta, calculated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(metric_name) DO UPDATE SET
			metric_value = excluded.metric_value,
			metric_meta = excluded.metric_meta,
			calculated_at = excluded.calculated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metrics upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range snapshot {
		metaJSON, err := json.Marshal(m.MetricMeta)
		if err != nil {
			return fmt.Errorf("failed to marshal metric meta for %s: %w", m.MetricName, err)
		}
		if _, err := stmt.Exec(m.MetricName, m.MetricValue, string(metaJSON), m.CalculatedAt.UTC().Unix()); err != nil {
			return fmt.Errorf("failed to upsert metric %s: %w", m.MetricName, err)
		}
	}

	return tx.Commit()
}

// GetMetrics reads every row of the Metric cache table.
func (c *Client) GetMetrics() ([]models.Metric, error) {
	rows, err := c.db.Query(`SELECT metric_name, metric_value, metric_meta, calculated_at FROM metrics`)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []models.Metric
	for rows.Next() {
		var m models.Metric
		var metaJSON string
		var calculatedAt int64
		if err := rows.Scan(&m.MetricName, &m.MetricValue, &metaJSON, &calculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &m.MetricMeta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metric meta: %w", err)
			}
		}
		m.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// AggregateCSI computes the two aggregates spec.md §4.8 names: the
// system-level score (mean across every DailyAnalysis row — each day
// is one sample) and the conversation-level score (mean of each
// conversation's own DailyAnalysis mean, then averaged across
// conversations).
func (c *Client) AggregateCSI() (systemMean, conversationMean float64, err error) {
	if err := c.db.QueryRow(`SELECT COALESCE(AVG(csi_score), 0) FROM daily_analyses WHERE csi_score IS NOT NULL`).Scan(&systemMean); err != nil {
		return 0, 0, fmt.Errorf("failed to compute system CSI mean: %w", err)
	}

	rows, err := c.db.Query(`
		SELECT AVG(csi_score) FROM daily_analyses
		WHERE csi_score IS NOT NULL
		GROUP BY conversation_id
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute conversation CSI means: %w", err)
	}
	defer rows.Close()

	var sum float64
	var count int
	for rows.Next() {
		var mean float64
		if err := rows.Scan(&mean); err != nil {
			return 0, 0, fmt.Errorf("failed to scan conversation CSI mean: %w", err)
		}
		sum += mean
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if count > 0 {
		conversationMean = sum / float64(count)
	}

	return systemMean, conversationMean, nil
}

// MessagesForConversationDay returns the messages of one conversation
// that fall on analysisDate's UTC calendar day, ordered by timestamp,
// feeding C7's time-metrics calculator.
func (c *Client) MessagesForConversationDay(conversationID int64, analysisDate time.Time) ([]models.Message, error) {
	dayStart := analysisDate.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := c.db.Query(`
		SELECT chat_id, conversation_id, message_content, direction, social_create_time, agent_username, agent_email
		FROM messages
		WHERE conversation_id = ? AND social_create_time >= ? AND social_create_time < ?
		ORDER BY social_create_time ASC
	`, conversationID, dayStart.Unix(), dayEnd.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for conversation %d: %w", conversationID, err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var socialCreateTime int64
		var username, email *string
		if err := rows.Scan(&m.ChatID, &m.ConversationID, &m.MessageContent, &m.Direction, &socialCreateTime, &username, &email); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SocialCreateTime = time.Unix(socialCreateTime, 0).UTC()
		if username != nil || email != nil {
			m.AgentInfo = &models.AgentInfo{}
			if username != nil {
				m.AgentInfo.Username = *username
			}
			if email != nil {
				m.AgentInfo.Email = *email
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
