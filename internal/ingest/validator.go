// Package ingest turns a raw upload payload into normalized, grouped
// messages ready for persistence and scoring (C1 message validator and
// C2 grouper).
package ingest

import (
	"time"

	"github.com/powerpulse/analyzer/internal/storage/models"
)

// RawMessage is one message record as it appears in the uploaded JSON,
// keyed exactly as the upstream export names its fields.
type RawMessage struct {
	MessageContent   any     `json:"MESSAGE_CONTENT"`
	Direction        string  `json:"DIRECTION"`
	SocialCreateTime string  `json:"SOCIAL_CREATE_TIME"`
	AgentUsername    *string `json:"AGENT_USERNAME,omitempty"`
	AgentEmail       *string `json:"AGENT_EMAIL,omitempty"`
}

// RejectReason classifies why a raw message was filtered.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectAutoresponse     RejectReason = "filtered_autoresponses"
	RejectInvalid          RejectReason = "filtered_invalid"
)

// Validator accepts or rejects raw messages and normalizes the
// accepted ones. It is pure and holds only its startup configuration.
type Validator struct {
	AutoresponseSentence string
	SubstringMode        bool
}

// NewValidator builds a Validator from the configured auto-reply
// sentence and matching mode (see spec.md §9 Open Questions).
func NewValidator(autoresponseSentence string, substringMode bool) *Validator {
	return &Validator{
		AutoresponseSentence: autoresponseSentence,
		SubstringMode:        substringMode,
	}
}

// Validate checks a single raw message and, if accepted, returns its
// normalized form. Rejections are never errors — they are reported via
// RejectReason so the caller can tally upload statistics.
func (v *Validator) Validate(chatID string, raw RawMessage) (models.Message, RejectReason) {
	content, ok := raw.MessageContent.(string)
	if !ok {
		return models.Message{}, RejectInvalid
	}

	dir := models.Direction(raw.Direction)
	if dir != models.DirectionToCompany && dir != models.DirectionToClient {
		return models.Message{}, RejectInvalid
	}

	ts, err := parseTimestamp(raw.SocialCreateTime)
	if err != nil {
		return models.Message{}, RejectInvalid
	}

	if v.isAutoresponse(content) {
		return models.Message{}, RejectAutoresponse
	}

	var agentInfo *models.AgentInfo
	if raw.AgentUsername != nil || raw.AgentEmail != nil {
		info := models.AgentInfo{}
		if raw.AgentUsername != nil {
			info.Username = *raw.AgentUsername
		}
		if raw.AgentEmail != nil {
			info.Email = *raw.AgentEmail
		}
		agentInfo = &info
	}

	return models.Message{
		ChatID:           chatID,
		MessageContent:   content,
		Direction:        dir,
		SocialCreateTime: ts.UTC(),
		AgentInfo:        agentInfo,
	}, RejectNone
}

// autoresponseMarker is the dial code inside the known auto-reply;
// substring mode rejects any content that contains it.
const autoresponseMarker = "*977#"

func (v *Validator) isAutoresponse(content string) bool {
	if v.SubstringMode {
		return containsSubstring(content, autoresponseMarker)
	}
	return content == v.AutoresponseSentence
}

func containsSubstring(content, substr string) bool {
	return len(content) >= len(substr) && indexOf(content, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errEmptyTimestamp
	}
	// Accept RFC3339 with or without fractional seconds; a zone suffix
	// ("Z" or an offset) is required. time.RFC3339 handles the canonical
	// "...Z" case the upload format uses (spec.md §6).
	return time.Parse(time.RFC3339, raw)
}
