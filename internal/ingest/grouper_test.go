package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/analyzer/internal/storage/models"
)

func msg(direction models.Direction, rfc3339 string) models.Message {
	ts, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		panic(err)
	}
	return models.Message{
		MessageContent:   "x",
		Direction:        direction,
		SocialCreateTime: ts,
	}
}

func TestGroupByChatAndDaySplitsOnUTCCalendarBoundary(t *testing.T) {
	byChatID := map[string][]models.Message{
		"chat-1": {
			msg(models.DirectionToCompany, "2026-01-01T23:50:00Z"),
			msg(models.DirectionToClient, "2026-01-02T00:05:00Z"),
		},
	}

	groups := GroupByChatAndDay(byChatID)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Days, 2)
	assert.Equal(t, 1, len(groups[0].Days[0].Messages))
	assert.Equal(t, 1, len(groups[0].Days[1].Messages))
}

func TestGroupByChatAndDayComputesAggregates(t *testing.T) {
	byChatID := map[string][]models.Message{
		"chat-1": {
			msg(models.DirectionToCompany, "2026-01-01T10:00:00Z"),
			msg(models.DirectionToClient, "2026-01-01T10:05:00Z"),
			msg(models.DirectionToCompany, "2026-01-01T10:10:00Z"),
		},
	}

	groups := GroupByChatAndDay(byChatID)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, 3, g.TotalMessages)
	assert.Equal(t, 2, g.CustomerMessages)
	assert.Equal(t, 1, g.AgentMessages)
	assert.True(t, g.FirstMessageTime.Before(g.LastMessageTime))
}

func TestGroupByChatAndDaySortsOutOfOrderMessages(t *testing.T) {
	byChatID := map[string][]models.Message{
		"chat-1": {
			msg(models.DirectionToClient, "2026-01-01T10:10:00Z"),
			msg(models.DirectionToCompany, "2026-01-01T10:00:00Z"),
		},
	}

	groups := GroupByChatAndDay(byChatID)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Days, 1)
	msgs := groups[0].Days[0].Messages
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].SocialCreateTime.Before(msgs[1].SocialCreateTime))
}

func TestGroupByChatAndDayIsDeterministicByChatIDOrder(t *testing.T) {
	byChatID := map[string][]models.Message{
		"chat-b": {msg(models.DirectionToCompany, "2026-01-01T10:00:00Z")},
		"chat-a": {msg(models.DirectionToCompany, "2026-01-01T10:00:00Z")},
	}

	groups := GroupByChatAndDay(byChatID)

	require.Len(t, groups, 2)
	assert.Equal(t, "chat-a", groups[0].ChatID)
	assert.Equal(t, "chat-b", groups[1].ChatID)
}

func TestGroupByChatAndDaySkipsEmptyChats(t *testing.T) {
	byChatID := map[string][]models.Message{
		"chat-1": {},
	}

	groups := GroupByChatAndDay(byChatID)

	assert.Empty(t, groups)
}
