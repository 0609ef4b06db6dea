package ingest

import (
	"sort"
	"time"

	"github.com/powerpulse/analyzer/internal/storage/models"
)

// ChatGroup is every accepted message for one chat_id, with the
// conversation-level aggregates C2 derives from them.
type ChatGroup struct {
	ChatID           string
	Messages         []models.Message
	TotalMessages    int
	CustomerMessages int
	AgentMessages    int
	FirstMessageTime time.Time
	LastMessageTime  time.Time
	Days             []DayGroup
}

// DayGroup is the ordered sequence of messages for one chat on one UTC
// calendar day — the unit C4 batches and C5/C7/C8 score.
type DayGroup struct {
	AnalysisDate time.Time // UTC midnight
	Messages     []models.Message
}

// GroupByChatAndDay groups validated messages by chat_id, then by the
// UTC calendar date of social_create_time, and computes the
// conversation-level aggregates (spec.md §4.2).
func GroupByChatAndDay(byChatID map[string][]models.Message) []ChatGroup {
	chatIDs := make([]string, 0, len(byChatID))
	for id := range byChatID {
		chatIDs = append(chatIDs, id)
	}
	sort.Strings(chatIDs)

	groups := make([]ChatGroup, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		msgs := byChatID[chatID]
		if len(msgs) == 0 {
			continue
		}

		sorted := make([]models.Message, len(msgs))
		copy(sorted, msgs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].SocialCreateTime.Before(sorted[j].SocialCreateTime)
		})

		group := ChatGroup{
			ChatID:           chatID,
			Messages:         sorted,
			FirstMessageTime: sorted[0].SocialCreateTime,
			LastMessageTime:  sorted[len(sorted)-1].SocialCreateTime,
		}

		dayOrder := make([]time.Time, 0)
		byDay := make(map[time.Time][]models.Message)

		for _, m := range sorted {
			group.TotalMessages++
			switch m.Direction {
			case models.DirectionToCompany:
				group.CustomerMessages++
			case models.DirectionToClient:
				group.AgentMessages++
			}
			if m.SocialCreateTime.After(group.LastMessageTime) {
				group.LastMessageTime = m.SocialCreateTime
			}

			day := analysisDate(m.SocialCreateTime)
			if _, ok := byDay[day]; !ok {
				dayOrder = append(dayOrder, day)
			}
			byDay[day] = append(byDay[day], m)
		}

		for _, day := range dayOrder {
			group.Days = append(group.Days, DayGroup{
				AnalysisDate: day,
				Messages:     byDay[day],
			})
		}

		groups = append(groups, group)
	}

	return groups
}

// analysisDate truncates a UTC instant to its calendar date, mandated
// UTC by spec.md §9 for determinism.
func analysisDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
