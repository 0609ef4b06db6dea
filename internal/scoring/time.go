// Package scoring computes the deterministic, post-LLM half of a
// DailyAnalysis row: time metrics (C7) and pillar/CSI scores (C8).
// Both are pure functions over already-persisted inputs — no I/O, no
// LLM calls — so identical inputs always produce byte-identical
// outputs (spec.md §7 determinism invariant).
package scoring

import (
	"sort"
	"time"

	"github.com/powerpulse/analyzer/internal/storage/models"
)

// TimeMetrics holds the three raw durations C7 derives from one day's
// messages, before C8 normalizes them into the Efficiency pillar.
type TimeMetrics struct {
	FirstResponseTime *float64 // seconds
	AvgResponseTime   *float64 // seconds
	TotalHandlingTime *float64 // minutes
}

// CalculateTimeMetrics implements spec.md §4.7, grounded on
// time_metric_service.py's single-pass response-pairing walk: the
// customer ("to_company") timestamp most recently seen resets every
// time an agent ("to_client") reply consumes it, so each agent message
// pairs with at most one preceding customer message. first_response_time
// is measured from the day's first customer message instead.
func CalculateTimeMetrics(messages []models.Message) TimeMetrics {
	if len(messages) == 0 {
		return TimeMetrics{}
	}

	sorted := make([]models.Message, len(messages))
	copy(sorted, messages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SocialCreateTime.Before(sorted[j].SocialCreateTime)
	})

	totalMinutes := sorted[len(sorted)-1].SocialCreateTime.Sub(sorted[0].SocialCreateTime).Minutes()

	var firstResponseTime *float64
	var responseTimes []float64
	var firstCustomerTime *time.Time   // first customer message of the day, if any
	var customerMessageTime *time.Time // pending customer message awaiting a reply, if any

	for _, m := range sorted {
		switch m.Direction {
		case models.DirectionToCompany:
			t := m.SocialCreateTime
			customerMessageTime = &t
			if firstCustomerTime == nil {
				firstCustomerTime = &t
			}
		case models.DirectionToClient:
			if firstResponseTime == nil && firstCustomerTime != nil {
				first := m.SocialCreateTime.Sub(*firstCustomerTime).Seconds()
				firstResponseTime = &first
			}
			if customerMessageTime != nil {
				delta := m.SocialCreateTime.Sub(*customerMessageTime).Seconds()
				responseTimes = append(responseTimes, delta)
				customerMessageTime = nil
			}
		}
	}

	var avgResponseTime *float64
	if len(responseTimes) > 0 {
		sum := 0.0
		for _, d := range responseTimes {
			sum += d
		}
		avg := sum / float64(len(responseTimes))
		avgResponseTime = &avg
	}

	var totalHandlingTime *float64
	if len(sorted) >= 2 {
		totalHandlingTime = &totalMinutes
	}

	return TimeMetrics{
		FirstResponseTime: firstResponseTime,
		AvgResponseTime:   avgResponseTime,
		TotalHandlingTime: totalHandlingTime,
	}
}
