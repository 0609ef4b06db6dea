package scoring

import "github.com/powerpulse/analyzer/internal/llmadapter"

// Pillars holds the four 0–10 "goodness" scores spec.md §4.8 derives
// from the eight micro-metrics. Efficiency is the only pillar that can
// be null — it depends on time metrics, which are null for single-
// message days.
type Pillars struct {
	Effectiveness float64
	Effort        float64
	Efficiency    *float64
	Empathy       float64
}

// timeThreshold is a piecewise-linear "goodness" ramp: score 10 at or
// below Good, 0 at or above Bad, linear in between.
type timeThreshold struct {
	Good, Bad float64 // same unit as the raw metric (seconds, or minutes for handling time)
}

var (
	firstResponseThreshold = timeThreshold{Good: 60, Bad: 1800}
	avgResponseThreshold   = timeThreshold{Good: 120, Bad: 3600}
	handlingThreshold      = timeThreshold{Good: 5, Bad: 60} // minutes
)

func (t timeThreshold) normalize(raw float64) float64 {
	if raw <= t.Good {
		return 10
	}
	if raw >= t.Bad {
		return 0
	}
	return clip(10 * (t.Bad - raw) / (t.Bad - t.Good))
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// ComputePillars implements spec.md §4.8's four pillar formulas over
// one day's micro-metrics and time metrics.
func ComputePillars(m llmadapter.MicroMetrics, t TimeMetrics) Pillars {
	effectiveness := clip((m.ResolutionAchieved + m.FCRScore) / 2)
	effort := clip((7 - m.CES) / 6 * 10)
	empathy := clip(0.4*m.SentimentScore + 0.6*((m.SentimentShift+5)/10*10))

	var scores []float64
	if t.FirstResponseTime != nil {
		scores = append(scores, firstResponseThreshold.normalize(*t.FirstResponseTime))
	}
	if t.AvgResponseTime != nil {
		scores = append(scores, avgResponseThreshold.normalize(*t.AvgResponseTime))
	}
	if t.TotalHandlingTime != nil {
		scores = append(scores, handlingThreshold.normalize(*t.TotalHandlingTime))
	}

	var efficiency *float64
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		avg := sum / float64(len(scores))
		efficiency = &avg
	}

	return Pillars{
		Effectiveness: effectiveness,
		Effort:        effort,
		Efficiency:    efficiency,
		Empathy:       empathy,
	}
}
