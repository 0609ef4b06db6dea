package llmadapter

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawMetric struct {
	SentimentScore     *float64 `json:"sentiment_score"`
	SentimentShift     *float64 `json:"sentiment_shift"`
	ResolutionAchieved *float64 `json:"resolution_achieved"`
	FCRScore           *float64 `json:"fcr_score"`
	CES                *float64 `json:"ces"`
}

// ParseResponse enforces the strict-JSON parsing contract of spec.md
// §4.5: a JSON array of exactly wantLen objects, each with all five
// numeric keys within range. Any deviation is reported as an error;
// the caller substitutes the fallback record for the whole batch.
func ParseResponse(text string, wantLen int) ([]MicroMetrics, error) {
	text = stripCodeFence(text)

	var raw []rawMetric
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	if len(raw) != wantLen {
		return nil, fmt.Errorf("response array length %d does not match batch size %d", len(raw), wantLen)
	}

	results := make([]MicroMetrics, wantLen)
	for i, r := range raw {
		m, err := validateMetric(r)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		results[i] = m
	}

	return results, nil
}

func validateMetric(r rawMetric) (MicroMetrics, error) {
	if r.SentimentScore == nil || r.SentimentShift == nil || r.ResolutionAchieved == nil || r.FCRScore == nil || r.CES == nil {
		return MicroMetrics{}, fmt.Errorf("missing required key")
	}

	m := MicroMetrics{
		SentimentScore:     *r.SentimentScore,
		SentimentShift:     *r.SentimentShift,
		ResolutionAchieved: *r.ResolutionAchieved,
		FCRScore:           *r.FCRScore,
		CES:                *r.CES,
	}

	if m.SentimentScore < 0 || m.SentimentScore > 10 {
		return MicroMetrics{}, fmt.Errorf("sentiment_score out of range: %v", m.SentimentScore)
	}
	if m.SentimentShift < -5 || m.SentimentShift > 5 {
		return MicroMetrics{}, fmt.Errorf("sentiment_shift out of range: %v", m.SentimentShift)
	}
	if m.ResolutionAchieved < 0 || m.ResolutionAchieved > 10 {
		return MicroMetrics{}, fmt.Errorf("resolution_achieved out of range: %v", m.ResolutionAchieved)
	}
	if m.FCRScore < 0 || m.FCRScore > 10 {
		return MicroMetrics{}, fmt.Errorf("fcr_score out of range: %v", m.FCRScore)
	}
	if m.CES < 1 || m.CES > 7 {
		return MicroMetrics{}, fmt.Errorf("ces out of range: %v", m.CES)
	}

	return m, nil
}

// fallbackAll substitutes the fixed fallback record for every unit in
// the batch, preserving positional alignment.
func fallbackAll(n int) []MicroMetrics {
	out := make([]MicroMetrics, n)
	for i := range out {
		out[i] = FallbackMetrics()
	}
	return out
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
