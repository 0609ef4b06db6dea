// Package llmadapter builds the single-batch prompt, calls the
// configured provider, and parses its strict-JSON response into the
// five AI-derived micro-metrics per DailyAnalysis unit (spec.md §4.5,
// component C5). Selection between providers is by configuration
// (spec.md §9), not dynamic type dispatch at call sites.
package llmadapter

import (
	"context"
	"errors"

	"github.com/powerpulse/analyzer/internal/batching"
)

// MicroMetrics is the five AI-derived per-day scores spec.md §3
// defines. Ranges: SentimentScore [0,10], SentimentShift [-5,5],
// ResolutionAchieved [0,10], FCRScore [0,10], CES [1,7].
type MicroMetrics struct {
	SentimentScore     float64
	SentimentShift     float64
	ResolutionAchieved float64
	FCRScore           float64
	CES                float64
	Error              string
}

// Usage reports token accounting if the provider supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FallbackMetrics is the exact substitution spec.md §4.5 mandates on
// any parsing/validation deviation.
func FallbackMetrics() MicroMetrics {
	return MicroMetrics{
		SentimentScore:     5,
		SentimentShift:     0,
		ResolutionAchieved: 5,
		FCRScore:           5,
		CES:                4,
		Error:              "analysis_failed",
	}
}

// Provider is the capability C5 selects by AI_SERVICE configuration.
type Provider interface {
	// AnalyzeBatch builds one prompt over units, calls the LLM, and
	// returns one MicroMetrics per unit, positionally aligned with the
	// input. Results are always populated — even on failure they hold
	// the fallback record — so a caller can persist them unconditionally
	// and inspect err only to decide the owning Job's status/error tag.
	AnalyzeBatch(ctx context.Context, units []batching.Unit) ([]MicroMetrics, Usage, error)
}

// IsCancelled reports whether err represents cooperative cancellation
// (upload cancelled, or process shutdown) rather than a structural or
// exhausted-transient LLM failure — the two dispositions spec.md §4.6
// tags differently ("cancelled" vs "analysis_failed").
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
