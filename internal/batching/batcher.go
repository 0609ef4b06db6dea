// Package batching estimates the LLM token cost of a day's worth of
// messages and packs those units into token- and count-bounded jobs
// (spec.md §4.4, component C4).
package batching

import (
	"strings"

	"github.com/powerpulse/analyzer/internal/ingest"
)

// Unit is one DailyAnalysis's worth of work waiting to be batched: the
// day's messages plus a reference the caller uses to recover the
// DailyAnalysis row once a batch completes.
type Unit struct {
	DailyAnalysisID int64
	Messages        []MessageView
}

// MessageView is the minimal shape C5's prompt builder needs from a
// message, decoupled from the storage model.
type MessageView struct {
	Direction string
	Content   string
	Timestamp string
}

// Batch is a set of units that together respect the token budget and
// the hard batch-size cap.
type Batch struct {
	Units  []Unit
	Tokens int
}

// EstimateTokens applies the spec's ceil(chars/4) estimate over the
// concatenation of a unit's message content.
func EstimateTokens(u Unit) int {
	total := 0
	for _, m := range u.Messages {
		total += len(m.Content)
	}
	return (total + 3) / 4
}

// Pack runs the first-fit packing algorithm from spec.md §4.4: walk
// units in order, add each to the current batch unless it would bust
// either bound, in which case start a new batch. A unit whose own
// estimate already exceeds maxTokens is placed alone (the LLM adapter
// may reject it later; that failure is reported, not fatal here).
func Pack(units []Unit, maxTokensPerJob, batchSize int) []Batch {
	if len(units) == 0 {
		return nil
	}

	var batches []Batch
	var current Batch

	flush := func() {
		if len(current.Units) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for _, u := range units {
		tokens := EstimateTokens(u)

		if tokens > maxTokensPerJob {
			flush()
			batches = append(batches, Batch{Units: []Unit{u}, Tokens: tokens})
			continue
		}

		fitsTokens := current.Tokens+tokens <= maxTokensPerJob
		fitsCount := len(current.Units)+1 <= batchSize

		if len(current.Units) > 0 && (!fitsTokens || !fitsCount) {
			flush()
		}

		current.Units = append(current.Units, u)
		current.Tokens += tokens
	}

	flush()

	return batches
}

// MessageViewsFromContent converts ingest's day groups into one
// MessageView slice per day (kept separate so this package never
// imports database types directly beyond ingest's grouping output).
func MessageViewsFromContent(messages []ingest.DayGroup) [][]MessageView {
	out := make([][]MessageView, len(messages))
	for i, day := range messages {
		views := make([]MessageView, len(day.Messages))
		for j, m := range day.Messages {
			views[j] = MessageView{
				Direction: string(m.Direction),
				Content:   m.MessageContent,
				Timestamp: m.SocialCreateTime.Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		out[i] = views
	}
	return out
}

// TotalLength reports the character length a unit's messages would
// contribute, exposed for tests that want to cross-check EstimateTokens
// without reaching into the formula.
func TotalLength(u Unit) int {
	var b strings.Builder
	for _, m := range u.Messages {
		b.WriteString(m.Content)
	}
	return b.Len()
}
