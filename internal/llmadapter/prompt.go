package llmadapter

import (
	"fmt"
	"strings"

	"github.com/powerpulse/analyzer/internal/batching"
)

const systemInstruction = `You are a customer-service quality analyst. You will be given a batch of customer-support conversation-days. For each one, score five micro-metrics strictly within range:
- sentiment_score: 0 to 10 (customer sentiment across the day, 10 is happiest)
- sentiment_shift: -5 to 5 (change in sentiment from start to end of the day)
- resolution_achieved: 0 to 10 (how fully the issue was resolved)
- fcr_score: 0 to 10 (first contact resolution likelihood)
- ces: 1 to 7 (customer effort score, lower means less effort)

Respond with ONLY a strict JSON array, no prose, no markdown fences. The array must have exactly one object per conversation-day, in the same order given, each shaped exactly as:
{"sentiment_score": <number>, "sentiment_shift": <number>, "resolution_achieved": <number>, "fcr_score": <number>, "ces": <number>}`

// BuildPrompt embeds, for each unit, its ordinal index and ordered
// messages (direction + content + timestamp) per spec.md §4.5.
func BuildPrompt(units []batching.Unit) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nCONVERSATION_DAYS:\n")

	for i, u := range units {
		fmt.Fprintf(&b, "\n[%d]\n", i)
		for _, m := range u.Messages {
			fmt.Fprintf(&b, "(%s @ %s) %s\n", m.Direction, m.Timestamp, m.Content)
		}
	}

	fmt.Fprintf(&b, "\nReturn a JSON array of exactly %d objects.\n", len(units))
	return b.String()
}
