// Package topics implements component C11, the deterministic local
// topic extractor that populates Conversation.common_topics. It is
// entirely separate from the LLM adapter (C5) — the eight micro-
// metrics stay the LLM's sole responsibility per spec.md §4.5, so a
// topic-extraction failure or slowdown never blocks or distorts
// scoring. Grounded on jdkato/prose/v2, the one NLP library present
// anywhere in the retrieved pack.
package topics

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
)

const maxTopics = 5

// nounTags are the Penn Treebank POS tags prose assigns to singular
// and plural common and proper nouns.
var nounTags = map[string]bool{
	"NN": true, "NNS": true, "NNP": true, "NNPS": true,
}

var stopwords = map[string]bool{
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true, "they": true,
	"me": true, "him": true, "her": true, "us": true, "them": true,
	"the": true, "a": true, "an": true, "this": true, "that": true, "these": true, "those": true,
	"thanks": true, "thank": true, "hi": true, "hello": true, "hey": true, "ok": true, "okay": true,
	"please": true, "sorry": true, "yes": true, "no": true, "today": true, "now": true,
}

// Extract returns up to maxTopics lowercase nouns ranked by frequency
// across the given messages, stable for a tied frequency by first
// occurrence. A prose parsing failure on one message is skipped — it
// never fails the whole extraction, since topics are best-effort
// supplementary data, not a scored metric.
func Extract(messageTexts []string) []string {
	counts := make(map[string]int)
	order := make(map[string]int)
	seq := 0

	for _, text := range messageTexts {
		doc, err := prose.NewDocument(text)
		if err != nil {
			continue
		}
		for _, tok := range doc.Tokens() {
			if !nounTags[tok.Tag] {
				continue
			}
			word := strings.ToLower(strings.TrimSpace(tok.Text))
			if word == "" || stopwords[word] || len(word) < 3 {
				continue
			}
			if _, seen := order[word]; !seen {
				order[word] = seq
				seq++
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}

	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return order[words[i]] < order[words[j]]
	})

	if len(words) > maxTopics {
		words = words[:maxTopics]
	}
	return words
}
