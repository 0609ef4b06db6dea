package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractReturnsEmptyForNoMessages(t *testing.T) {
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract([]string{""}))
}

func TestExtractCapsAtMaxTopics(t *testing.T) {
	topics := Extract([]string{
		"The meter reading was wrong and the billing statement listed an incorrect token amount for the outage report filed by the customer near the transformer station.",
	})

	assert.LessOrEqual(t, len(topics), maxTopics)
}

func TestExtractNeverReturnsStopwords(t *testing.T) {
	topics := Extract([]string{"Hi there, thanks for the help, yes please, ok sorry about that."})

	for _, word := range topics {
		assert.False(t, stopwords[word], "stopword %q leaked into topics", word)
	}
}

func TestExtractIsDeterministicAcrossRuns(t *testing.T) {
	text := "My prepaid meter token generation failed after the last power outage near the substation."

	first := Extract([]string{text})
	second := Extract([]string{text})

	assert.Equal(t, first, second)
}
