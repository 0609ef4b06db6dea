package batching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitWithChars(id int64, chars int) Unit {
	return Unit{
		DailyAnalysisID: id,
		Messages: []MessageView{
			{Direction: "to_company", Content: strings.Repeat("a", chars)},
		},
	}
}

func TestEstimateTokensRoundsUp(t *testing.T) {
	u := unitWithChars(1, 5)
	assert.Equal(t, 2, EstimateTokens(u))
}

func TestPackKeepsUnitsTogetherUnderBudget(t *testing.T) {
	units := []Unit{unitWithChars(1, 40), unitWithChars(2, 40)}

	batches := Pack(units, 100, 20)

	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Units, 2)
}

func TestPackSplitsWhenTokenBudgetExceeded(t *testing.T) {
	units := []Unit{unitWithChars(1, 40), unitWithChars(2, 40)}

	batches := Pack(units, 15, 20)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Units, 1)
	assert.Len(t, batches[1].Units, 1)
}

func TestPackSplitsWhenBatchSizeExceeded(t *testing.T) {
	units := []Unit{unitWithChars(1, 4), unitWithChars(2, 4), unitWithChars(3, 4)}

	batches := Pack(units, 1000, 2)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Units, 2)
	assert.Len(t, batches[1].Units, 1)
}

func TestPackIsolatesOversizedUnit(t *testing.T) {
	units := []Unit{unitWithChars(1, 4), unitWithChars(2, 4000), unitWithChars(3, 4)}

	batches := Pack(units, 100, 20)

	require.Len(t, batches, 3)
	assert.Len(t, batches[1].Units, 1)
	assert.Equal(t, int64(2), batches[1].Units[0].DailyAnalysisID)
}

func TestPackReturnsNilForEmptyInput(t *testing.T) {
	assert.Nil(t, Pack(nil, 100, 20))
}
