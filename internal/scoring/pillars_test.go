package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/analyzer/internal/llmadapter"
)

func ptrf(f float64) *float64 { return &f }

func TestComputePillarsEffectivenessAndEffort(t *testing.T) {
	m := llmadapter.MicroMetrics{
		ResolutionAchieved: 8,
		FCRScore:           6,
		CES:                1,
		SentimentScore:     5,
		SentimentShift:     0,
	}

	p := ComputePillars(m, TimeMetrics{})

	assert.Equal(t, 7.0, p.Effectiveness)
	assert.InDelta(t, 10.0, p.Effort, 0.001)
	assert.Nil(t, p.Efficiency)
}

func TestComputePillarsEffortAtWorstCES(t *testing.T) {
	m := llmadapter.MicroMetrics{CES: 7}

	p := ComputePillars(m, TimeMetrics{})

	assert.Equal(t, 0.0, p.Effort)
}

func TestComputePillarsEmpathyCombinesSentimentAndShift(t *testing.T) {
	m := llmadapter.MicroMetrics{SentimentScore: 10, SentimentShift: 5}

	p := ComputePillars(m, TimeMetrics{})

	assert.InDelta(t, 10.0, p.Empathy, 0.001)
}

func TestComputePillarsEfficiencyUsesOnlyAvailableTimeMetrics(t *testing.T) {
	tm := TimeMetrics{FirstResponseTime: ptrf(30)}

	p := ComputePillars(llmadapter.MicroMetrics{}, tm)

	require.NotNil(t, p.Efficiency)
	assert.Equal(t, 10.0, *p.Efficiency)
}

func TestComputePillarsEfficiencyAveragesMultipleTimeMetrics(t *testing.T) {
	tm := TimeMetrics{
		FirstResponseTime: ptrf(60),   // 10
		AvgResponseTime:   ptrf(3600), // 0
	}

	p := ComputePillars(llmadapter.MicroMetrics{}, tm)

	require.NotNil(t, p.Efficiency)
	assert.InDelta(t, 5.0, *p.Efficiency, 0.001)
}

func TestComputePillarsEfficiencyNilWhenNoTimeMetrics(t *testing.T) {
	p := ComputePillars(llmadapter.MicroMetrics{}, TimeMetrics{})

	assert.Nil(t, p.Efficiency)
}
