package scoring

const (
	weightEffectiveness = 0.40
	weightEffort        = 0.25
	weightEfficiency    = 0.15
	weightEmpathy       = 0.20
)

// ComputeCSI implements spec.md §4.8's weighted composite. A null
// pillar (only Efficiency can be null) is omitted and the remaining
// weights renormalized to sum to 1; if every pillar were null the
// result is null, though in practice Effectiveness/Effort/Empathy are
// always present since the LLM adapter always returns a populated
// (possibly fallback) MicroMetrics record.
func ComputeCSI(p Pillars) *float64 {
	type weighted struct {
		value  float64
		weight float64
	}

	terms := []weighted{
		{p.Effectiveness, weightEffectiveness},
		{p.Effort, weightEffort},
		{p.Empathy, weightEmpathy},
	}
	if p.Efficiency != nil {
		terms = append(terms, weighted{*p.Efficiency, weightEfficiency})
	}

	totalWeight := 0.0
	for _, t := range terms {
		totalWeight += t.weight
	}
	if totalWeight == 0 {
		return nil
	}

	sum := 0.0
	for _, t := range terms {
		sum += t.value * (t.weight / totalWeight)
	}

	csi := 10 * sum
	if csi < 0 {
		csi = 0
	}
	if csi > 100 {
		csi = 100
	}
	return &csi
}
