package miner

// Constraints are the selection filters applied while ranking candidate
// sizes. A zero value disables that constraint.
type Constraints struct {
	// MaxCostPerUnit caps the wei-per-FCT-wei ratio of acceptable candidates
	MaxCostPerUnit float64

	// MinEfficiencyPercent floors the payload efficiency of acceptable
	// candidates
	MinEfficiencyPercent float64
}

// satisfiedBy reports whether an estimate meets every enabled constraint.
func (c Constraints) satisfiedBy(est *SizeEstimate) bool {
	if c.MaxCostPerUnit > 0 && est.CostPerUnit > c.MaxCostPerUnit {
		return false
	}
	if c.MinEfficiencyPercent > 0 && est.EfficiencyPercent < c.MinEfficiencyPercent {
		return false
	}
	return true
}

// SizeRange enumerates the candidate payload sizes in whole kilobytes.
type SizeRange struct {
	MinKB  int
	MaxKB  int
	StepKB int
}

// DefaultSizeRange covers 25KB to 100KB in 25KB steps.
func DefaultSizeRange() SizeRange {
	return SizeRange{MinKB: 25, MaxKB: 100, StepKB: 25}
}

// estimateFunc evaluates one candidate size against a fee observation.
type estimateFunc func(sizeBytes int, obs FeeObservation) (*SizeEstimate, error)

// Ranker picks the best payload size out of a discrete candidate set.
type Ranker struct {
	estimate estimateFunc
}

// NewRanker creates a ranker over the given estimator.
func NewRanker(estimator *Estimator) *Ranker {
	return &Ranker{estimate: estimator.Estimate}
}

// PickBest evaluates every size in the range and returns the cheapest
// candidate satisfying all enabled constraints. When no candidate
// satisfies them, it degrades to the cheapest per unit available rather
// than failing. Returns ErrNoCandidate only when the range produces no
// candidates at all.
func (r *Ranker) PickBest(obs FeeObservation, constraints Constraints, sizes SizeRange) (*SizeEstimate, error) {
	if sizes.StepKB <= 0 {
		return nil, ErrNoCandidate
	}

	var qualified *SizeEstimate
	var fallback *SizeEstimate

	for kb := sizes.MinKB; kb <= sizes.MaxKB; kb += sizes.StepKB {
		est, err := r.estimate(kb*1024, obs)
		if err != nil {
			// Sizes inside protocol overhead cannot carry boost bytes.
			continue
		}

		if fallback == nil || est.CostPerUnit < fallback.CostPerUnit {
			fallback = est
		}

		if constraints.satisfiedBy(est) {
			if qualified == nil || est.CostPerUnit < qualified.CostPerUnit {
				qualified = est
			}
		}
	}

	if qualified != nil {
		return qualified, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoCandidate
}
