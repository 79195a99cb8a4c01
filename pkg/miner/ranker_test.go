package miner

import (
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
)

// scriptedRanker builds a ranker whose estimates are fixed per size,
// so selection behavior can be exercised independent of fee math.
func scriptedRanker(bySizeKB map[int]*SizeEstimate) *Ranker {
	return &Ranker{estimate: func(sizeBytes int, _ FeeObservation) (*SizeEstimate, error) {
		est, ok := bySizeKB[sizeBytes/1024]
		if !ok {
			return nil, &InvalidSizeError{SizeBytes: sizeBytes, Overhead: facet.TxOverheadBytes}
		}
		return est, nil
	}}
}

func scripted(kb int, costPerUnit, efficiency float64) *SizeEstimate {
	return &SizeEstimate{
		SizeBytes:         kb * 1024,
		EstimatedCost:     big.NewInt(1),
		MintedAmount:      big.NewInt(1),
		CostPerUnit:       costPerUnit,
		EfficiencyPercent: efficiency,
	}
}

var _ = Describe("Ranker", func() {
	var (
		obs   FeeObservation
		sizes SizeRange
	)

	BeforeEach(func() {
		obs = FeeObservation{BaseFee: big.NewInt(10_000_000_000), TipCap: big.NewInt(1_000_000_000)}
		sizes = SizeRange{MinKB: 25, MaxKB: 100, StepKB: 25}
	})

	It("never returns a candidate outside the configured range", func() {
		ranker := NewRanker(NewEstimator(facet.MainnetChainID))
		est, err := ranker.PickBest(obs, Constraints{}, sizes)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.SizeBytes).To(BeNumerically(">=", sizes.MinKB*1024))
		Expect(est.SizeBytes).To(BeNumerically("<=", sizes.MaxKB*1024))
	})

	It("selects the cheapest candidate satisfying the efficiency floor", func() {
		ranker := scriptedRanker(map[int]*SizeEstimate{
			25:  scripted(25, 0.010, 85),
			50:  scripted(50, 0.012, 92),
			75:  scripted(75, 0.014, 94),
			100: scripted(100, 0.013, 96),
		})

		est, err := ranker.PickBest(obs, Constraints{MinEfficiencyPercent: 90}, sizes)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.SizeBytes).To(Equal(50 * 1024))
	})

	It("applies the cost ceiling and efficiency floor together", func() {
		ranker := scriptedRanker(map[int]*SizeEstimate{
			25:  scripted(25, 0.010, 85),
			50:  scripted(50, 0.012, 92),
			75:  scripted(75, 0.011, 94),
			100: scripted(100, 0.005, 60),
		})

		est, err := ranker.PickBest(obs, Constraints{MinEfficiencyPercent: 90, MaxCostPerUnit: 0.0115}, sizes)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.SizeBytes).To(Equal(75 * 1024))
	})

	It("degrades to the cheapest per unit when nothing qualifies", func() {
		ranker := scriptedRanker(map[int]*SizeEstimate{
			25:  scripted(25, 0.020, 85),
			50:  scripted(50, 0.015, 88),
			75:  scripted(75, 0.018, 89),
			100: scripted(100, 0.019, 89),
		})

		est, err := ranker.PickBest(obs, Constraints{MinEfficiencyPercent: 95}, sizes)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.SizeBytes).To(Equal(50 * 1024))
	})

	It("falls back to the first candidate when costs never improve", func() {
		ranker := scriptedRanker(map[int]*SizeEstimate{
			25:  scripted(25, 0.010, 85),
			50:  scripted(50, 0.010, 86),
			75:  scripted(75, 0.010, 87),
			100: scripted(100, 0.010, 88),
		})

		est, err := ranker.PickBest(obs, Constraints{MinEfficiencyPercent: 95}, sizes)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.SizeBytes).To(Equal(25 * 1024))
	})

	It("returns ErrNoCandidate for a degenerate range", func() {
		ranker := NewRanker(NewEstimator(facet.MainnetChainID))

		_, err := ranker.PickBest(obs, Constraints{}, SizeRange{MinKB: 10, MaxKB: 5, StepKB: 5})
		Expect(err).To(MatchError(ErrNoCandidate))

		_, err = ranker.PickBest(obs, Constraints{}, SizeRange{MinKB: 25, MaxKB: 100, StepKB: 0})
		Expect(err).To(MatchError(ErrNoCandidate))
	})
})
