package miner

import (
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
)

var _ = Describe("Estimator", func() {
	var (
		estimator *Estimator
		obs       FeeObservation
	)

	BeforeEach(func() {
		estimator = NewEstimator(facet.MainnetChainID)
		obs = FeeObservation{
			BaseFee: big.NewInt(10_000_000_000), // 10 gwei
			TipCap:  big.NewInt(1_000_000_000),  // 1 gwei
		}
	})

	It("rejects sizes that do not exceed the protocol overhead", func() {
		_, err := estimator.Estimate(facet.TxOverheadBytes, obs)
		Expect(err).To(BeAssignableToTypeOf(&InvalidSizeError{}))

		_, err = estimator.Estimate(facet.TxOverheadBytes-10, obs)
		Expect(err).To(HaveOccurred())
	})

	It("keeps efficiency in [0, 100) for all valid sizes", func() {
		for _, kb := range []int{1, 25, 50, 100, 500} {
			est, err := estimator.Estimate(kb*1024, obs)
			Expect(err).NotTo(HaveOccurred())
			Expect(est.EfficiencyPercent).To(BeNumerically(">=", 0))
			Expect(est.EfficiencyPercent).To(BeNumerically("<", 100))
		}
	})

	It("computes strictly increasing efficiency in size", func() {
		var prev float64
		for _, kb := range []int{1, 25, 50, 100} {
			est, err := estimator.Estimate(kb*1024, obs)
			Expect(err).NotTo(HaveOccurred())
			Expect(est.EfficiencyPercent).To(BeNumerically(">", prev))
			prev = est.EfficiencyPercent
		}
	})

	It("charges the full payload at the non-zero calldata rate", func() {
		size := 50 * 1024
		est, err := estimator.Estimate(size, obs)
		Expect(err).NotTo(HaveOccurred())

		wantGas := facet.TxBaseGas + uint64(size)*facet.CalldataNonZeroByteGas
		Expect(est.EstimatedGas).To(Equal(wantGas))

		price := new(big.Int).Add(obs.BaseFee, obs.TipCap)
		wantCost := new(big.Int).Mul(price, new(big.Int).SetUint64(wantGas))
		Expect(est.EstimatedCost).To(Equal(wantCost))
	})

	It("returns an infinite cost per unit when nothing is minted", func() {
		unknownChain := NewEstimator(424242)
		est, err := unknownChain.Estimate(25*1024, obs)
		Expect(err).NotTo(HaveOccurred())
		Expect(est.MintedAmount.Sign()).To(BeZero())
		Expect(est.CostPerUnit).To(BeNumerically(">", 1e300))
	})

	It("falls back to the legacy gas price when no base fee is available", func() {
		legacy := FeeObservation{GasPrice: big.NewInt(12_000_000_000)}
		est, err := estimator.Estimate(25*1024, legacy)
		Expect(err).NotTo(HaveOccurred())

		wantCost := new(big.Int).Mul(legacy.GasPrice, new(big.Int).SetUint64(est.EstimatedGas))
		Expect(est.EstimatedCost).To(Equal(wantCost))
	})
})
