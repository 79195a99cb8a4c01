package miner

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// eth converts a decimal ETH string to wei exactly.
func eth(s string) *big.Int {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		panic("invalid ETH amount " + s)
	}
	wei := new(big.Rat).Mul(r, new(big.Rat).SetInt64(params.Ether))
	if !wei.IsInt() {
		panic("sub-wei ETH amount " + s)
	}
	return new(big.Int).Set(wei.Num())
}

var _ = Describe("PlanSpendCap", func() {
	It("budgets the whole balance less a 1% buffer in all mode", func() {
		got, err := PlanSpendCap(SpendModeAll, eth("1.0"), eth("0.02"), PlanOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(eth("0.99")))
	})

	It("derives the cap from the target transaction count with a 10% buffer", func() {
		got, err := PlanSpendCap(SpendModeCap, eth("1.0"), eth("0.02"), PlanOptions{TargetTxCount: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(eth("0.11")))
	})

	It("uses the explicit cap amount when provided", func() {
		got, err := PlanSpendCap(SpendModeCap, eth("1.0"), eth("0.02"), PlanOptions{CapAmount: eth("0.5")})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(eth("0.5")))
	})

	It("rejects an explicit cap above the balance", func() {
		_, err := PlanSpendCap(SpendModeCap, eth("1.0"), eth("0.02"), PlanOptions{CapAmount: eth("2.0")})
		Expect(err).To(BeAssignableToTypeOf(&InsufficientBalanceError{}))
	})

	It("raises a too-small cap to one buffered transaction", func() {
		got, err := PlanSpendCap(SpendModeCap, eth("1.0"), eth("0.02"), PlanOptions{CapAmount: eth("0.001")})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(eth("0.022")))
	})

	It("clips the cap back under the balance buffer", func() {
		got, err := PlanSpendCap(SpendModeCap, eth("0.03"), eth("0.02"), PlanOptions{TargetTxCount: 5})
		Expect(err).NotTo(HaveOccurred())
		// 0.022 * 5 exceeds the balance; clipped to balance - 1%.
		Expect(got).To(Equal(eth("0.0297")))
	})

	It("fails when even one buffered transaction is unaffordable", func() {
		_, err := PlanSpendCap(SpendModeAll, eth("0.01"), eth("0.02"), PlanOptions{})
		Expect(err).To(BeAssignableToTypeOf(&InsufficientBalanceError{}))
	})

	It("requires a resolvable cap in cap mode", func() {
		_, err := PlanSpendCap(SpendModeCap, eth("1.0"), eth("0.02"), PlanOptions{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("requires a cap amount"))
	})

	It("keeps the cap within [0, balance] across balances", func() {
		for _, balance := range []*big.Int{eth("0.05"), eth("0.5"), eth("5")} {
			got, err := PlanSpendCap(SpendModeAll, balance, eth("0.02"), PlanOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Sign()).To(BeNumerically(">=", 0))
			Expect(got.Cmp(balance)).To(BeNumerically("<=", 0))
		}
	})
})
