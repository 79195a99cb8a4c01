package miner

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

// fakeChain serves static chain state.
type fakeChain struct {
	balance      *big.Int
	baseFee      *big.Int
	tip          *big.Int
	pendingNonce uint64
}

func (f *fakeChain) GetBalance(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}
func (f *fakeChain) GetBaseFee(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.baseFee), nil
}
func (f *fakeChain) GetGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Add(f.baseFee, f.tip), nil
}
func (f *fakeChain) GetTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.tip), nil
}
func (f *fakeChain) GetConfirmedNonce(context.Context) (uint64, error) {
	return f.pendingNonce, nil
}
func (f *fakeChain) GetPendingNonce(context.Context) (uint64, error) {
	return f.pendingNonce, nil
}

// sendOutcome scripts one submission: either a broadcast error, a receipt,
// or a receipt-wait error.
type sendOutcome struct {
	submitErr error
	receipt   *wallet.TxReceiptStatus
	waitErr   error
}

// fakeSender replays scripted outcomes and records every request.
type fakeSender struct {
	outcomes []sendOutcome
	requests []wallet.TxRequest
}

func (f *fakeSender) Submit(_ context.Context, req wallet.TxRequest) (common.Hash, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i >= len(f.outcomes) {
		return common.Hash{}, errors.New("unexpected submission")
	}
	if f.outcomes[i].submitErr != nil {
		return common.Hash{}, f.outcomes[i].submitErr
	}
	return crypto.Keccak256Hash([]byte{byte(i)}), nil
}

func (f *fakeSender) WaitForReceipt(_ context.Context, hash common.Hash, _ time.Duration) (*wallet.TxReceiptStatus, error) {
	i := len(f.requests) - 1
	if f.outcomes[i].waitErr != nil {
		return nil, f.outcomes[i].waitErr
	}
	r := *f.outcomes[i].receipt
	r.Hash = hash
	return &r, nil
}

// capturingReporter records every update pushed by the session. The
// assignment pins the port name against the identifiers ginkgo's dot-import
// injects into this package.
type capturingReporter struct {
	updates []SessionUpdate
}

var _ SessionReporter = (*capturingReporter)(nil)

func (r *capturingReporter) SessionUpdate(u SessionUpdate) {
	r.updates = append(r.updates, u)
}

var _ = Describe("Session", func() {
	var (
		chain     *fakeChain
		estimator *Estimator
		log       *logrus.Logger
		estCost   *big.Int
	)

	const sizeBytes = 25 * 1024

	receiptFor := func(cost *big.Int) *wallet.TxReceiptStatus {
		gas := facet.TxBaseGas + uint64(sizeBytes)*facet.CalldataNonZeroByteGas
		return &wallet.TxReceiptStatus{
			Status:            1,
			BlockNumber:       big.NewInt(100),
			GasUsed:           gas,
			EffectiveGasPrice: new(big.Int).Div(cost, new(big.Int).SetUint64(gas)),
		}
	}

	newSession := func(sender *fakeSender, spendCap *big.Int, stopOnFailure bool, reporter SessionReporter) *Session {
		return NewSession(chain, sender, estimator, reporter, nil, log, SessionConfig{
			SpendCap:       spendCap,
			SizeBytes:      sizeBytes,
			StopOnFailure:  stopOnFailure,
			ReceiptTimeout: time.Minute,
		})
	}

	BeforeEach(func() {
		chain = &fakeChain{
			balance:      eth("1.0"),
			baseFee:      big.NewInt(10_000_000_000),
			tip:          big.NewInt(1_000_000_000),
			pendingNonce: 7,
		}
		estimator = NewEstimator(facet.MainnetChainID)
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)

		est, err := estimator.Estimate(sizeBytes, FeeObservation{BaseFee: chain.baseFee, TipCap: chain.tip})
		Expect(err).NotTo(HaveOccurred())
		estCost = est.EstimatedCost
	})

	It("submits until the next transaction would exceed the budget", func() {
		sender := &fakeSender{outcomes: []sendOutcome{
			{receipt: receiptFor(estCost)},
			{receipt: receiptFor(estCost)},
		}}
		spendCap := new(big.Int).Mul(estCost, big.NewInt(5))
		spendCap.Div(spendCap, big.NewInt(2)) // 2.5 transactions worth

		totals, err := newSession(sender, spendCap, false, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(totals.TransactionsSubmitted).To(Equal(2))
		Expect(totals.TotalSpent).To(Equal(new(big.Int).Mul(estCost, big.NewInt(2))))
	})

	It("serializes transactions with consecutive nonces", func() {
		sender := &fakeSender{outcomes: []sendOutcome{
			{receipt: receiptFor(estCost)},
			{receipt: receiptFor(estCost)},
		}}
		spendCap := new(big.Int).Mul(estCost, big.NewInt(2))

		_, err := newSession(sender, spendCap, false, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(sender.requests).To(HaveLen(2))
		Expect(sender.requests[0].Nonce).To(Equal(uint64(7)))
		Expect(sender.requests[1].Nonce).To(Equal(uint64(8)))
		Expect(sender.requests[0].To).To(Equal(facet.InboxAddress))
		Expect(sender.requests[0].Value.Sign()).To(BeZero())
	})

	It("counts only completed transactions in the spend totals", func() {
		sender := &fakeSender{outcomes: []sendOutcome{
			{receipt: receiptFor(estCost)},
			{submitErr: errors.New("connection reset")},
			{receipt: receiptFor(estCost)},
		}}
		spendCap := new(big.Int).Mul(estCost, big.NewInt(2))

		totals, err := newSession(sender, spendCap, false, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(totals.TransactionsFailed).To(Equal(1))
		Expect(totals.TotalSpent).To(Equal(new(big.Int).Mul(estCost, big.NewInt(2))))
	})

	It("stops immediately on failure under the fail-fast policy", func() {
		sender := &fakeSender{outcomes: []sendOutcome{
			{submitErr: errors.New("connection reset")},
		}}
		spendCap := new(big.Int).Mul(estCost, big.NewInt(10))

		totals, err := newSession(sender, spendCap, true, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(totals.TransactionsSubmitted).To(BeZero())
		Expect(totals.TransactionsFailed).To(Equal(1))
		Expect(sender.requests).To(HaveLen(1))
	})

	It("accrues spend but no mint for a reverted transaction", func() {
		reverted := receiptFor(estCost)
		reverted.Status = 0
		sender := &fakeSender{outcomes: []sendOutcome{
			{receipt: reverted},
		}}
		spendCap := new(big.Int).Set(estCost)

		totals, err := newSession(sender, spendCap, false, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(totals.TransactionsSubmitted).To(Equal(1))
		Expect(totals.TotalSpent).To(Equal(estCost))
		Expect(totals.TotalMinted.Sign()).To(BeZero())
	})

	It("treats a receipt-wait timeout as a failed transaction, not an error", func() {
		sender := &fakeSender{outcomes: []sendOutcome{
			{waitErr: wallet.NewWalletError(wallet.ErrCodeTimeout, "timeout waiting for receipt", nil)},
		}}
		spendCap := new(big.Int).Mul(estCost, big.NewInt(1))

		totals, err := newSession(sender, spendCap, true, nil).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(totals.TransactionsFailed).To(Equal(1))
		Expect(totals.TotalSpent.Sign()).To(BeZero())
	})

	It("reports every per-transaction state transition", func() {
		reporter := &capturingReporter{}
		sender := &fakeSender{outcomes: []sendOutcome{
			{receipt: receiptFor(estCost)},
		}}
		spendCap := new(big.Int).Set(estCost)

		_, err := newSession(sender, spendCap, false, reporter).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		var phases []TxPhase
		for _, u := range reporter.updates {
			phases = append(phases, u.Phase)
		}
		Expect(phases).To(ContainElements(PhasePreparing, PhaseSubmitting, PhaseConfirming, PhaseCompleted))
	})
})
