package miner

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

// TxPhase is the per-transaction state within a session.
type TxPhase string

const (
	PhasePreparing  TxPhase = "preparing"
	PhaseSubmitting TxPhase = "submitting"
	PhaseConfirming TxPhase = "confirming"
	PhaseCompleted  TxPhase = "completed"
	PhaseFailed     TxPhase = "failed"
)

// SessionTotals accumulates across one session. Monotonically
// non-decreasing; mutated only on transaction completion and only by the
// session loop that owns them.
type SessionTotals struct {
	TransactionsSubmitted int
	TransactionsFailed    int
	TotalSpent            *big.Int
	TotalMinted           *big.Int
}

// Snapshot returns a copy safe to hand to observers.
func (t SessionTotals) Snapshot() SessionTotals {
	return SessionTotals{
		TransactionsSubmitted: t.TransactionsSubmitted,
		TransactionsFailed:    t.TransactionsFailed,
		TotalSpent:            new(big.Int).Set(t.TotalSpent),
		TotalMinted:           new(big.Int).Set(t.TotalMinted),
	}
}

// SessionUpdate is pushed to the SessionReporter after every state transition.
type SessionUpdate struct {
	SessionID string
	Phase     TxPhase
	Totals    SessionTotals
	Estimate  *SizeEstimate
	TxHash    common.Hash
	Nonce     uint64
	Err       error
}

// SessionConfig parameterizes one mining session.
type SessionConfig struct {
	// SpendCap is the resolved wei budget for the session
	SpendCap *big.Int

	// SizeBytes is the payload size every transaction in the session uses
	SizeBytes int

	// StopOnFailure stops the session on the first failed transaction
	// instead of continuing to the next iteration
	StopOnFailure bool

	// ReceiptTimeout bounds each confirmation wait
	ReceiptTimeout time.Duration

	// SubmitRate paces submissions; nil means unpaced
	SubmitRate *rate.Limiter
}

// Session drives the serialized submit-and-confirm loop for one resolved
// budget and payload size. It owns its totals from creation to completion.
type Session struct {
	chain     ChainReader
	sender    TxSender
	estimator *Estimator
	reporter  SessionReporter
	recorder  Recorder
	log       *logrus.Logger

	config SessionConfig
	id     string
	totals SessionTotals
}

// NewSession creates a session. reporter and recorder may be nil.
func NewSession(chain ChainReader, sender TxSender, estimator *Estimator, reporter SessionReporter, recorder Recorder, log *logrus.Logger, config SessionConfig) *Session {
	return &Session{
		chain:     chain,
		sender:    sender,
		estimator: estimator,
		reporter:  reporter,
		recorder:  recorder,
		log:       log,
		config:    config,
		id:        uuid.NewString(),
		totals: SessionTotals{
			TotalSpent:  big.NewInt(0),
			TotalMinted: big.NewInt(0),
		},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Totals returns a snapshot of the running totals.
func (s *Session) Totals() SessionTotals {
	return s.totals.Snapshot()
}

func (s *Session) report(phase TxPhase, est *SizeEstimate, hash common.Hash, nonce uint64, err error) {
	if s.reporter == nil {
		return
	}
	s.reporter.SessionUpdate(SessionUpdate{
		SessionID: s.id,
		Phase:     phase,
		Totals:    s.totals.Snapshot(),
		Estimate:  est,
		TxHash:    hash,
		Nonce:     nonce,
		Err:       err,
	})
}

func (s *Session) record(ctx context.Context, tx TxRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordTransaction(ctx, s.id, tx); err != nil {
		s.log.WithError(err).Warn("Failed to record transaction history")
	}
}

// Run executes the session until the budget is exhausted, the next
// transaction is unaffordable, a failure occurs under the fail-fast policy,
// or the context is cancelled. Budget exhaustion is normal termination, not
// an error. Transactions are strictly serialized: the next submission never
// starts before the previous transaction reached a terminal phase.
func (s *Session) Run(ctx context.Context) (SessionTotals, error) {
	if s.recorder != nil {
		if err := s.recorder.RecordSessionStart(ctx, s.id, s.config.SpendCap, s.config.SizeBytes); err != nil {
			s.log.WithError(err).Warn("Failed to record session start")
		}
	}
	defer func() {
		if s.recorder != nil {
			if err := s.recorder.RecordSessionEnd(context.WithoutCancel(ctx), s.id, s.totals.Snapshot()); err != nil {
				s.log.WithError(err).Warn("Failed to record session end")
			}
		}
	}()

	nonce, err := s.chain.GetPendingNonce(ctx)
	if err != nil {
		return s.totals.Snapshot(), err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"spend_cap":  s.config.SpendCap.String(),
		"size_bytes": s.config.SizeBytes,
		"nonce":      nonce,
	}).Info("Mining session started")

	for {
		if ctx.Err() != nil {
			break
		}

		// Fees drift between cycles, so the next cost is re-estimated
		// immediately before each submission.
		est, err := s.prepare(ctx)
		if err != nil {
			return s.totals.Snapshot(), err
		}

		remaining := new(big.Int).Sub(s.config.SpendCap, s.totals.TotalSpent)
		if est.EstimatedCost.Cmp(remaining) > 0 {
			s.log.WithFields(logrus.Fields{
				"session_id": s.id,
				"remaining":  remaining.String(),
				"next_cost":  est.EstimatedCost.String(),
			}).Info("Budget exhausted, session complete")
			break
		}

		outcome := s.mineOne(ctx, est, nonce)
		if outcome == PhaseCompleted {
			nonce++
			continue
		}
		if s.config.StopOnFailure {
			s.log.WithField("session_id", s.id).Warn("Stopping session on transaction failure")
			break
		}
		// A failed nonce slot may or may not be consumed; resync from the
		// node before the next attempt.
		if next, err := s.chain.GetPendingNonce(ctx); err == nil {
			nonce = next
		}
	}

	s.log.WithFields(logrus.Fields{
		"session_id":   s.id,
		"submitted":    s.totals.TransactionsSubmitted,
		"failed":       s.totals.TransactionsFailed,
		"total_spent":  s.totals.TotalSpent.String(),
		"total_minted": s.totals.TotalMinted.String(),
	}).Info("Mining session finished")

	return s.totals.Snapshot(), nil
}

// prepare reads the fee market and re-estimates the next transaction.
func (s *Session) prepare(ctx context.Context) (*SizeEstimate, error) {
	s.report(PhasePreparing, nil, common.Hash{}, 0, nil)

	baseFee, err := s.chain.GetBaseFee(ctx)
	if err != nil {
		return nil, err
	}
	tip, err := s.chain.GetTipCap(ctx)
	if err != nil {
		return nil, err
	}

	return s.estimator.Estimate(s.config.SizeBytes, FeeObservation{BaseFee: baseFee, TipCap: tip})
}

// mineOne runs a single transaction through submit and confirm, returning
// its terminal phase. Submission and confirmation errors are recorded as a
// failed transaction, never propagated.
func (s *Session) mineOne(ctx context.Context, est *SizeEstimate, nonce uint64) TxPhase {
	payload, err := facet.BuildMinePayload(s.estimator.chainID, est.SizeBytes)
	if err != nil {
		s.failTx(ctx, est, common.Hash{}, nonce, err)
		return PhaseFailed
	}

	if s.config.SubmitRate != nil {
		if err := s.config.SubmitRate.Wait(ctx); err != nil {
			s.failTx(ctx, est, common.Hash{}, nonce, err)
			return PhaseFailed
		}
	}

	baseFee, err := s.chain.GetBaseFee(ctx)
	if err != nil {
		s.failTx(ctx, est, common.Hash{}, nonce, err)
		return PhaseFailed
	}
	tip, err := s.chain.GetTipCap(ctx)
	if err != nil {
		s.failTx(ctx, est, common.Hash{}, nonce, err)
		return PhaseFailed
	}

	// Fee cap rides out one doubling of the base fee.
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	s.report(PhaseSubmitting, est, common.Hash{}, nonce, nil)

	hash, err := s.sender.Submit(ctx, wallet.TxRequest{
		To:     facet.InboxAddress,
		Value:  big.NewInt(0),
		Data:   payload,
		Nonce:  nonce,
		TipCap: tip,
		FeeCap: feeCap,
	})
	if err != nil {
		s.failTx(ctx, est, common.Hash{}, nonce, err)
		return PhaseFailed
	}

	s.totals.TransactionsSubmitted++
	s.report(PhaseConfirming, est, hash, nonce, nil)

	receipt, err := s.sender.WaitForReceipt(ctx, hash, s.config.ReceiptTimeout)
	if err != nil {
		// A receipt-wait timeout is a terminal per-transaction outcome,
		// not a session failure.
		s.failTx(ctx, est, hash, nonce, err)
		return PhaseFailed
	}

	// Gas is paid whether or not execution succeeded, but a reverted
	// transaction mints nothing.
	spent := receipt.Spent()
	s.totals.TotalSpent.Add(s.totals.TotalSpent, spent)
	minted := big.NewInt(0)
	if receipt.Status == 1 {
		minted = est.MintedAmount
	}
	s.totals.TotalMinted.Add(s.totals.TotalMinted, minted)

	s.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"tx_hash":    hash.Hex(),
		"nonce":      nonce,
		"block":      receipt.BlockNumber,
		"status":     receipt.Status,
		"spent":      spent.String(),
		"minted":     minted.String(),
	}).Info("Mine transaction confirmed")

	s.report(PhaseCompleted, est, hash, nonce, nil)
	s.record(ctx, TxRecord{
		Nonce:     nonce,
		Hash:      hash,
		SizeBytes: est.SizeBytes,
		Phase:     PhaseCompleted,
		Spent:     spent,
		Minted:    minted,
	})
	return PhaseCompleted
}

func (s *Session) failTx(ctx context.Context, est *SizeEstimate, hash common.Hash, nonce uint64, cause error) {
	s.totals.TransactionsFailed++
	s.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"nonce":      nonce,
		"tx_hash":    hash.Hex(),
	}).WithError(cause).Warn("Mine transaction failed")

	s.report(PhaseFailed, est, hash, nonce, cause)
	s.record(ctx, TxRecord{
		Nonce:     nonce,
		Hash:      hash,
		SizeBytes: est.SizeBytes,
		Phase:     PhaseFailed,
		Spent:     big.NewInt(0),
		Minted:    big.NewInt(0),
	})
}
