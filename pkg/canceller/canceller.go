// Package canceller replaces stuck pending transactions by resubmitting a
// zero-value self-transfer at the same nonce with escalating fees until the
// nonce slot is resolved, a terminal condition is recognized, or the retry
// ceiling is hit.
package canceller

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xueshanjianke/fct-miner/pkg/miner"
	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

// Outcome is the terminal result of processing one nonce.
type Outcome string

const (
	// OutcomeConfirmed means a replacement transaction got a receipt.
	// Execution status does not matter: the nonce slot is resolved.
	OutcomeConfirmed Outcome = "confirmed"

	// OutcomeAlreadyResolved means the nonce was consumed by another
	// transaction before or during cancellation.
	OutcomeAlreadyResolved Outcome = "already_resolved"

	// OutcomeFailed means an unclassified broadcast error ended the nonce.
	OutcomeFailed Outcome = "failed"

	// OutcomeAbandoned means the retry ceiling was exhausted.
	OutcomeAbandoned Outcome = "abandoned"
)

// Config parameterizes the cancellation sweep.
type Config struct {
	// MaxAttempts is the retry ceiling per nonce
	MaxAttempts int

	// FeeBumpMultiplier scales both fee parameters on each underpriced
	// retry. Must exceed 1.0.
	FeeBumpMultiplier float64

	// ReceiptTimeout bounds each confirmation wait
	ReceiptTimeout time.Duration

	// RetryDelay is the pause before an underpriced retry
	RetryDelay time.Duration

	// NonceRate paces submissions across nonces so the sweep does not
	// flood the endpoint
	NonceRate *rate.Limiter
}

// DefaultConfig returns the standard sweep parameters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       8,
		FeeBumpMultiplier: 1.25,
		ReceiptTimeout:    2 * time.Minute,
		RetryDelay:        3 * time.Second,
		NonceRate:         rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Result is the report for one nonce in the swept range.
type Result struct {
	Nonce    uint64
	Outcome  Outcome
	Attempts int
	TxHash   common.Hash
	TipFee   *big.Int
	MaxFee   *big.Int
	Err      error
}

// Canceller sweeps a nonce range, resolving each nonce fully before the
// next begins.
type Canceller struct {
	chain  miner.ChainReader
	sender miner.TxSender
	self   common.Address
	config Config
	log    *logrus.Logger
}

// New creates a canceller that replaces transactions with self-transfers
// from and to the given address.
func New(chain miner.ChainReader, sender miner.TxSender, self common.Address, config Config, log *logrus.Logger) *Canceller {
	return &Canceller{
		chain:  chain,
		sender: sender,
		self:   self,
		config: config,
		log:    log,
	}
}

// CancelRange processes nonces [from, to] in ascending order. Nonces
// already below the chain's confirmed nonce are reported as resolved
// without any submission. Per-nonce failures and abandonments never abort
// the sweep; only chain-read errors and context cancellation do.
func (c *Canceller) CancelRange(ctx context.Context, from, to uint64) ([]Result, error) {
	confirmed, err := c.chain.GetConfirmedNonce(ctx)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"from":            from,
		"to":              to,
		"confirmed_nonce": confirmed,
	}).Info("Starting cancellation sweep")

	var results []Result
	for nonce := from; nonce <= to; nonce++ {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		if nonce < confirmed {
			c.log.WithField("nonce", nonce).Debug("Nonce already confirmed, skipping")
			results = append(results, Result{Nonce: nonce, Outcome: OutcomeAlreadyResolved})
			continue
		}

		if c.config.NonceRate != nil {
			if err := c.config.NonceRate.Wait(ctx); err != nil {
				return results, err
			}
		}

		result := c.cancelNonce(ctx, nonce)
		results = append(results, result)

		c.log.WithFields(logrus.Fields{
			"nonce":    result.Nonce,
			"outcome":  result.Outcome,
			"attempts": result.Attempts,
			"tx_hash":  result.TxHash.Hex(),
		}).Info("Nonce cancellation finished")
	}

	return results, nil
}

// cancelNonce runs the fee-escalation state machine for one nonce. The fee
// ladder is non-decreasing across attempts: both parameters are bumped by
// the configured multiplier on every underpriced classification and never
// lowered.
func (c *Canceller) cancelNonce(ctx context.Context, nonce uint64) Result {
	tip, maxFee, err := c.initialFees(ctx)
	if err != nil {
		return Result{Nonce: nonce, Outcome: OutcomeFailed, Err: err}
	}

	result := Result{Nonce: nonce}
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		result.TipFee = new(big.Int).Set(tip)
		result.MaxFee = new(big.Int).Set(maxFee)

		c.log.WithFields(logrus.Fields{
			"nonce":   nonce,
			"attempt": attempt,
			"tip_fee": tip.String(),
			"max_fee": maxFee.String(),
		}).Debug("Submitting replacement transaction")

		hash, err := c.sender.Submit(ctx, wallet.TxRequest{
			To:       c.self,
			Value:    big.NewInt(0),
			Nonce:    nonce,
			TipCap:   tip,
			FeeCap:   maxFee,
			GasLimit: 21000,
		})

		switch wallet.ClassifySendError(err) {
		case wallet.SendErrNone:
			result.TxHash = hash
			_, waitErr := c.sender.WaitForReceipt(ctx, hash, c.config.ReceiptTimeout)
			if waitErr != nil {
				// No receipt in time: escalate and try again. The old
				// replacement may still land, in which case a later
				// attempt classifies as nonce-too-low.
				c.bump(&tip, &maxFee)
				if sleepErr := c.sleep(ctx); sleepErr != nil {
					result.Outcome = OutcomeAbandoned
					result.Err = sleepErr
					return result
				}
				continue
			}
			// Receipt means the slot is resolved regardless of status.
			result.Outcome = OutcomeConfirmed
			return result

		case wallet.SendErrNonceTooLow, wallet.SendErrAlreadyKnown:
			result.Outcome = OutcomeAlreadyResolved
			return result

		case wallet.SendErrUnderpriced:
			c.bump(&tip, &maxFee)
			if sleepErr := c.sleep(ctx); sleepErr != nil {
				result.Outcome = OutcomeAbandoned
				result.Err = sleepErr
				return result
			}

		default:
			result.Outcome = OutcomeFailed
			result.Err = err
			return result
		}
	}

	result.Outcome = OutcomeAbandoned
	return result
}

// initialFees seeds the fee ladder from current market conditions.
func (c *Canceller) initialFees(ctx context.Context) (tip, maxFee *big.Int, err error) {
	tip, err = c.chain.GetTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	baseFee, err := c.chain.GetBaseFee(ctx)
	if err != nil {
		return nil, nil, err
	}
	maxFee = new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return tip, maxFee, nil
}

// bump raises both fee parameters by the configured multiplier, rounding up
// so the ladder strictly increases even for tiny fees.
func (c *Canceller) bump(tip, maxFee **big.Int) {
	*tip = scaleUp(*tip, c.config.FeeBumpMultiplier)
	*maxFee = scaleUp(*maxFee, c.config.FeeBumpMultiplier)
}

func scaleUp(v *big.Int, factor float64) *big.Int {
	scaled, _ := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(factor)).Int(nil)
	if scaled.Cmp(v) <= 0 {
		scaled = new(big.Int).Add(v, big.NewInt(1))
	}
	return scaled
}

func (c *Canceller) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.config.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
