package miner

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

// AutoConfig parameterizes the unattended outer cycle.
type AutoConfig struct {
	// Loop keeps cycling with cooldowns; false runs exactly one cycle
	Loop bool

	// CheckInterval is the cooldown between gated-out cycles
	CheckInterval time.Duration

	// Gates are the hard preconditions for starting a session
	Gates GateConfig

	// Sizes is the adaptive payload size range
	Sizes SizeRange

	// SpendMode and PlanOptions derive each session's budget
	SpendMode   SpendMode
	PlanOptions PlanOptions

	// StopOnFailure is passed through to each session
	StopOnFailure bool

	// ReceiptTimeout bounds each confirmation wait
	ReceiptTimeout time.Duration

	// SubmitRate paces submissions across the whole run
	SubmitRate *rate.Limiter
}

// Controller composes the ranker, gates, planner and session loop into the
// unattended mining cycle.
type Controller struct {
	chain     ChainReader
	sender    TxSender
	estimator *Estimator
	ranker    *Ranker
	reporter  SessionReporter
	recorder  Recorder
	log       *logrus.Logger

	config     AutoConfig
	relaxation RelaxationState
}

// NewController creates the auto controller. reporter and recorder may be
// nil.
func NewController(chain ChainReader, sender TxSender, estimator *Estimator, reporter SessionReporter, recorder Recorder, log *logrus.Logger, config AutoConfig) *Controller {
	return &Controller{
		chain:     chain,
		sender:    sender,
		estimator: estimator,
		ranker:    NewRanker(estimator),
		reporter:  reporter,
		recorder:  recorder,
		log:       log,
		config:    config,
	}
}

// Run executes mining cycles until the context is cancelled or, in
// single-shot mode, one cycle completes regardless of outcome.
func (c *Controller) Run(ctx context.Context) error {
	for {
		ran, err := c.cycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return context.Canceled
			}
			switch {
			case isRetryableCycleErr(err):
				// Unaffordable or degenerate cycles behave like
				// gate failures: relax and retry under the
				// cooldown.
				c.log.WithError(err).Warn("Cycle aborted")
				c.relaxation.Fail()
			case wallet.IsWalletError(err, wallet.ErrCodeRPCError) && c.config.Loop:
				// Transient node failures ride out the cooldown
				// without touching the relaxation streak.
				c.log.WithError(err).Warn("Cycle aborted on RPC error, will retry")
			default:
				return err
			}
			ran = false
		}

		if ran {
			c.relaxation.Reset()
		}

		if !c.config.Loop {
			return nil
		}
		if err := c.cooldown(ctx); err != nil {
			return err
		}
	}
}

// cycle runs one full pass: balance floor, fee ceiling, size selection,
// gate evaluation, budget planning, then the session. Returns whether a
// session actually ran.
func (c *Controller) cycle(ctx context.Context) (bool, error) {
	balance, err := c.chain.GetBalance(ctx)
	if err != nil {
		return false, err
	}
	baseFee, err := c.chain.GetBaseFee(ctx)
	if err != nil {
		return false, err
	}
	tip, err := c.chain.GetTipCap(ctx)
	if err != nil {
		return false, err
	}

	obs := FeeObservation{BaseFee: baseFee, TipCap: tip}
	eff := EffectiveThresholdsFor(c.config.Gates, c.relaxation)

	est, err := c.ranker.PickBest(obs, Constraints{
		MaxCostPerUnit:       eff.MaxCostPerUnit,
		MinEfficiencyPercent: eff.MinEfficiencyPercent,
	}, c.config.Sizes)
	if err != nil {
		return false, err
	}

	gate := EvaluateGates(balance, baseFee, est, c.config.Gates, c.relaxation)
	if !gate.Pass {
		c.log.WithFields(logrus.Fields{
			"reason":        gate.Reason,
			"failed_cycles": c.relaxation.ConsecutiveFailedCycles + 1,
			"relax_factor":  gate.Effective.Factor,
		}).Info("Cycle gated out")
		c.relaxation.Fail()
		return false, nil
	}

	spendCap, err := PlanSpendCap(c.config.SpendMode, balance, est.EstimatedCost, c.config.PlanOptions)
	if err != nil {
		return false, err
	}

	c.log.WithFields(logrus.Fields{
		"size_kb":    est.SizeBytes / 1024,
		"cost_per":   est.CostPerUnit,
		"efficiency": est.EfficiencyPercent,
		"spend_cap":  spendCap.String(),
		"base_fee":   baseFee.String(),
	}).Info("Cycle passed gates, starting session")

	session := NewSession(c.chain, c.sender, c.estimator, c.reporter, c.recorder, c.log, SessionConfig{
		SpendCap:       spendCap,
		SizeBytes:      est.SizeBytes,
		StopOnFailure:  c.config.StopOnFailure,
		ReceiptTimeout: c.config.ReceiptTimeout,
		SubmitRate:     c.config.SubmitRate,
	})

	if _, err := session.Run(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// isRetryableCycleErr reports whether a cycle error means "nothing worth
// mining right now" rather than a hard failure.
func isRetryableCycleErr(err error) bool {
	var insufficient *InsufficientBalanceError
	return errors.As(err, &insufficient) || errors.Is(err, ErrNoCandidate)
}

// cooldown sleeps the check interval, honoring cancellation.
func (c *Controller) cooldown(ctx context.Context) error {
	timer := time.NewTimer(c.config.CheckInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
