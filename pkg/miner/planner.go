package miner

import (
	"fmt"
	"math/big"
)

// SpendMode selects how a session's budget is derived.
type SpendMode string

const (
	// SpendModeAll budgets the entire balance less a safety buffer.
	SpendModeAll SpendMode = "all"

	// SpendModeCap budgets a fixed amount or a target transaction count.
	SpendModeCap SpendMode = "cap"
)

// PlanOptions carries the cap-mode parameters.
type PlanOptions struct {
	// CapAmount is the explicit budget in wei. Nil selects target-count
	// derivation.
	CapAmount *big.Int

	// TargetTxCount is how many transactions the budget should cover when
	// no explicit amount is set.
	TargetTxCount int
}

// minViableBudget is the smallest useful cap: one transaction at the
// current estimate plus a 10% buffer against fee drift between estimate
// and submission. Rounded up.
func minViableBudget(perTxEstimate *big.Int) *big.Int {
	buffered := new(big.Int).Mul(perTxEstimate, big.NewInt(11))
	buffered.Add(buffered, big.NewInt(9))
	return buffered.Div(buffered, big.NewInt(10))
}

// PlanSpendCap resolves the configured spend mode into a concrete wei
// budget. It fails with InsufficientBalanceError when the wallet cannot
// fund even one buffered transaction, and always returns a cap within
// [0, balance].
func PlanSpendCap(mode SpendMode, balance, perTxEstimate *big.Int, opts PlanOptions) (*big.Int, error) {
	minViable := minViableBudget(perTxEstimate)
	if balance.Cmp(minViable) < 0 {
		return nil, &InsufficientBalanceError{Balance: new(big.Int).Set(balance), Required: minViable}
	}

	// 1% of the live balance stays reserved against the final
	// transaction's fee drift.
	buffer := new(big.Int).Div(balance, big.NewInt(100))
	reserved := new(big.Int).Sub(balance, buffer)

	switch mode {
	case SpendModeAll:
		if balance.Cmp(buffer) <= 0 {
			return new(big.Int).Set(balance), nil
		}
		return reserved, nil

	case SpendModeCap:
		var resolved *big.Int
		switch {
		case opts.CapAmount != nil:
			if opts.CapAmount.Cmp(balance) > 0 {
				return nil, &InsufficientBalanceError{Balance: new(big.Int).Set(balance), Required: new(big.Int).Set(opts.CapAmount)}
			}
			resolved = new(big.Int).Set(opts.CapAmount)
		case opts.TargetTxCount > 0:
			resolved = new(big.Int).Mul(minViable, big.NewInt(int64(opts.TargetTxCount)))
		default:
			return nil, fmt.Errorf("spend mode %q requires a cap amount or target transaction count", mode)
		}

		if resolved.Cmp(minViable) < 0 {
			resolved = new(big.Int).Set(minViable)
		}
		if resolved.Cmp(reserved) > 0 {
			resolved = new(big.Int).Set(reserved)
		}
		return resolved, nil

	default:
		return nil, fmt.Errorf("unknown spend mode %q", mode)
	}
}
