package miner

import (
	"fmt"
	"math/big"
)

// GateConfig holds the hard preconditions a cycle must clear before a
// session starts. A nil or zero threshold disables that gate, and a
// disabled gate can never block the loop.
type GateConfig struct {
	// MinBalance is the wallet balance floor in wei
	MinBalance *big.Int

	// MaxBaseFee is the acceptable base fee ceiling in wei
	MaxBaseFee *big.Int

	// MinEfficiencyPercent floors the selected estimate's efficiency
	MinEfficiencyPercent float64

	// MaxCostPerUnit caps the selected estimate's wei-per-FCT-wei ratio
	MaxCostPerUnit float64

	// RelaxAfterCycles is how many consecutive gated-out cycles pass
	// before thresholds start relaxing
	RelaxAfterCycles int

	// RelaxStepPercent is the per-cycle relaxation step once triggered
	RelaxStepPercent float64
}

// RelaxationState counts consecutive gated-out cycles. It resets the moment
// a cycle proceeds to submission.
type RelaxationState struct {
	ConsecutiveFailedCycles int
}

// Fail records a gated-out cycle.
func (s *RelaxationState) Fail() {
	s.ConsecutiveFailedCycles++
}

// Reset clears the failure streak.
func (s *RelaxationState) Reset() {
	s.ConsecutiveFailedCycles = 0
}

// EffectiveThresholds are the thresholds actually applied this cycle after
// relaxation: maximum-type thresholds loosened, minimum-type thresholds
// tightened toward zero by the same factor.
type EffectiveThresholds struct {
	MinBalance           *big.Int
	MaxBaseFee           *big.Int
	MinEfficiencyPercent float64
	MaxCostPerUnit       float64
	Factor               float64
}

// GateResult is the outcome of one gate evaluation.
type GateResult struct {
	Pass      bool
	Reason    string
	Effective EffectiveThresholds
}

// relaxationFactor returns the multiplier applied to maximum-type
// thresholds for the given failure streak. Monotonically non-decreasing in
// the streak; 1.0 until the streak reaches the trigger count.
func relaxationFactor(config GateConfig, state RelaxationState) float64 {
	if config.RelaxAfterCycles <= 0 || config.RelaxStepPercent <= 0 {
		return 1.0
	}
	if state.ConsecutiveFailedCycles < config.RelaxAfterCycles {
		return 1.0
	}
	cyclesOver := state.ConsecutiveFailedCycles - config.RelaxAfterCycles + 1
	return 1.0 + float64(cyclesOver)*config.RelaxStepPercent/100
}

// EffectiveThresholdsFor computes this cycle's thresholds under the current
// relaxation state. The efficiency floor and the cost ceiling share one
// factor: the ceiling is multiplied and the floor divided by the same value.
func EffectiveThresholdsFor(config GateConfig, state RelaxationState) EffectiveThresholds {
	factor := relaxationFactor(config, state)
	eff := EffectiveThresholds{
		MinEfficiencyPercent: config.MinEfficiencyPercent,
		MaxCostPerUnit:       config.MaxCostPerUnit,
		Factor:               factor,
	}

	if config.MinBalance != nil {
		eff.MinBalance = new(big.Int).Set(config.MinBalance)
	}
	if config.MaxBaseFee != nil {
		eff.MaxBaseFee = new(big.Int).Set(config.MaxBaseFee)
	}

	if factor == 1.0 {
		return eff
	}

	if eff.MaxBaseFee != nil {
		eff.MaxBaseFee = scaleBig(eff.MaxBaseFee, factor)
	}
	if eff.MinBalance != nil {
		eff.MinBalance = scaleBig(eff.MinBalance, 1/factor)
	}
	if eff.MaxCostPerUnit > 0 {
		eff.MaxCostPerUnit *= factor
	}
	if eff.MinEfficiencyPercent > 0 {
		eff.MinEfficiencyPercent /= factor
	}
	return eff
}

// scaleBig multiplies a wei amount by a float factor, truncating toward zero.
func scaleBig(v *big.Int, factor float64) *big.Int {
	scaled, _ := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(factor)).Int(nil)
	if scaled.Sign() < 0 {
		return big.NewInt(0)
	}
	return scaled
}

// EvaluateGates checks each configured threshold in order against the
// current observation and chosen estimate. The first failing threshold
// short-circuits the rest of the cycle.
func EvaluateGates(balance, baseFee *big.Int, est *SizeEstimate, config GateConfig, state RelaxationState) GateResult {
	eff := EffectiveThresholdsFor(config, state)
	result := GateResult{Effective: eff}

	if eff.MinBalance != nil && balance.Cmp(eff.MinBalance) < 0 {
		result.Reason = fmt.Sprintf("balance %s wei below floor %s wei", balance, eff.MinBalance)
		return result
	}
	if eff.MaxBaseFee != nil && baseFee != nil && baseFee.Cmp(eff.MaxBaseFee) > 0 {
		result.Reason = fmt.Sprintf("base fee %s wei above ceiling %s wei", baseFee, eff.MaxBaseFee)
		return result
	}
	if eff.MinEfficiencyPercent > 0 && est.EfficiencyPercent < eff.MinEfficiencyPercent {
		result.Reason = fmt.Sprintf("efficiency %.2f%% below floor %.2f%%", est.EfficiencyPercent, eff.MinEfficiencyPercent)
		return result
	}
	if eff.MaxCostPerUnit > 0 && est.CostPerUnit > eff.MaxCostPerUnit {
		result.Reason = fmt.Sprintf("cost per FCT %.6f above ceiling %.6f", est.CostPerUnit, eff.MaxCostPerUnit)
		return result
	}

	result.Pass = true
	return result
}
