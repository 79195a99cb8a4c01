package miner

import (
	"math"
	"math/big"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
)

// FeeObservation is a snapshot of the fee market taken immediately before
// an estimate. Estimates are never cached across cycles because these
// inputs drift.
type FeeObservation struct {
	// BaseFee is the latest block's base fee per gas in wei
	BaseFee *big.Int

	// TipCap is the suggested priority fee per gas in wei
	TipCap *big.Int

	// GasPrice is the suggested legacy gas price, used when the EIP-1559
	// fields are absent
	GasPrice *big.Int
}

// EffectiveGasPrice returns the per-gas price an estimate should assume:
// base fee plus tip when available, otherwise the legacy gas price.
func (o FeeObservation) EffectiveGasPrice() *big.Int {
	if o.BaseFee != nil {
		price := new(big.Int).Set(o.BaseFee)
		if o.TipCap != nil {
			price.Add(price, o.TipCap)
		}
		return price
	}
	if o.GasPrice != nil {
		return new(big.Int).Set(o.GasPrice)
	}
	return big.NewInt(0)
}

// SizeEstimate is the evaluation of one candidate payload size against a
// fee observation. Immutable once computed.
type SizeEstimate struct {
	// SizeBytes is the total payload size evaluated
	SizeBytes int

	// EstimatedGas is the projected total gas burn
	EstimatedGas uint64

	// EstimatedCost is the projected fee spend in wei
	EstimatedCost *big.Int

	// MintedAmount is the projected FCT minted in FCT wei
	MintedAmount *big.Int

	// CostPerUnit is the wei spent per FCT wei minted. Infinite when
	// nothing is minted.
	CostPerUnit float64

	// EfficiencyPercent is the share of gas spent on payload rather than
	// fixed execution overhead, in [0, 100).
	EfficiencyPercent float64
}

// Estimator computes SizeEstimates. Pure apart from the fee observation the
// caller already performed.
type Estimator struct {
	chainID int64
}

// NewEstimator creates an estimator minting against the given Facet chain.
func NewEstimator(facetChainID int64) *Estimator {
	return &Estimator{chainID: facetChainID}
}

// Estimate evaluates one payload size against a fee observation. Fails with
// InvalidSizeError when the size leaves no room beyond protocol framing.
func (e *Estimator) Estimate(sizeBytes int, obs FeeObservation) (*SizeEstimate, error) {
	if sizeBytes <= facet.TxOverheadBytes {
		return nil, &InvalidSizeError{SizeBytes: sizeBytes, Overhead: facet.TxOverheadBytes}
	}

	calldataGas := facet.CalldataGasForSize(sizeBytes)
	estimatedGas := facet.TxBaseGas + calldataGas

	price := obs.EffectiveGasPrice()
	estimatedCost := new(big.Int).Mul(price, new(big.Int).SetUint64(estimatedGas))

	minted := facet.MintedAmount(e.chainID, calldataGas)

	costPerUnit := math.Inf(1)
	if minted.Sign() > 0 {
		cost, _ := new(big.Float).SetInt(estimatedCost).Float64()
		mintedF, _ := new(big.Float).SetInt(minted).Float64()
		costPerUnit = cost / mintedF
	}

	efficiency := float64(estimatedGas-facet.TxBaseGas) / float64(estimatedGas) * 100

	return &SizeEstimate{
		SizeBytes:         sizeBytes,
		EstimatedGas:      estimatedGas,
		EstimatedCost:     estimatedCost,
		MintedAmount:      minted,
		CostPerUnit:       costPerUnit,
		EfficiencyPercent: efficiency,
	}, nil
}
