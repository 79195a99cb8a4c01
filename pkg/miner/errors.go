package miner

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrNoCandidate is returned by the ranker when the configured size range
// produces no candidates at all.
var ErrNoCandidate = errors.New("no candidate sizes in configured range")

// InvalidSizeError reports a payload size that does not exceed the fixed
// protocol overhead, leaving no room for boost bytes.
type InvalidSizeError struct {
	SizeBytes int
	Overhead  int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("payload size %d bytes does not exceed protocol overhead of %d bytes", e.SizeBytes, e.Overhead)
}

// InsufficientBalanceError reports a wallet that cannot fund even the
// minimum viable budget for one transaction.
type InsufficientBalanceError struct {
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("balance %s wei below minimum viable budget %s wei", e.Balance, e.Required)
}
