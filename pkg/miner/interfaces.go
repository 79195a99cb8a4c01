// Package miner implements the adaptive mining controller: cost estimation
// per payload size, candidate ranking, precondition gates with time-based
// relaxation, spend-cap planning, and the session loop that submits mine
// transactions until the budget is exhausted.
package miner

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

// ChainReader exposes the chain-state reads the controller depends on.
// "Latest" and "pending" views are distinct where the controller needs both.
type ChainReader interface {
	GetBalance(ctx context.Context) (*big.Int, error)
	GetBaseFee(ctx context.Context) (*big.Int, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	GetTipCap(ctx context.Context) (*big.Int, error)
	GetConfirmedNonce(ctx context.Context) (uint64, error)
	GetPendingNonce(ctx context.Context) (uint64, error)
}

// TxSender broadcasts transactions and waits for their receipts.
type TxSender interface {
	Submit(ctx context.Context, req wallet.TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*wallet.TxReceiptStatus, error)
}

// PriceFeed supplies the ETH/USD price for display valuations. It never
// fails; implementations fall back to a documented constant.
type PriceFeed interface {
	GetAssetPriceUSD(ctx context.Context) float64
}

// SessionReporter receives a session update after every per-transaction state
// transition. Purely observational: nothing it returns feeds back into the
// loop.
type SessionReporter interface {
	SessionUpdate(update SessionUpdate)
}

// Recorder persists session and transaction outcomes. Implementations must
// be best-effort; the loop ignores recording failures.
type Recorder interface {
	RecordSessionStart(ctx context.Context, sessionID string, spendCap *big.Int, sizeBytes int) error
	RecordSessionEnd(ctx context.Context, sessionID string, totals SessionTotals) error
	RecordTransaction(ctx context.Context, sessionID string, tx TxRecord) error
}

// TxRecord is one transaction outcome handed to the Recorder.
type TxRecord struct {
	Nonce     uint64
	Hash      common.Hash
	SizeBytes int
	Phase     TxPhase
	Spent     *big.Int
	Minted    *big.Int
}
