// Package wallet provides the L1 wallet used by the miner: chain-state
// reads, EIP-1559 transaction submission with explicit nonces, and receipt
// confirmation waits.
package wallet

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TxRequest describes one transaction to broadcast. The nonce and both fee
// parameters are always explicit; the wallet never fills them in, so the
// caller's fee ladder and nonce accounting stay authoritative.
type TxRequest struct {
	// To is the recipient address
	To common.Address

	// Value is the amount of ETH to send in wei
	Value *big.Int

	// Data is the calldata payload
	Data []byte

	// Nonce is the explicit account nonce for this transaction
	Nonce uint64

	// TipCap is the max priority fee per gas in wei
	TipCap *big.Int

	// FeeCap is the max fee per gas in wei
	FeeCap *big.Int

	// GasLimit caps execution gas. Zero means estimate against the node
	// and apply the configured multiplier.
	GasLimit uint64
}

// TxReceiptStatus is the confirmed outcome of a broadcast transaction.
type TxReceiptStatus struct {
	// Hash is the transaction hash
	Hash common.Hash

	// Status is execution success (1) or revert (0)
	Status uint64

	// BlockNumber is the block the transaction was included in
	BlockNumber *big.Int

	// GasUsed is the gas actually consumed
	GasUsed uint64

	// EffectiveGasPrice is the per-gas price actually paid
	EffectiveGasPrice *big.Int

	// Timestamp records when the receipt was observed
	Timestamp time.Time
}

// Spent returns the total wei paid for the transaction's gas.
func (s *TxReceiptStatus) Spent() *big.Int {
	if s.EffectiveGasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(s.EffectiveGasPrice, new(big.Int).SetUint64(s.GasUsed))
}

// defaultPollInterval is how often WaitForReceipt checks for inclusion.
const defaultPollInterval = 3 * time.Second

// EstimateGas estimates the execution gas for a transaction and applies the
// configured gas limit multiplier.
func (c *Client) EstimateGas(ctx context.Context, to common.Address, data []byte, value *big.Int) (uint64, error) {
	msg := ethereum.CallMsg{
		From:  c.keyManager.GetAddress(),
		To:    &to,
		Data:  data,
		Value: value,
	}

	estimatedGas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, NewWalletError(ErrCodeGasEstimationFailed, "failed to estimate gas", err)
	}

	return uint64(float64(estimatedGas) * c.config.GasLimitMultiplier), nil
}

// Submit signs and broadcasts an EIP-1559 transaction and returns its hash.
// It does not wait for inclusion.
func (c *Client) Submit(ctx context.Context, req TxRequest) (common.Hash, error) {
	gasLimit := req.GasLimit
	if gasLimit == 0 {
		var err error
		gasLimit, err = c.EstimateGas(ctx, req.To, req.Data, req.Value)
		if err != nil {
			return common.Hash{}, err
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(c.config.ChainID),
		Nonce:     req.Nonce,
		GasTipCap: req.TipCap,
		GasFeeCap: req.FeeCap,
		Gas:       gasLimit,
		To:        &req.To,
		Value:     req.Value,
		Data:      req.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(c.config.ChainID)), c.keyManager.privateKey)
	if err != nil {
		return common.Hash{}, NewWalletError(ErrCodeTransactionFailed, "failed to sign transaction", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, NewWalletError(ErrCodeTransactionFailed, "failed to send transaction", err)
	}

	c.log.WithFields(logrus.Fields{
		"tx_hash":   signedTx.Hash().Hex(),
		"nonce":     req.Nonce,
		"tip_cap":   req.TipCap.String(),
		"fee_cap":   req.FeeCap.String(),
		"gas_limit": gasLimit,
		"data_size": len(req.Data),
	}).Debug("Transaction broadcast")

	return signedTx.Hash(), nil
}

// WaitForReceipt polls for the transaction receipt until it appears or the
// timeout elapses. A timeout is returned as a WalletError with
// ErrCodeTimeout so callers can treat it as a terminal per-transaction
// outcome rather than a fatal failure.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*TxReceiptStatus, error) {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, NewWalletError(ErrCodeTimeout, "context cancelled while waiting for receipt", ctx.Err())
		case <-deadline:
			return nil, NewWalletError(ErrCodeTimeout, "timeout waiting for receipt", nil)
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(ctx, hash)
			if err != nil {
				continue // Receipt not found yet
			}

			return &TxReceiptStatus{
				Hash:              hash,
				Status:            receipt.Status,
				BlockNumber:       receipt.BlockNumber,
				GasUsed:           receipt.GasUsed,
				EffectiveGasPrice: receipt.EffectiveGasPrice,
				Timestamp:         time.Now(),
			}, nil
		}
	}
}
