// Package wallet provides the L1 wallet used by the miner: chain-state
// reads, EIP-1559 transaction submission with explicit nonces, and receipt
// confirmation waits.
package wallet

import (
	"fmt"
	"strings"
)

// Error codes for wallet operations
const (
	// ErrCodeInvalidPrivateKey indicates an invalid or malformed private key
	ErrCodeInvalidPrivateKey = "INVALID_PRIVATE_KEY"
	// ErrCodeTransactionFailed indicates a transaction failed to broadcast
	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	// ErrCodeGasEstimationFailed indicates gas estimation failed
	ErrCodeGasEstimationFailed = "GAS_ESTIMATION_FAILED"
	// ErrCodeInsufficientFunds indicates insufficient balance for transaction
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	// ErrCodeRPCError indicates an RPC connection or call failed
	ErrCodeRPCError = "RPC_ERROR"
	// ErrCodeTimeout indicates an operation timed out
	ErrCodeTimeout = "TIMEOUT"
)

// WalletError represents a wallet-specific error with an error code
// identifying the failure class.
type WalletError struct {
	Code    string // Error code identifying the type of error
	Message string // Human readable error message
	Err     error  // Underlying error if any
}

// Error implements the error interface for WalletError.
func (e *WalletError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *WalletError) Unwrap() error {
	return e.Err
}

// NewWalletError creates a new WalletError.
func NewWalletError(code string, message string, err error) *WalletError {
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsWalletError checks if an error is a WalletError with the given code.
func IsWalletError(err error, code string) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*WalletError); ok {
		return e.Code == code
	}
	return false
}

// SendErrKind classifies a broadcast failure into the closed set the retry
// policies dispatch on. Callers match on the kind, never on error text.
type SendErrKind int

const (
	// SendErrNone indicates the broadcast succeeded.
	SendErrNone SendErrKind = iota

	// SendErrNonceTooLow indicates the nonce is already consumed by a
	// confirmed transaction.
	SendErrNonceTooLow

	// SendErrAlreadyKnown indicates the identical transaction is already
	// in the mempool.
	SendErrAlreadyKnown

	// SendErrUnderpriced indicates the fee is below what the mempool or
	// fee market currently requires.
	SendErrUnderpriced

	// SendErrOther is any broadcast failure outside the known set.
	SendErrOther
)

// String returns the kind name for logging.
func (k SendErrKind) String() string {
	switch k {
	case SendErrNone:
		return "none"
	case SendErrNonceTooLow:
		return "nonce_too_low"
	case SendErrAlreadyKnown:
		return "already_known"
	case SendErrUnderpriced:
		return "underpriced"
	default:
		return "other"
	}
}

// ClassifySendError maps a broadcast error onto a SendErrKind. This is the
// only place node error text is inspected; everything downstream works with
// the structured kind.
func ClassifySendError(err error) SendErrKind {
	if err == nil {
		return SendErrNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"):
		return SendErrNonceTooLow
	case strings.Contains(msg, "already known"), strings.Contains(msg, "known transaction"):
		return SendErrAlreadyKnown
	case strings.Contains(msg, "underpriced"),
		strings.Contains(msg, "tip too low"),
		strings.Contains(msg, "base fee"),
		strings.Contains(msg, "fee cap less than"):
		return SendErrUnderpriced
	default:
		return SendErrOther
	}
}
