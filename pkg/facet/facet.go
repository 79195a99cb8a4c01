// Package facet owns the protocol-defined constants and formulas for Facet
// mining: calldata gas accounting, the FCT mint rate, and the mine-boost
// payload format. The rest of the repository treats this package as an
// opaque oracle and never reimplements its math.
package facet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Facet chain identifiers.
const (
	// MainnetChainID is the Facet mainnet chain ID.
	MainnetChainID int64 = 0xface7

	// SepoliaChainID is the Facet Sepolia testnet chain ID.
	SepoliaChainID int64 = 0xface7a
)

// Calldata gas accounting, per the L1 execution rules the protocol meters
// mint against.
const (
	// CalldataZeroByteGas is the gas charged per zero calldata byte.
	CalldataZeroByteGas uint64 = 4

	// CalldataNonZeroByteGas is the gas charged per non-zero calldata byte.
	CalldataNonZeroByteGas uint64 = 16

	// TxBaseGas is the intrinsic gas of any L1 transaction.
	TxBaseGas uint64 = 21000

	// TxOverheadBytes is the fixed protocol framing at the front of every
	// mine payload: the RLP envelope, to/value/data fields and the mint
	// marker. Payload sizes at or below this carry no boost bytes at all.
	TxOverheadBytes = 160
)

// InboxAddress is the L1 address mine transactions are sent to.
var InboxAddress = common.HexToAddress("0x00000000000000000000000000000000000FacE7")

// mintRates maps chain ID to FCT minted (in FCT wei) per unit of calldata
// gas burned. Rates are protocol constants for the current issuance period.
var mintRates = map[int64]*big.Int{
	MainnetChainID: big.NewInt(800_000_000_000), // 8e11 FCT-wei per calldata gas
	SepoliaChainID: big.NewInt(1_000_000_000_000),
}

// CalldataGasCost returns the L1 calldata gas consumed by data.
func CalldataGasCost(data []byte) uint64 {
	var gas uint64
	for _, b := range data {
		if b == 0 {
			gas += CalldataZeroByteGas
		} else {
			gas += CalldataNonZeroByteGas
		}
	}
	return gas
}

// CalldataGasForSize returns the calldata gas a mine payload of the given
// byte size consumes. Mine payloads carry only non-zero bytes, so every
// byte meters at the non-zero rate.
func CalldataGasForSize(sizeBytes int) uint64 {
	if sizeBytes <= 0 {
		return 0
	}
	return uint64(sizeBytes) * CalldataNonZeroByteGas
}

// MintRate returns the FCT-wei minted per calldata gas unit on the given
// chain. Unknown chains mint nothing.
func MintRate(chainID int64) *big.Int {
	if rate, ok := mintRates[chainID]; ok {
		return new(big.Int).Set(rate)
	}
	return big.NewInt(0)
}

// MintedAmount returns the FCT-wei minted by burning calldataGas on chainID.
func MintedAmount(chainID int64, calldataGas uint64) *big.Int {
	amount := new(big.Int).SetUint64(calldataGas)
	return amount.Mul(amount, MintRate(chainID))
}
