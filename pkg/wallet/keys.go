// Package wallet provides the L1 wallet used by the miner: chain-state
// reads, EIP-1559 transaction submission with explicit nonces, and receipt
// confirmation waits.
package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyManager holds the signing key and its derived address.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey // The wallet's private key
	address    common.Address    // The derived Ethereum address
}

// NewKeyManager creates a key manager from a hex-encoded private key string,
// with or without a 0x prefix.
func NewKeyManager(privateKeyHex string) (*KeyManager, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	// Remove "0x" prefix if present
	if len(privateKeyHex) > 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey := privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	address := crypto.PubkeyToAddress(*publicKeyECDSA)

	return &KeyManager{
		privateKey: privateKey,
		address:    address,
	}, nil
}

// GetAddress returns the Ethereum address associated with this key manager.
func (km *KeyManager) GetAddress() common.Address {
	return km.address
}
