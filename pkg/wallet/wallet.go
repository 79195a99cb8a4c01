// Package wallet provides the L1 wallet used by the miner: chain-state
// reads, EIP-1559 transaction submission with explicit nonces, and receipt
// confirmation waits.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Config holds the connection and safety parameters for the wallet client.
type Config struct {
	// RPCURL is the HTTP(S) endpoint of the L1 node
	RPCURL string

	// ChainID is the L1 chain the wallet signs for
	ChainID int64

	// MaxRetries specifies how many times to retry the initial dial
	MaxRetries int

	// RetryDelay is the duration to wait between dial attempts
	RetryDelay time.Duration

	// GasLimitMultiplier adds a safety buffer to estimated gas limits.
	// For example, 1.2 adds 20% to the estimate.
	GasLimitMultiplier float64
}

// DefaultConfig returns conservative connection settings.
func DefaultConfig(rpcURL string, chainID int64) Config {
	return Config{
		RPCURL:             rpcURL,
		ChainID:            chainID,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		GasLimitMultiplier: 1.2,
	}
}

// Client wraps an ethclient connection together with the signing key.
// It implements the chain-read and transaction-submission collaborators
// the mining controller and canceller depend on.
type Client struct {
	eth        *ethclient.Client
	config     Config
	keyManager *KeyManager
	log        *logrus.Logger
}

// NewClient dials the configured RPC endpoint and initializes the key
// manager from a hex-encoded private key.
func NewClient(ctx context.Context, log *logrus.Logger, config Config, privateKey string) (*Client, error) {
	keyManager, err := NewKeyManager(privateKey)
	if err != nil {
		return nil, NewWalletError(ErrCodeInvalidPrivateKey, "failed to initialize key manager", err)
	}

	client := &Client{
		config:     config,
		keyManager: keyManager,
		log:        log,
	}

	client.eth, err = client.dialWithRetry(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to connect to node", err)
	}

	return client, nil
}

// Address returns the wallet's account address.
func (c *Client) Address() common.Address {
	return c.keyManager.GetAddress()
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() int64 {
	return c.config.ChainID
}

// GetBalance retrieves the wallet's balance in wei at the latest block.
func (c *Client) GetBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.keyManager.GetAddress(), nil)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get balance", err)
	}

	c.log.WithFields(logrus.Fields{
		"address": c.keyManager.GetAddress().Hex(),
		"balance": balance.String(),
	}).Debug("Retrieved balance")

	return balance, nil
}

// GetBaseFee returns the latest block's base fee per gas.
func (c *Client) GetBaseFee(ctx context.Context) (*big.Int, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get latest header", err)
	}
	if header.BaseFee == nil {
		return nil, NewWalletError(ErrCodeRPCError, "node returned header without base fee", nil)
	}
	return new(big.Int).Set(header.BaseFee), nil
}

// GetGasPrice returns the node's suggested legacy gas price.
func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get gas price", err)
	}
	return price, nil
}

// GetTipCap returns the node's suggested priority fee.
func (c *Client) GetTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, NewWalletError(ErrCodeRPCError, "failed to get tip cap", err)
	}
	return tip, nil
}

// GetConfirmedNonce returns the account nonce at the latest block: the next
// nonce whose transaction is not yet confirmed.
func (c *Client) GetConfirmedNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.eth.NonceAt(ctx, c.keyManager.GetAddress(), nil)
	if err != nil {
		return 0, NewWalletError(ErrCodeRPCError, "failed to get confirmed nonce", err)
	}
	return nonce, nil
}

// GetPendingNonce returns the account nonce including mempool transactions.
func (c *Client) GetPendingNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.keyManager.GetAddress())
	if err != nil {
		return 0, NewWalletError(ErrCodeRPCError, "failed to get pending nonce", err)
	}
	return nonce, nil
}

// dialWithRetry attempts to connect to the node, retrying failed attempts
// per the client configuration.
func (c *Client) dialWithRetry(ctx context.Context) (*ethclient.Client, error) {
	var client *ethclient.Client
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		client, err = ethclient.DialContext(ctx, c.config.RPCURL)
		if err == nil {
			return client, nil
		}

		if i < c.config.MaxRetries {
			c.log.WithFields(logrus.Fields{
				"attempt": i + 1,
				"error":   err,
			}).Debug("Retrying node connection")

			time.Sleep(c.config.RetryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", c.config.MaxRetries, err)
}

// Close closes the node connection.
func (c *Client) Close() {
	c.eth.Close()
	c.log.Debug("Closed node connection")
}
