// Package minerconfig loads and validates the miner's environment-driven
// configuration.
package minerconfig

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/xueshanjianke/fct-miner/pkg/facet"
	"github.com/xueshanjianke/fct-miner/pkg/miner"
)

// Config is the full configuration surface of the miner.
type Config struct {
	// Connection
	RPCURL       string
	PrivateKey   string
	L1ChainID    int64
	FacetChainID int64

	// Mode selection
	AutoMode bool
	Loop     bool

	// Sizing
	TargetSizeKB int
	MinSizeKB    int
	MaxSizeKB    int
	SizeStepKB   int

	// Budget
	SpendMode     miner.SpendMode
	SpendCapWei   *big.Int // nil when unset
	TargetTxCount int

	// Gates
	MaxBaseFeeWei        *big.Int // nil disables the fee ceiling
	MaxCostPerFCT        float64  // 0 disables
	MinEfficiencyPercent float64  // 0 disables
	MinBalanceWei        *big.Int // nil disables the balance floor

	// Loop behavior
	CheckInterval    time.Duration
	StopOnFailure    bool
	RelaxAfterCycles int
	RelaxStepPercent float64
	ReceiptTimeout   time.Duration

	// Persistence
	HistoryDBPath string

	Logger *logrus.Logger
}

// New loads configuration from the environment, applying defaults and
// validating. Invalid configuration is fatal to the run per the error
// policy: it is surfaced immediately and never retried.
func New(log *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		RPCURL:       os.Getenv("MINER_RPC_URL"),
		PrivateKey:   os.Getenv("MINER_PRIVATE_KEY"),
		L1ChainID:    envInt64("MINER_L1_CHAIN_ID", 1),
		FacetChainID: envInt64("MINER_FACET_CHAIN_ID", facet.MainnetChainID),

		AutoMode: envBool("MINER_AUTO", false),
		Loop:     envBool("MINER_LOOP", false),

		TargetSizeKB: envInt("MINER_TARGET_SIZE_KB", 100),
		MinSizeKB:    envInt("MINER_MIN_SIZE_KB", 25),
		MaxSizeKB:    envInt("MINER_MAX_SIZE_KB", 100),
		SizeStepKB:   envInt("MINER_SIZE_STEP_KB", 25),

		SpendMode:     miner.SpendMode(getEnvOrDefault("MINER_SPEND_MODE", string(miner.SpendModeCap))),
		SpendCapWei:   envEth("MINER_SPEND_CAP_ETH"),
		TargetTxCount: envInt("MINER_TARGET_TX_COUNT", 0),

		MaxBaseFeeWei:        envGwei("MINER_MAX_BASE_FEE_GWEI"),
		MaxCostPerFCT:        envFloat("MINER_MAX_COST_PER_FCT", 0),
		MinEfficiencyPercent: envFloat("MINER_MIN_EFFICIENCY_PERCENT", 0),
		MinBalanceWei:        envEth("MINER_MIN_BALANCE_ETH"),

		CheckInterval:    time.Duration(envInt("MINER_CHECK_INTERVAL_SECONDS", 60)) * time.Second,
		StopOnFailure:    envBool("MINER_STOP_ON_FAILURE", false),
		RelaxAfterCycles: envInt("MINER_RELAX_AFTER_CYCLES", 3),
		RelaxStepPercent: envFloat("MINER_RELAX_STEP_PERCENT", 10),
		ReceiptTimeout:   time.Duration(envInt("MINER_RECEIPT_TIMEOUT_SECONDS", 300)) * time.Second,

		HistoryDBPath: os.Getenv("MINER_HISTORY_DB"),

		Logger: log,
	}

	log.WithFields(logrus.Fields{
		"rpc_url_set":     config.RPCURL != "",
		"private_key_set": config.PrivateKey != "",
		"auto":            config.AutoMode,
		"loop":            config.Loop,
		"spend_mode":      config.SpendMode,
		"size_range_kb":   fmt.Sprintf("%d-%d/%d", config.MinSizeKB, config.MaxSizeKB, config.SizeStepKB),
	}).Debug("Miner config loaded")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required settings and internal consistency.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("MINER_RPC_URL is required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("MINER_PRIVATE_KEY is required")
	}
	if c.SpendMode != miner.SpendModeAll && c.SpendMode != miner.SpendModeCap {
		return fmt.Errorf("MINER_SPEND_MODE must be %q or %q", miner.SpendModeAll, miner.SpendModeCap)
	}
	if c.SpendMode == miner.SpendModeCap && c.SpendCapWei == nil && c.TargetTxCount <= 0 {
		return fmt.Errorf("spend mode %q requires MINER_SPEND_CAP_ETH or MINER_TARGET_TX_COUNT", c.SpendMode)
	}
	if c.MinSizeKB <= 0 || c.MaxSizeKB < c.MinSizeKB || c.SizeStepKB <= 0 {
		return fmt.Errorf("invalid size range %d-%d step %d", c.MinSizeKB, c.MaxSizeKB, c.SizeStepKB)
	}
	if c.TargetSizeKB <= 0 {
		return fmt.Errorf("MINER_TARGET_SIZE_KB must be positive")
	}
	if c.CheckInterval < time.Second {
		return fmt.Errorf("MINER_CHECK_INTERVAL_SECONDS must be at least 1")
	}
	if c.RelaxStepPercent < 0 {
		return fmt.Errorf("MINER_RELAX_STEP_PERCENT cannot be negative")
	}
	return nil
}

// GateConfig assembles the gate thresholds from the loaded settings.
func (c *Config) GateConfig() miner.GateConfig {
	return miner.GateConfig{
		MinBalance:           c.MinBalanceWei,
		MaxBaseFee:           c.MaxBaseFeeWei,
		MinEfficiencyPercent: c.MinEfficiencyPercent,
		MaxCostPerUnit:       c.MaxCostPerFCT,
		RelaxAfterCycles:     c.RelaxAfterCycles,
		RelaxStepPercent:     c.RelaxStepPercent,
	}
}

// SizeRange assembles the adaptive size bounds.
func (c *Config) SizeRange() miner.SizeRange {
	return miner.SizeRange{MinKB: c.MinSizeKB, MaxKB: c.MaxSizeKB, StepKB: c.SizeStepKB}
}

// PlanOptions assembles the budget derivation options.
func (c *Config) PlanOptions() miner.PlanOptions {
	return miner.PlanOptions{CapAmount: c.SpendCapWei, TargetTxCount: c.TargetTxCount}
}

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func envInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(getEnvOrDefault(key, strconv.FormatInt(def, 10)), 0, 64)
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnvOrDefault(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
	if err != nil {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnvOrDefault(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

// envEth parses a decimal ETH amount into wei. Returns nil when unset.
func envEth(key string) *big.Int {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	eth, ok := new(big.Float).SetString(raw)
	if !ok {
		return nil
	}
	wei, _ := new(big.Float).Mul(eth, big.NewFloat(1e18)).Int(nil)
	return wei
}

// envGwei parses a decimal gwei amount into wei. Returns nil when unset.
func envGwei(key string) *big.Int {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	gwei, ok := new(big.Float).SetString(raw)
	if !ok {
		return nil
	}
	wei, _ := new(big.Float).Mul(gwei, big.NewFloat(1e9)).Int(nil)
	return wei
}
