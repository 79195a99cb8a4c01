package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/xueshanjianke/fct-miner/internal/minerconfig"
	"github.com/xueshanjianke/fct-miner/pkg/canceller"
	"github.com/xueshanjianke/fct-miner/pkg/display"
	"github.com/xueshanjianke/fct-miner/pkg/history"
	"github.com/xueshanjianke/fct-miner/pkg/logging"
	"github.com/xueshanjianke/fct-miner/pkg/miner"
	"github.com/xueshanjianke/fct-miner/pkg/pricefeed"
	"github.com/xueshanjianke/fct-miner/pkg/wallet"
)

func main() {
	mode := flag.String("mode", "", "run mode: mine, auto, or cancel (defaults to env MINER_AUTO)")
	cancelFrom := flag.Uint64("from", 0, "first nonce to cancel (cancel mode)")
	cancelTo := flag.Uint64("to", 0, "last nonce to cancel (cancel mode)")
	flag.Parse()

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredFormatter())
	log.SetLevel(logrus.InfoLevel)

	// Config loads .env, so the log level is read afterwards.
	config, err := minerconfig.New(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load miner config")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else if logLevel != "" {
		log.WithFields(logrus.Fields{
			"attempted_level": logLevel,
			"default_level":   "INFO",
		}).Warn("Invalid log level specified, defaulting to INFO")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	client, err := wallet.NewClient(ctx, log, wallet.DefaultConfig(config.RPCURL, config.L1ChainID), config.PrivateKey)
	if err != nil {
		log.WithError(err).Fatal("Failed to create wallet client")
	}
	defer client.Close()

	runMode := *mode
	if runMode == "" {
		if config.AutoMode {
			runMode = "auto"
		} else {
			runMode = "mine"
		}
	}

	switch runMode {
	case "auto", "mine":
		runMiner(ctx, log, config, client, runMode == "auto")
	case "cancel":
		runCanceller(ctx, log, client, *cancelFrom, *cancelTo)
	default:
		log.WithField("mode", runMode).Fatal("Unknown run mode")
	}
}

func runMiner(ctx context.Context, log *logrus.Logger, config *minerconfig.Config, client *wallet.Client, auto bool) {
	prices := pricefeed.NewClient(log)
	terminal := &display.Terminal{PriceUSD: prices.GetAssetPriceUSD(ctx)}

	var recorder miner.Recorder
	dbPath := config.HistoryDBPath
	if dbPath == "" {
		var err error
		dbPath, err = history.DefaultPath()
		if err != nil {
			log.WithError(err).Warn("Could not resolve history path, history disabled")
		}
	}
	if dbPath != "" {
		store, err := history.NewStore(dbPath)
		if err != nil {
			log.WithError(err).Warn("Could not open history store, history disabled")
		} else {
			defer store.Close()
			recorder = store
		}
	}

	estimator := miner.NewEstimator(config.FacetChainID)

	if !auto {
		runSingleSession(ctx, log, config, client, estimator, terminal, recorder)
		return
	}

	controller := miner.NewController(client, client, estimator, terminal, recorder, log, miner.AutoConfig{
		Loop:           auto && config.Loop,
		CheckInterval:  config.CheckInterval,
		Gates:          config.GateConfig(),
		Sizes:          config.SizeRange(),
		SpendMode:      config.SpendMode,
		PlanOptions:    config.PlanOptions(),
		StopOnFailure:  config.StopOnFailure,
		ReceiptTimeout: config.ReceiptTimeout,
		SubmitRate:     rate.NewLimiter(rate.Every(time.Second), 1),
	})

	log.WithFields(logrus.Fields{
		"address": client.Address().Hex(),
		"auto":    auto,
		"loop":    auto && config.Loop,
	}).Info("Starting miner")

	if err := controller.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Miner stopped with error")
	}

	log.Info("Miner shutdown complete")
}

// runSingleSession mines once at the configured target size, without the
// adaptive size selection and gating of auto mode.
func runSingleSession(ctx context.Context, log *logrus.Logger, config *minerconfig.Config, client *wallet.Client, estimator *miner.Estimator, terminal *display.Terminal, recorder miner.Recorder) {
	balance, err := client.GetBalance(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to read balance")
	}
	baseFee, err := client.GetBaseFee(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to read base fee")
	}
	tip, err := client.GetTipCap(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to read tip cap")
	}

	est, err := estimator.Estimate(config.TargetSizeKB*1024, miner.FeeObservation{BaseFee: baseFee, TipCap: tip})
	if err != nil {
		log.WithError(err).Fatal("Failed to estimate transaction cost")
	}

	spendCap, err := miner.PlanSpendCap(config.SpendMode, balance, est.EstimatedCost, config.PlanOptions())
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve spend cap")
	}

	session := miner.NewSession(client, client, estimator, terminal, recorder, log, miner.SessionConfig{
		SpendCap:       spendCap,
		SizeBytes:      est.SizeBytes,
		StopOnFailure:  config.StopOnFailure,
		ReceiptTimeout: config.ReceiptTimeout,
		SubmitRate:     rate.NewLimiter(rate.Every(time.Second), 1),
	})

	totals, err := session.Run(ctx)
	if err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Mining session failed")
	}
	terminal.PrintSummary(totals)
}

func runCanceller(ctx context.Context, log *logrus.Logger, client *wallet.Client, from, to uint64) {
	if to < from {
		log.WithFields(logrus.Fields{"from": from, "to": to}).Fatal("Invalid nonce range")
	}

	c := canceller.New(client, client, client.Address(), canceller.DefaultConfig(), log)
	results, err := c.CancelRange(ctx, from, to)
	if err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Cancellation sweep failed")
	}

	for _, r := range results {
		entry := log.WithFields(logrus.Fields{
			"nonce":    r.Nonce,
			"outcome":  r.Outcome,
			"attempts": r.Attempts,
		})
		if r.Err != nil {
			entry.WithError(r.Err).Warn("Nonce result")
			continue
		}
		entry.Info("Nonce result")
	}
}
