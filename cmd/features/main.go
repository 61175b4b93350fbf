package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/logging"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/storage/backend"
	"dex-exec-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	poolAddr := flag.String("pool", "", "Pool address (overrides config)")
	decimals0 := flag.Int("decimals0", -1, "Token0 decimals (overrides config)")
	decimals1 := flag.Int("decimals1", -1, "Token1 decimals (overrides config)")
	progressEvery := flag.Int("progress-every", 0, "Log progress every N events (overrides config)")
	verifyOnly := flag.Bool("verify-only", false, "Compare the stored table with a rebuild without writing")

	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *poolAddr != "" {
		cfg.Pool.Address = *poolAddr
	}
	if *decimals0 >= 0 {
		cfg.Pool.Decimals0 = int32(*decimals0)
	}
	if *decimals1 >= 0 {
		cfg.Pool.Decimals1 = int32(*decimals1)
	}
	if *progressEvery > 0 {
		cfg.Features.ProgressEvery = *progressEvery
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		MaxAge: cfg.Logging.MaxAge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithField("cmd", "features")

	if !common.IsHexAddress(cfg.Pool.Address) {
		log.Fatal("Pool address is required. Use --pool, POOL_ADDRESS or pool.address")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %v, cancelling...", sig)
		cancel()
	}()

	runFn := run
	if *verifyOnly {
		runFn = verify
	}
	if err := runFn(ctx, log, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Cancelled")
			os.Exit(130)
		}
		if errors.Is(err, verification.ErrMismatch) {
			log.WithError(err).Error("Feature table is stale; rerun without --verify-only")
			os.Exit(3)
		}
		log.WithError(err).Fatal("Feature build failed")
	}
}

func run(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) error {
	stores, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer stores.Close()

	runner := features.NewRunner(features.RunnerOptions{
		Events:   stores.Events,
		Features: stores.Features,
		Decimals: features.Decimals{
			Token0: cfg.Pool.Decimals0,
			Token1: cfg.Pool.Decimals1,
		},
		ProgressEvery: cfg.Features.ProgressEvery,
		Logger:        log,
		Metrics:       observability.NewMetrics(cfg.Metrics.Namespace, nil),
	})

	pool := common.HexToAddress(cfg.Pool.Address).Hex()
	result, err := runner.Run(ctx, cfg.Chain.Venue, pool)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"events":        result.Events,
		"records":       result.Records,
		"with_price":    result.WithPrice,
		"with_slippage": result.WithSlippage,
		"with_z":        result.WithZ,
		"duration":      result.Duration,
	}).Info("Features written")
	return nil
}

func verify(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) error {
	sizingCfg, err := sizing.ConfigFrom(cfg.Backtest)
	if err != nil {
		return err
	}
	stores, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer stores.Close()

	v := verification.NewVerifier(verification.VerifierOptions{
		Events:   stores.Events,
		Features: stores.Features,
		Decimals: features.Decimals{Token0: cfg.Pool.Decimals0, Token1: cfg.Pool.Decimals1},
		Backtest: sizingCfg,
		Logger:   log,
	})

	pool := common.HexToAddress(cfg.Pool.Address).Hex()
	report, err := v.Check(ctx, cfg.Chain.Venue, pool)
	if report != nil {
		for _, r := range report.Results {
			for _, d := range r.Divergences {
				fmt.Printf("%d:%d %s stored=%v rebuilt=%v\n", r.BlockNumber, r.LogIndex, d.Field, d.Expected, d.Actual)
			}
		}
		fmt.Println()
		fmt.Printf("%-26s %-22s %-12s %s\n", "Check", "Threshold", "Actual", "Pass")
		for _, c := range report.Sufficiency.Checks {
			fmt.Printf("%-26s %-22s %-12s %v\n", c.Name, c.Threshold, c.Actual, c.Pass)
		}
		for _, e := range report.Sufficiency.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	return err
}
