package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	s3blob "dex-exec-lab/internal/blob/s3"
	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/logging"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/reporting"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/storage/backend"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	poolAddr := flag.String("pool", "", "Pool address (overrides config)")

	// Policy parameters
	trainFrac := flag.Float64("train-frac", 0, "Training fraction in (0, 1) (overrides config)")
	staticQ := flag.Float64("static-q", 0, "Static cap quantile of training z (overrides config)")
	manualCap := flag.Float64("manual-cap", 0, "Fixed static z cap; 0 uses the training quantile")
	window := flag.Int("window", 0, "Rolling window length in trades (overrides config)")
	rollingQ := flag.Float64("rolling-q", 0, "Rolling cap quantile (overrides config)")
	method := flag.String("quantile-method", "", "Quantile method: linear or lower (overrides config)")
	tailBins := flag.Int("tail-bins", -1, "Number of z tail-risk bins; 0 disables (overrides config)")
	sweep := flag.Bool("sweep", false, "Add the static cap-quantile sweep")

	// Output
	outputDir := flag.String("output-dir", "", "Directory for report artifacts (overrides config)")
	upload := flag.Bool("upload", false, "Upload artifacts to the configured object store")
	outputJSON := flag.Bool("json", false, "Print the report as JSON to stdout")

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
	bc := &cfg.Backtest
	if *trainFrac != 0 {
		bc.TrainFraction = *trainFrac
	}
	if *staticQ != 0 {
		bc.StaticQuantile = *staticQ
	}
	if *manualCap != 0 {
		bc.ManualCap = manualCap
	}
	if *window != 0 {
		bc.RollingWindow = *window
	}
	if *rollingQ != 0 {
		bc.RollingQuantile = *rollingQ
	}
	if *method != "" {
		bc.QuantileMethod = *method
	}
	if *tailBins >= 0 {
		bc.TailBins = *tailBins
	}
	if *sweep {
		bc.Sweep = true
	}
	if *outputDir != "" {
		bc.OutputDir = *outputDir
	}
	if *upload {
		cfg.Archive.Enabled = true
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
	log := logger.WithField("cmd", "backtest")

	if !common.IsHexAddress(cfg.Pool.Address) {
		log.Fatal("Pool address is required. Use --pool, POOL_ADDRESS or pool.address")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	sizingCfg, err := sizing.ConfigFrom(cfg.Backtest)
	if err != nil {
		log.WithError(err).Fatal("Invalid backtest parameters")
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

	report, err := run(ctx, log, cfg, sizingCfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Cancelled")
			os.Exit(130)
		}
		if errors.Is(err, sizing.ErrNoObservations) {
			log.WithError(err).Fatal("No usable feature rows; run fetch and features first")
		}
		log.WithError(err).Fatal("Backtest failed")
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.WithError(err).Fatal("Failed to encode report")
		}
		return
	}
	printSummary(report)
}

func run(ctx context.Context, log logrus.FieldLogger, cfg *config.Config, sizingCfg sizing.Config) (*domain.BacktestReport, error) {
	stores, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	bt := sizing.NewBacktester(sizing.BacktesterOptions{
		Features: stores.Features,
		Config:   sizingCfg,
		Logger:   log,
		Metrics:  observability.NewMetrics(cfg.Metrics.Namespace, nil),
	})

	pool := common.HexToAddress(cfg.Pool.Address).Hex()
	report, err := bt.Run(ctx, pool)
	if err != nil {
		return nil, err
	}

	artifacts, err := reporting.NewGenerator().Render(report)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	if cfg.Backtest.OutputDir != "" {
		files, err := reporting.WriteDir(cfg.Backtest.OutputDir, artifacts)
		if err != nil {
			return nil, err
		}
		log.WithField("files", files).Info("Report written")
	}

	if cfg.Archive.Enabled {
		uploader, err := openUploader(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		keys, err := reporting.Upload(ctx, uploader, report.RunID, artifacts)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"bucket": cfg.Archive.Bucket,
			"prefix": path.Join(cfg.Archive.Prefix, report.RunID),
			"count":  len(keys),
		}).Info("Report uploaded")
	}
	return report, nil
}

func openUploader(ctx context.Context, ac config.ArchiveConfig) (*s3blob.Writer, error) {
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       ac.Endpoint,
		Region:         ac.Region,
		Bucket:         ac.Bucket,
		AccessKey:      ac.AccessKey,
		SecretKey:      ac.SecretKey,
		UseSSL:         true,
		ForcePathStyle: ac.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return s3blob.NewWriter(client, ac.Prefix), nil
}

func printSummary(r *domain.BacktestReport) {
	fmt.Printf("Run:            %s\n", r.RunID)
	fmt.Printf("Pool:           %s\n", r.Pool)
	fmt.Printf("Rows:           loaded=%d clean=%d train=%d eval=%d\n", r.RowsLoaded, r.RowsCleaned, r.TrainRows, r.EvalRows)
	fmt.Printf("Static cap:     %.6g (%s)\n", r.StaticCap, r.StaticCapSource)
	fmt.Printf("Rolling window: %d, evaluable=%d, coverage=%.2f%%\n", r.RollingWindow, r.RollingEvaluable, r.RollingCoverage*100)
	fmt.Println()
	fmt.Printf("%-12s %14s %14s %14s %10s\n", "Policy", "P99 cost", "Total cost", "Avoided", "Notional")
	rows := []struct {
		label string
		o     domain.PolicyOutcome
	}{
		{"static_full", r.StaticFull},
		{"static", r.Static},
		{"rolling", r.Rolling},
	}
	for _, row := range rows {
		o := row.o
		fmt.Printf("%-12s %14.6g %14.6g %14.6g %9.2f%%\n", row.label, o.Capped.P99, o.Capped.Sum, o.AvoidedCost, o.ExecutedNotional*100)
	}
}
