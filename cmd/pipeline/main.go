// Package main provides the end-to-end pipeline entry point.
// Executes: fetch → features → backtest → reporting
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	s3blob "dex-exec-lab/internal/blob/s3"
	"dex-exec-lab/internal/cache/redis"
	"dex-exec-lab/internal/chain/ethrpc"
	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/ingestion"
	"dex-exec-lab/internal/logging"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/orchestrator"
	"dex-exec-lab/internal/reporting"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/storage/backend"
	"dex-exec-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	fromBlock := flag.Uint64("from-block", 0, "First block to fetch (overrides config)")
	toBlock := flag.Uint64("to-block", 0, "Last block to fetch; 0 means the chain head")
	skipFetch := flag.Bool("skip-fetch", false, "Reuse stored swap events")
	skipFeatures := flag.Bool("skip-features", false, "Reuse the stored feature table")
	verify := flag.Bool("verify", false, "Check the feature table against a rebuild before backtesting")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage for events and features")
	outputDir := flag.String("output-dir", "", "Directory for report artifacts (overrides config)")
	upload := flag.Bool("upload", false, "Upload artifacts to the configured object store")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
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
	if *fromBlock != 0 {
		cfg.Fetch.FromBlock = *fromBlock
	}
	if *toBlock != 0 {
		cfg.Fetch.ToBlock = *toBlock
	}
	if *useMemory {
		cfg.Storage.Events = config.BackendMemory
		cfg.Storage.Features = config.BackendMemory
	}
	if *outputDir != "" {
		cfg.Backtest.OutputDir = *outputDir
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
	log := logger.WithField("cmd", "pipeline")

	if !common.IsHexAddress(cfg.Pool.Address) {
		log.Fatal("Pool address is required. Use POOL_ADDRESS or pool.address")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if *useMemory && *skipFetch {
		log.Fatal("--use-memory with --skip-fetch leaves nothing to backtest")
	}

	metrics := observability.NewMetrics(cfg.Metrics.Namespace, nil)
	if *metricsAddr == "" {
		*metricsAddr = cfg.Metrics.Addr
	}
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			log.Infof("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server error")
			}
		}()
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %v, cancelling pipeline...", sig)
		cancel()
	}()

	start := time.Now()
	result, err := run(ctx, log, cfg, phases{fetch: !*skipFetch, build: !*skipFeatures, verify: *verify}, metrics)
	if err != nil {
		var aqe *ingestion.AdapterQueryError
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("Pipeline cancelled")
			os.Exit(130)
		case errors.Is(err, verification.ErrMismatch):
			log.WithError(err).Error("Feature table is stale; rerun without --skip-features")
			os.Exit(3)
		case errors.As(err, &aqe):
			log.WithError(err).Errorf("Pipeline aborted during fetch; rerun with --from-block %d", aqe.ResumeBlock())
			os.Exit(2)
		default:
			log.WithError(err).Fatal("Pipeline failed")
		}
	}

	r := result.Report
	log.WithFields(logrus.Fields{
		"run_id":           r.RunID,
		"eval_rows":        r.EvalRows,
		"static_cap":       r.StaticCap,
		"rolling_coverage": r.RollingCoverage,
		"static_avoided":   r.Static.AvoidedCost,
		"rolling_avoided":  r.Rolling.AvoidedCost,
		"files":            len(result.Files),
		"uploaded":         len(result.Uploaded),
		"duration":         time.Since(start).Round(time.Millisecond),
	}).Info("Pipeline completed")
}

// phases selects the optional pipeline phases.
type phases struct {
	fetch  bool
	build  bool
	verify bool
}

func run(ctx context.Context, log logrus.FieldLogger, cfg *config.Config, ph phases, metrics *observability.Metrics) (*orchestrator.RunResult, error) {
	sizingCfg, err := sizing.ConfigFrom(cfg.Backtest)
	if err != nil {
		return nil, err
	}

	stores, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	pool := common.HexToAddress(cfg.Pool.Address)
	opts := orchestrator.Options{
		Venue:     cfg.Chain.Venue,
		Pool:      pool.Hex(),
		OutputDir: cfg.Backtest.OutputDir,
		Backtester: sizing.NewBacktester(sizing.BacktesterOptions{
			Features: stores.Features,
			Config:   sizingCfg,
			Logger:   log,
			Metrics:  metrics,
		}),
		Logger: log,
	}

	from, to := cfg.Fetch.FromBlock, cfg.Fetch.ToBlock
	if ph.fetch {
		client, err := ethrpc.Dial(ctx, cfg.Chain.RPCURL, ethrpc.WithTimeout(cfg.Chain.RequestTimeout))
		if err != nil {
			return nil, err
		}
		defer client.Close()

		if to == 0 {
			if to, err = client.BlockNumber(ctx); err != nil {
				return nil, fmt.Errorf("read chain head: %w", err)
			}
		}

		var tsStore ingestion.TimestampStore
		if cfg.Cache.RedisAddr != "" {
			rc, err := redis.New(ctx, redis.ClientConfig{
				Addr:     cfg.Cache.RedisAddr,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			})
			if err != nil {
				log.WithError(err).Warn("Redis unavailable, continuing without shared timestamp cache")
			} else {
				defer rc.Close()
				tsStore = redis.NewTimestampStore(rc, cfg.Cache.Namespace)
			}
		}

		opts.Fetcher = ingestion.NewRangeFetcher(ingestion.FetcherOptions{
			Source:         client,
			Store:          stores.Events,
			Venue:          cfg.Chain.Venue,
			Pool:           pool,
			InitialWidth:   cfg.Fetch.InitialWidth,
			MinWidth:       cfg.Fetch.MinWidth,
			MaxRetries:     cfg.Fetch.MaxRetries,
			RetryDelay:     cfg.Fetch.RetryDelay,
			Pacing:         cfg.Fetch.Pacing,
			TimestampStore: tsStore,
			Logger:         log,
			Metrics:        metrics,
		})
	}

	decimals := features.Decimals{Token0: cfg.Pool.Decimals0, Token1: cfg.Pool.Decimals1}
	if ph.build {
		opts.Features = features.NewRunner(features.RunnerOptions{
			Events:        stores.Events,
			Features:      stores.Features,
			Decimals:      decimals,
			ProgressEvery: cfg.Features.ProgressEvery,
			Logger:        log,
			Metrics:       metrics,
		})
	}
	if ph.verify {
		opts.Verifier = verification.NewVerifier(verification.VerifierOptions{
			Events:   stores.Events,
			Features: stores.Features,
			Decimals: decimals,
			Backtest: sizingCfg,
			Logger:   log,
		})
	}

	if cfg.Archive.Enabled {
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		opts.Uploader = s3blob.NewWriter(client, cfg.Archive.Prefix)
	}

	opts.Generator = reporting.NewGenerator()
	return orchestrator.New(opts).Run(ctx, from, to)
}
