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

	"dex-exec-lab/internal/cache/redis"
	"dex-exec-lab/internal/chain/ethrpc"
	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/ingestion"
	"dex-exec-lab/internal/logging"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/storage/backend"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	rpcURL := flag.String("rpc-url", "", "JSON-RPC endpoint (overrides config)")
	poolAddr := flag.String("pool", "", "Pool address (overrides config)")
	fromBlock := flag.Uint64("from-block", 0, "First block to fetch (overrides config)")
	toBlock := flag.Uint64("to-block", 0, "Last block to fetch; 0 means the chain head")
	resume := flag.Bool("resume", false, "Start from the last stored block + 1")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of the configured backend")
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
	if *rpcURL != "" {
		cfg.Chain.RPCURL = *rpcURL
	}
	if *poolAddr != "" {
		cfg.Pool.Address = *poolAddr
	}
	if *fromBlock != 0 {
		cfg.Fetch.FromBlock = *fromBlock
	}
	if *toBlock != 0 {
		cfg.Fetch.ToBlock = *toBlock
	}
	if *useMemory {
		cfg.Storage.Events = config.BackendMemory
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
	log := logger.WithField("cmd", "fetch")

	if cfg.Pool.Address == "" || !common.IsHexAddress(cfg.Pool.Address) {
		log.Fatal("Pool address is required. Use --pool, POOL_ADDRESS or pool.address (see poolinfo)")
	}

	metrics := observability.NewMetrics(cfg.Metrics.Namespace, nil)
	if *metricsAddr == "" {
		*metricsAddr = cfg.Metrics.Addr
	}
	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("Received signal %v, stopping after the current chunk...", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, log, cfg, *resume, metrics)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		var aqe *ingestion.AdapterQueryError
		if errors.As(err, &aqe) {
			log.WithError(err).Errorf("Fetch aborted; rerun with --from-block %d", aqe.ResumeBlock())
			os.Exit(2)
		}
		log.WithError(err).Fatal("Fetch failed")
	}
	log.Info("Shutdown complete")
}

func run(ctx context.Context, log logrus.FieldLogger, cfg *config.Config, resume bool, metrics *observability.Metrics) error {
	client, err := ethrpc.Dial(ctx, cfg.Chain.RPCURL, ethrpc.WithTimeout(cfg.Chain.RequestTimeout))
	if err != nil {
		return err
	}
	defer client.Close()

	stores, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer stores.Close()

	pool := common.HexToAddress(cfg.Pool.Address)
	from, to := cfg.Fetch.FromBlock, cfg.Fetch.ToBlock

	if resume {
		last, ok, err := stores.Events.LastBlock(ctx, cfg.Chain.Venue, pool.Hex())
		if err != nil {
			return fmt.Errorf("read last stored block: %w", err)
		}
		if ok && last+1 > from {
			from = last + 1
		}
	}
	if to == 0 {
		head, err := client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("read chain head: %w", err)
		}
		to = head
	}
	if from > to {
		log.WithFields(logrus.Fields{"from": from, "to": to}).Info("Nothing to fetch")
		return nil
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

	fetcher := ingestion.NewRangeFetcher(ingestion.FetcherOptions{
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

	result, err := fetcher.Fetch(ctx, from, to)
	if result != nil {
		log.WithFields(logrus.Fields{
			"chunks":     result.Chunks,
			"logs":       result.Logs,
			"stored":     result.Stored,
			"duplicates": result.Duplicates,
			"decode_err": result.DecodeErrors,
			"retries":    result.Retries,
			"last_block": result.LastBlock,
		}).Info("Fetch summary")
	}
	return err
}

func serveMetrics(log logrus.FieldLogger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	log.Infof("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Metrics server error")
	}
}
