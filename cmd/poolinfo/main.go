package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dex-exec-lab/internal/chain/ethrpc"
	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/decoder"
	"dex-exec-lab/internal/logging"
)

// sanityLookback is how many recent blocks are scanned for swaps.
const sanityLookback = 50_000

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is ignored)")
	rpcURL := flag.String("rpc-url", "", "JSON-RPC endpoint (overrides config)")
	factory := flag.String("factory", "", "Factory address (overrides config)")
	token0 := flag.String("token0", "", "First token address (overrides config)")
	token1 := flag.String("token1", "", "Second token address (overrides config)")
	fee := flag.Uint("fee", 0, "Fee tier in hundredths of a bip (overrides config)")
	lookback := flag.Uint64("lookback", sanityLookback, "Recent blocks to scan for swaps; 0 skips the scan")
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
	if *factory != "" {
		cfg.Chain.Factory = *factory
	}
	if *token0 != "" {
		cfg.Pool.Token0 = *token0
	}
	if *token1 != "" {
		cfg.Pool.Token1 = *token1
	}
	if *fee != 0 {
		cfg.Pool.FeeTier = uint32(*fee)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithField("cmd", "poolinfo")

	for name, addr := range map[string]string{"factory": cfg.Chain.Factory, "token0": cfg.Pool.Token0, "token1": cfg.Pool.Token1} {
		if !common.IsHexAddress(addr) {
			log.Fatalf("Invalid %s address %q", name, addr)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := ethrpc.Dial(ctx, cfg.Chain.RPCURL, ethrpc.WithTimeout(cfg.Chain.RequestTimeout))
	if err != nil {
		log.WithError(err).Fatal("Failed to connect")
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to read chain id")
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to read chain head")
	}

	pool, err := client.GetPool(ctx,
		common.HexToAddress(cfg.Chain.Factory),
		common.HexToAddress(cfg.Pool.Token0),
		common.HexToAddress(cfg.Pool.Token1),
		cfg.Pool.FeeTier,
	)
	if errors.Is(err, ethrpc.ErrPoolNotFound) {
		log.Fatalf("No pool for %s/%s at fee %d", cfg.Pool.Token0, cfg.Pool.Token1, cfg.Pool.FeeTier)
	}
	if err != nil {
		log.WithError(err).Fatal("Factory lookup failed")
	}

	fmt.Printf("Chain ID:  %s\n", chainID)
	fmt.Printf("Head:      %d\n", head)
	fmt.Printf("Pool:      %s\n", pool.Hex())
	fmt.Printf("Fee tier:  %d\n", cfg.Pool.FeeTier)

	if *lookback == 0 {
		return
	}
	from := uint64(0)
	if head > *lookback {
		from = head - *lookback
	}
	logs, err := client.GetLogs(ctx, pool, decoder.SwapFilter(), from, head)
	if err != nil {
		log.WithError(err).Fatal("Swap scan failed; the provider may cap the range, try a smaller --lookback")
	}
	fmt.Printf("Swaps:     %d in blocks [%d, %d]\n", len(logs), from, head)
	if len(logs) == 0 {
		return
	}

	last := logs[len(logs)-1]
	ev, err := decoder.DecodeSwap(cfg.Chain.Venue, last)
	if err != nil {
		log.WithError(err).Warn("Latest swap did not decode")
		return
	}
	fmt.Printf("Latest:    block %d log %d sqrtPriceX96=%s liquidity=%s tick=%d\n",
		ev.BlockNumber, ev.LogIndex, ev.SqrtPriceX96, ev.Liquidity, ev.Tick)
	fmt.Printf("\nexport POOL_ADDRESS=%s\n", pool.Hex())
}
