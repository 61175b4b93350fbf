// Package config loads run configuration from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

type Config struct {
	Chain    ChainConfig    `yaml:"chain"`
	Pool     PoolConfig     `yaml:"pool"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
	Backtest BacktestConfig `yaml:"backtest"`
	Cache    CacheConfig    `yaml:"cache"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ChainConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	Venue          string        `yaml:"venue"`
	Factory        string        `yaml:"factory"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type PoolConfig struct {
	Address   string `yaml:"address"`
	Token0    string `yaml:"token0"`
	Token1    string `yaml:"token1"`
	Decimals0 int32  `yaml:"decimals0"`
	Decimals1 int32  `yaml:"decimals1"`
	FeeTier   uint32 `yaml:"fee_tier"`
}

type FetchConfig struct {
	FromBlock    uint64        `yaml:"from_block"`
	ToBlock      uint64        `yaml:"to_block"`
	InitialWidth uint64        `yaml:"initial_width"`
	MinWidth     uint64        `yaml:"min_width"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	Pacing       time.Duration `yaml:"pacing"`
}

type StorageConfig struct {
	Events        string `yaml:"events"`
	Features      string `yaml:"features"`
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

type FeaturesConfig struct {
	ProgressEvery int `yaml:"progress_every"`
}

type BacktestConfig struct {
	TrainFraction   float64  `yaml:"train_fraction"`
	StaticQuantile  float64  `yaml:"static_quantile"`
	ManualCap       *float64 `yaml:"manual_cap"`
	RollingWindow   int      `yaml:"rolling_window"`
	RollingQuantile float64  `yaml:"rolling_quantile"`
	// QuantileMethod is "linear" (default) or "lower". The q=0.9 cap of
	// z = 1..100 is 90 under "lower" and 90.1 under "linear".
	QuantileMethod string `yaml:"quantile_method"`
	TailBins       int    `yaml:"tail_bins"`
	Sweep          bool   `yaml:"sweep"`
	OutputDir      string `yaml:"output_dir"`
}

type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Namespace     string `yaml:"namespace"`
}

type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	Prefix         string `yaml:"prefix"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration for the USDC/WETH 0.05% pool on Arbitrum One.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "https://arb1.arbitrum.io/rpc",
			Venue:          "uniswap-v3-arbitrum",
			Factory:        "0x1F98431c8aD98523631AE4a59f267346ea31F984",
			RequestTimeout: 60 * time.Second,
		},
		Pool: PoolConfig{
			Token0:    "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8",
			Token1:    "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
			Decimals0: 6,
			Decimals1: 18,
			FeeTier:   500,
		},
		Fetch: FetchConfig{
			InitialWidth: 3000,
			MinWidth:     50,
			MaxRetries:   5,
			RetryDelay:   800 * time.Millisecond,
			Pacing:       50 * time.Millisecond,
		},
		Storage: StorageConfig{
			Events:     BackendSQLite,
			Features:   BackendSQLite,
			SQLitePath: "data/univ3.db",
		},
		Features: FeaturesConfig{
			ProgressEvery: 25_000,
		},
		Backtest: BacktestConfig{
			TrainFraction:   0.6,
			StaticQuantile:  0.9,
			RollingWindow:   800,
			RollingQuantile: 0.9,
			QuantileMethod:  "linear",
			TailBins:        10,
			OutputDir:       "out",
		},
		Cache: CacheConfig{
			Namespace: "arbitrum",
		},
		Archive: ArchiveConfig{
			Prefix: "dex-exec-lab",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "dex_exec_lab",
		},
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path over the defaults, applies environment overrides and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Chain.RPCURL, "RPC_URL")
	set(&cfg.Pool.Address, "POOL_ADDRESS")
	set(&cfg.Storage.SQLitePath, "SQLITE_PATH")
	set(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	set(&cfg.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	set(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	set(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	set(&cfg.Archive.Bucket, "S3_BUCKET")
	set(&cfg.Archive.Region, "AWS_REGION")
	set(&cfg.Archive.Endpoint, "S3_ENDPOINT")
	set(&cfg.Archive.AccessKey, "AWS_ACCESS_KEY_ID")
	set(&cfg.Archive.SecretKey, "AWS_SECRET_ACCESS_KEY")
	set(&cfg.Logging.Level, "LOG_LEVEL")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Pool.Address != "" && !common.IsHexAddress(c.Pool.Address) {
		return fmt.Errorf("pool.address %q is not a hex address", c.Pool.Address)
	}
	if c.Fetch.ToBlock != 0 && c.Fetch.FromBlock > c.Fetch.ToBlock {
		return fmt.Errorf("fetch.from_block %d is after fetch.to_block %d", c.Fetch.FromBlock, c.Fetch.ToBlock)
	}
	if c.Fetch.MinWidth == 0 || c.Fetch.InitialWidth < c.Fetch.MinWidth {
		return fmt.Errorf("fetch.min_width must be positive and not above fetch.initial_width")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if c.Pool.Decimals0 < 0 || c.Pool.Decimals1 < 0 {
		return fmt.Errorf("pool decimals must not be negative")
	}

	switch c.Storage.Events {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required when storage.events is postgres")
		}
	default:
		return fmt.Errorf("storage.events %q is not one of memory, sqlite, postgres", c.Storage.Events)
	}
	switch c.Storage.Features {
	case BackendMemory, BackendSQLite:
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required when storage.features is clickhouse")
		}
	default:
		return fmt.Errorf("storage.features %q is not one of memory, sqlite, clickhouse", c.Storage.Features)
	}
	if (c.Storage.Events == BackendSQLite || c.Storage.Features == BackendSQLite) && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive is enabled")
		}
		if c.Archive.Region == "" {
			return fmt.Errorf("archive.region is required when archive is enabled")
		}
	}
	return nil
}
