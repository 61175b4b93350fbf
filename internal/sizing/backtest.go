package sizing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/config"
	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/storage"
)

// Backtest defaults.
const (
	DefaultTrainFraction   = 0.6
	DefaultStaticQuantile  = 0.9
	DefaultRollingWindow   = 800
	DefaultRollingQuantile = 0.9

	// WarnMargin is how many evaluable rows beyond the window a run needs
	// before its rolling metrics are considered meaningful.
	WarnMargin = 50
)

// Cap sources reported in BacktestReport.StaticCapSource.
const (
	CapSourceQuantile = "train_quantile"
	CapSourceManual   = "manual"
)

var (
	// ErrNoObservations is returned when no record survives cleaning.
	ErrNoObservations = errors.New("no clean observations")
	// ErrEmptyTrain is returned when the training fraction is empty and no manual cap is set.
	ErrEmptyTrain = errors.New("empty training set")
)

// Config holds backtest parameters.
type Config struct {
	TrainFraction   float64
	StaticQuantile  float64
	ManualCap       *float64 // overrides the static training quantile when set
	RollingWindow   int
	RollingQuantile float64
	Method          QuantileMethod // QuantileLower reproduces nearest-lower order statistics
	TailBins        int            // 0 disables tail-risk bins
	Sweep           bool           // static cap-quantile sweep
}

// DefaultConfig returns the default backtest parameters.
func DefaultConfig() Config {
	return Config{
		TrainFraction:   DefaultTrainFraction,
		StaticQuantile:  DefaultStaticQuantile,
		RollingWindow:   DefaultRollingWindow,
		RollingQuantile: DefaultRollingQuantile,
		Method:          QuantileLinear,
	}
}

// ConfigFrom converts file/env backtest settings into a validated Config.
func ConfigFrom(bc config.BacktestConfig) (Config, error) {
	method, err := ParseQuantileMethod(bc.QuantileMethod)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		TrainFraction:   bc.TrainFraction,
		StaticQuantile:  bc.StaticQuantile,
		ManualCap:       bc.ManualCap,
		RollingWindow:   bc.RollingWindow,
		RollingQuantile: bc.RollingQuantile,
		Method:          method,
		TailBins:        bc.TailBins,
		Sweep:           bc.Sweep,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if !(c.TrainFraction > 0 && c.TrainFraction < 1) {
		return fmt.Errorf("train fraction must be in (0, 1), got %v", c.TrainFraction)
	}
	if !(c.StaticQuantile > 0 && c.StaticQuantile <= 1) {
		return fmt.Errorf("static quantile must be in (0, 1], got %v", c.StaticQuantile)
	}
	if !(c.RollingQuantile > 0 && c.RollingQuantile <= 1) {
		return fmt.Errorf("rolling quantile must be in (0, 1], got %v", c.RollingQuantile)
	}
	if c.RollingWindow < 1 {
		return fmt.Errorf("rolling window must be positive, got %d", c.RollingWindow)
	}
	if c.ManualCap != nil && !(*c.ManualCap > 0 && finite(*c.ManualCap)) {
		return fmt.Errorf("manual cap must be positive and finite, got %v", *c.ManualCap)
	}
	if c.TailBins < 0 {
		return fmt.Errorf("tail bins must not be negative, got %d", c.TailBins)
	}
	if _, err := ParseQuantileMethod(string(c.Method)); err != nil {
		return err
	}
	return nil
}

// Backtester evaluates static and rolling z-cap policies over stored features.
type Backtester struct {
	features storage.FeatureStore
	cfg      Config
	logger   logrus.FieldLogger
	metrics  *observability.Metrics
}

// BacktesterOptions contains configuration for creating a Backtester.
type BacktesterOptions struct {
	Features storage.FeatureStore
	Config   Config
	Logger   logrus.FieldLogger
	Metrics  *observability.Metrics
}

// NewBacktester creates a new Backtester.
func NewBacktester(opts BacktesterOptions) *Backtester {
	cfg := opts.Config
	if cfg.Method == "" {
		cfg.Method = QuantileLinear
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Backtester{
		features: opts.Features,
		cfg:      cfg,
		logger:   logger.WithField("component", "backtest"),
		metrics:  opts.Metrics,
	}
}

// Run loads the feature table of pool and evaluates both policies.
func (b *Backtester) Run(ctx context.Context, pool string) (*domain.BacktestReport, error) {
	start := time.Now()
	records, err := b.features.GetByPool(ctx, pool)
	if err != nil {
		b.metrics.RecordPipelineRun("backtest", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("load features: %w", err)
	}

	report, err := b.Evaluate(pool, records)
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.metrics.RecordPipelineRun("backtest", status, time.Since(start).Seconds())
	return report, err
}

// Evaluate runs the backtest over records, which must be in stream order.
func (b *Backtester) Evaluate(pool string, records []*domain.FeatureRecord) (*domain.BacktestReport, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs := Clean(records)
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}
	train, eval := Split(obs, cfg.TrainFraction)

	report := &domain.BacktestReport{
		RunID:           uuid.NewString(),
		Pool:            pool,
		TrainFraction:   cfg.TrainFraction,
		StaticQuantile:  cfg.StaticQuantile,
		RollingWindow:   cfg.RollingWindow,
		RollingQuantile: cfg.RollingQuantile,
		RowsLoaded:      len(records),
		RowsCleaned:     len(obs),
		TrainRows:       len(train),
		EvalRows:        len(eval),
	}

	switch {
	case cfg.ManualCap != nil:
		report.StaticCap = *cfg.ManualCap
		report.StaticCapSource = CapSourceManual
	case len(train) == 0:
		return nil, ErrEmptyTrain
	default:
		report.StaticCap = StaticCap(train, cfg.StaticQuantile, cfg.Method)
		report.StaticCapSource = CapSourceQuantile
	}

	log := b.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"pool":   pool,
		"train":  len(train),
		"eval":   len(eval),
	})
	if len(eval) < cfg.RollingWindow+WarnMargin {
		log.WithField("window", cfg.RollingWindow).
			Warn("evaluation set barely exceeds the rolling window; rolling metrics are thin")
	}

	static := ApplyStatic(eval, report.StaticCap)
	rolling := ApplyRolling(eval, cfg.RollingWindow, cfg.RollingQuantile, cfg.Method)

	report.StaticFull = Compare("static", static, allPositions(len(static)))

	var mask []int
	for i, d := range rolling {
		if d.Cap != nil {
			mask = append(mask, i)
		}
	}
	report.RollingEvaluable = len(mask)
	if len(eval) > 0 {
		report.RollingCoverage = float64(len(mask)) / float64(len(eval))
	}
	report.Static = Compare("static", static, mask)
	report.Rolling = Compare("rolling", rolling, mask)

	if cfg.TailBins > 0 {
		report.TailBins = TailRiskBins(records, cfg.TailBins)
	}
	if cfg.Sweep {
		report.Sweep = CapSweep(train, eval, cfg.Method)
	}

	report.StaticDecisions = static
	report.RollingDecisions = rolling

	log.WithFields(logrus.Fields{
		"static_cap":        report.StaticCap,
		"rolling_evaluable": report.RollingEvaluable,
		"avoided_static":    report.Static.AvoidedCost,
		"avoided_rolling":   report.Rolling.AvoidedCost,
	}).Info("backtest complete")

	return report, nil
}
