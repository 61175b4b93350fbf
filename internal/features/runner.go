package features

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/storage"
)

// DefaultProgressEvery is how often the runner logs progress, in records.
const DefaultProgressEvery = 25_000

// Runner rebuilds the feature table of a pool from stored swap events.
type Runner struct {
	events        storage.SwapEventStore
	features      storage.FeatureStore
	decimals      Decimals
	progressEvery int
	logger        logrus.FieldLogger
	metrics       *observability.Metrics
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Events        storage.SwapEventStore
	Features      storage.FeatureStore
	Decimals      Decimals
	ProgressEvery int
	Logger        logrus.FieldLogger
	Metrics       *observability.Metrics
}

// NewRunner creates a new Runner.
func NewRunner(opts RunnerOptions) *Runner {
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		events:        opts.Events,
		features:      opts.Features,
		decimals:      opts.Decimals,
		progressEvery: every,
		logger:        logger.WithField("component", "features"),
		metrics:       opts.Metrics,
	}
}

// RunResult contains statistics from a feature build.
type RunResult struct {
	Events       int
	Records      int
	WithPrice    int
	WithSlippage int
	WithZ        int
	Duration     time.Duration
}

// Run loads every event of (venue, pool), derives features and replaces the pool's table.
func (r *Runner) Run(ctx context.Context, venue, pool string) (*RunResult, error) {
	start := time.Now()
	log := r.logger.WithField("pool", pool)

	events, err := r.events.ScanPool(ctx, venue, pool)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	log.WithField("events", len(events)).Info("building features")

	records, err := build(events, r.decimals, func(done int) {
		if done%r.progressEvery == 0 {
			log.WithField("done", done).Info("features progress")
		}
	})
	if err != nil {
		r.metrics.RecordPipelineRun("features", "error", time.Since(start).Seconds())
		return nil, err
	}

	if err := r.features.Rebuild(ctx, pool, records); err != nil {
		r.metrics.RecordPipelineRun("features", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("write features: %w", err)
	}

	result := &RunResult{Events: len(events), Records: len(records)}
	for _, rec := range records {
		if rec.Price != nil {
			result.WithPrice++
		}
		if rec.Slippage != nil {
			result.WithSlippage++
		}
		if rec.Z != nil {
			result.WithZ++
		}
	}
	result.Duration = time.Since(start)

	r.metrics.RecordFeaturesBuilt(len(records))
	r.metrics.RecordPipelineRun("features", "ok", result.Duration.Seconds())
	log.WithFields(logrus.Fields{
		"records":  result.Records,
		"slippage": result.WithSlippage,
		"z":        result.WithZ,
		"duration": result.Duration.Round(time.Millisecond).String(),
	}).Info("features rebuilt")

	return result, nil
}
