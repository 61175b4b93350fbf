// Package orchestrator provides E2E pipeline orchestration.
// It coordinates: range fetch → feature build → sizing backtest → reporting
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/ingestion"
	"dex-exec-lab/internal/reporting"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/verification"
)

// ErrNoBacktester is returned when Run is called without a backtester.
var ErrNoBacktester = errors.New("orchestrator: backtester is required")

// Orchestrator coordinates the E2E pipeline execution for one pool.
type Orchestrator struct {
	venue string
	pool  string

	fetcher    *ingestion.RangeFetcher
	features   *features.Runner
	verifier   *verification.Verifier
	backtester *sizing.Backtester
	generator  *reporting.Generator

	outputDir    string
	uploader     reporting.Uploader
	uploadPrefix string

	logger logrus.FieldLogger
}

// Options for creating Orchestrator.
type Options struct {
	Venue string
	Pool  string

	// Fetcher is optional; nil skips the fetch phase.
	Fetcher *ingestion.RangeFetcher
	// Features is optional; nil reuses the stored feature table.
	Features *features.Runner
	// Verifier is optional; when set a feature table that does not
	// reproduce from events stops the run before backtesting.
	Verifier   *verification.Verifier
	Backtester *sizing.Backtester
	Generator  *reporting.Generator

	// OutputDir receives report artifacts; empty skips writing files.
	OutputDir string
	// Uploader is optional; artifacts go under UploadPrefix/<run id>.
	Uploader     reporting.Uploader
	UploadPrefix string

	Logger logrus.FieldLogger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gen := opts.Generator
	if gen == nil {
		gen = reporting.NewGenerator()
	}
	return &Orchestrator{
		venue:        opts.Venue,
		pool:         opts.Pool,
		fetcher:      opts.Fetcher,
		features:     opts.Features,
		verifier:     opts.Verifier,
		backtester:   opts.Backtester,
		generator:    gen,
		outputDir:    opts.OutputDir,
		uploader:     opts.Uploader,
		uploadPrefix: opts.UploadPrefix,
		logger:       logger.WithFields(logrus.Fields{"component": "orchestrator", "pool": opts.Pool}),
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Fetch        *ingestion.FetchResult
	Features     *features.RunResult
	Verification *verification.Report
	Report       *domain.BacktestReport
	Files        []string
	Uploaded     []string
}

// Run executes the pipeline.
// Phases:
//  1. Fetch swap events in [from, to]
//  2. Rebuild the feature table, then optionally verify it
//  3. Backtest static and rolling caps
//  4. Write and upload report artifacts
//
// A fatal fetch error stops the run; the partial result is returned with it.
func (o *Orchestrator) Run(ctx context.Context, from, to uint64) (*RunResult, error) {
	if o.backtester == nil {
		return nil, ErrNoBacktester
	}
	result := &RunResult{}

	// Phase 1: Fetch
	if o.fetcher != nil {
		o.logger.WithFields(logrus.Fields{"from": from, "to": to}).Info("phase 1: fetching swaps")
		fr, err := o.fetcher.Fetch(ctx, from, to)
		result.Fetch = fr
		if err != nil {
			return result, fmt.Errorf("phase 1 (fetch) failed: %w", err)
		}
	} else {
		o.logger.Info("phase 1: skipped")
	}

	// Phase 2: Features
	if o.features != nil {
		o.logger.Info("phase 2: building features")
		fr, err := o.features.Run(ctx, o.venue, o.pool)
		if err != nil {
			return result, fmt.Errorf("phase 2 (features) failed: %w", err)
		}
		result.Features = fr
	} else {
		o.logger.Info("phase 2: skipped")
	}

	if o.verifier != nil {
		o.logger.Info("phase 2: verifying features")
		vr, err := o.verifier.Check(ctx, o.venue, o.pool)
		result.Verification = vr
		if err != nil {
			return result, fmt.Errorf("phase 2 (verify) failed: %w", err)
		}
		for _, c := range vr.Sufficiency.Checks {
			if !c.Pass {
				o.logger.WithFields(logrus.Fields{
					"check":     c.Name,
					"threshold": c.Threshold,
					"actual":    c.Actual,
				}).Warn("data sufficiency check failed")
			}
		}
	}

	// Phase 3: Backtest
	o.logger.Info("phase 3: backtesting")
	report, err := o.backtester.Run(ctx, o.pool)
	if err != nil {
		return result, fmt.Errorf("phase 3 (backtest) failed: %w", err)
	}
	result.Report = report

	// Phase 4: Reporting
	if o.outputDir == "" && o.uploader == nil {
		return result, nil
	}
	artifacts, err := o.generator.Render(report)
	if err != nil {
		return result, fmt.Errorf("phase 4 (render) failed: %w", err)
	}
	if o.outputDir != "" {
		files, err := reporting.WriteDir(o.outputDir, artifacts)
		result.Files = files
		if err != nil {
			return result, fmt.Errorf("phase 4 (write) failed: %w", err)
		}
		o.logger.WithField("dir", o.outputDir).Info("report written")
	}
	if o.uploader != nil {
		keys, err := reporting.Upload(ctx, o.uploader, path.Join(o.uploadPrefix, report.RunID), artifacts)
		result.Uploaded = keys
		if err != nil {
			return result, fmt.Errorf("phase 4 (upload) failed: %w", err)
		}
		o.logger.WithField("objects", len(keys)).Info("report archived")
	}

	return result, nil
}
