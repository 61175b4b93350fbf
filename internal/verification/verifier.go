// Package verification checks that a pool's stored feature table reproduces
// from its stored swap events, and that the pool has enough data to backtest.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/sirupsen/logrus"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/features"
	"dex-exec-lab/internal/sizing"
	"dex-exec-lab/internal/storage"
)

// FloatTolerance is the relative tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// maxReportedDivergences bounds Report.Results.
const maxReportedDivergences = 100

// ErrMismatch is returned by Check when the stored features diverge from a rebuild.
var ErrMismatch = errors.New("stored features do not match a rebuild from events")

// FieldDivergence represents a mismatch between stored and rebuilt values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // rebuilt value
}

// RecordResult lists the divergences of one feature row.
type RecordResult struct {
	BlockNumber uint64
	LogIndex    uint
	Divergences []FieldDivergence
}

// Report contains the outcome of verifying one pool.
type Report struct {
	Pool           string
	Events         int // stored swap events
	StoredRecords  int // rows in the feature table
	RebuiltRecords int // rows rebuilt from events
	Matched        int // rows equal within tolerance
	Divergent      int // rows present in both with differing fields
	Missing        int // rebuilt rows absent from the feature table
	Extra          int // stored rows with no source event
	Results        []RecordResult

	Sufficiency *SufficiencyResult
}

// Match reports whether the stored table equals the rebuild.
func (r *Report) Match() bool {
	return r.Divergent == 0 && r.Missing == 0 && r.Extra == 0
}

// Verifier rebuilds features in memory and compares them with the stored table.
type Verifier struct {
	events   storage.SwapEventStore
	features storage.FeatureStore
	decimals features.Decimals
	backtest sizing.Config
	logger   logrus.FieldLogger
}

// VerifierOptions contains configuration for creating a Verifier.
type VerifierOptions struct {
	Events   storage.SwapEventStore
	Features storage.FeatureStore
	Decimals features.Decimals
	// Backtest parameters drive the sufficiency thresholds.
	Backtest sizing.Config
	Logger   logrus.FieldLogger
}

// NewVerifier creates a new Verifier.
func NewVerifier(opts VerifierOptions) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Verifier{
		events:   opts.Events,
		features: opts.Features,
		decimals: opts.Decimals,
		backtest: opts.Backtest,
		logger:   logger.WithField("component", "verifier"),
	}
}

// VerifyPool compares the stored feature table of (venue, pool) with a rebuild
// from stored events and evaluates data sufficiency on the stored rows.
func (v *Verifier) VerifyPool(ctx context.Context, venue, pool string) (*Report, error) {
	events, err := v.events.ScanPool(ctx, venue, pool)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	rebuilt, err := features.Build(events, v.decimals)
	if err != nil {
		return nil, fmt.Errorf("rebuild features: %w", err)
	}
	stored, err := v.features.GetByPool(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}

	report := compareTables(stored, rebuilt)
	report.Pool = pool
	report.Events = len(events)
	report.Sufficiency = CheckSufficiency(stored, v.backtest)

	v.logger.WithFields(logrus.Fields{
		"pool":       pool,
		"stored":     report.StoredRecords,
		"rebuilt":    report.RebuiltRecords,
		"divergent":  report.Divergent,
		"missing":    report.Missing,
		"extra":      report.Extra,
		"sufficient": report.Sufficiency.AllPass,
	}).Info("verification complete")
	return report, nil
}

// Check runs VerifyPool and returns ErrMismatch when the tables differ.
func (v *Verifier) Check(ctx context.Context, venue, pool string) (*Report, error) {
	report, err := v.VerifyPool(ctx, venue, pool)
	if err != nil {
		return nil, err
	}
	if !report.Match() {
		return report, fmt.Errorf("%w: %d divergent, %d missing, %d extra",
			ErrMismatch, report.Divergent, report.Missing, report.Extra)
	}
	return report, nil
}

type recordKey struct {
	block uint64
	index uint
}

func compareTables(stored, rebuilt []*domain.FeatureRecord) *Report {
	report := &Report{StoredRecords: len(stored), RebuiltRecords: len(rebuilt)}

	byKey := make(map[recordKey]*domain.FeatureRecord, len(stored))
	for _, r := range stored {
		byKey[recordKey{r.BlockNumber, r.LogIndex}] = r
	}

	for _, want := range rebuilt {
		k := recordKey{want.BlockNumber, want.LogIndex}
		got, ok := byKey[k]
		if !ok {
			report.Missing++
			continue
		}
		delete(byKey, k)

		divergences := CompareFeatureRecords(got, want)
		if len(divergences) == 0 {
			report.Matched++
			continue
		}
		report.Divergent++
		if len(report.Results) < maxReportedDivergences {
			report.Results = append(report.Results, RecordResult{
				BlockNumber: want.BlockNumber,
				LogIndex:    want.LogIndex,
				Divergences: divergences,
			})
		}
	}
	report.Extra = len(byKey)
	return report
}

// CompareFeatureRecords compares a stored row with its rebuilt counterpart.
func CompareFeatureRecords(stored, rebuilt *domain.FeatureRecord) []FieldDivergence {
	var divergences []FieldDivergence

	floats := []struct {
		name string
		a, b *float64
	}{
		{"Price", stored.Price, rebuilt.Price},
		{"RefPrice", stored.RefPrice, rebuilt.RefPrice},
		{"ExecPrice", stored.ExecPrice, rebuilt.ExecPrice},
		{"Slippage", stored.Slippage, rebuilt.Slippage},
		{"TradeSize", stored.TradeSize, rebuilt.TradeSize},
		{"Z", stored.Z, rebuilt.Z},
	}
	for _, f := range floats {
		if !floatPtrEquals(f.a, f.b) {
			divergences = append(divergences, FieldDivergence{Field: f.name, Expected: deref(f.a), Actual: deref(f.b)})
		}
	}

	if !bigEquals(stored.Liquidity, rebuilt.Liquidity) {
		divergences = append(divergences, FieldDivergence{Field: "Liquidity", Expected: stored.Liquidity, Actual: rebuilt.Liquidity})
	}
	if !bigEquals(stored.LiquidityPrev, rebuilt.LiquidityPrev) {
		divergences = append(divergences, FieldDivergence{Field: "LiquidityPrev", Expected: stored.LiquidityPrev, Actual: rebuilt.LiquidityPrev})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance of the larger magnitude.
func floatEquals(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}

func bigEquals(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
