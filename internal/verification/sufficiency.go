package verification

import (
	"fmt"

	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/sizing"
)

// maxSufficiencyErrors bounds SufficiencyResult.Errors.
const maxSufficiencyErrors = 20

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check for one pool.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

func (r *SufficiencyResult) add(c SufficiencyCheck) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.AllPass = false
	}
}

// CheckSufficiency evaluates whether records support a backtest with cfg.
// Records must be the pool's feature table in stored order.
func CheckSufficiency(records []*domain.FeatureRecord, cfg sizing.Config) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true, Errors: []string{}}

	// Check 1: stored order is strictly ascending and unique
	check1, orderErrors := checkOrdering(records)
	result.add(check1)
	result.Errors = append(result.Errors, orderErrors...)

	obs := sizing.Clean(records)
	train, eval := sizing.Split(obs, cfg.TrainFraction)

	// Check 2: the cleaned sample splits into non-empty parts
	result.add(SufficiencyCheck{
		Name:      "Clean rows",
		Threshold: ">= 2",
		Actual:    fmt.Sprintf("%d of %d", len(obs), len(records)),
		Pass:      len(obs) >= 2 && len(train) > 0 && len(eval) > 0,
	})

	// Check 3: the rolling cap is defined somewhere in evaluation
	result.add(SufficiencyCheck{
		Name:      "Rolling evaluable rows",
		Threshold: fmt.Sprintf("> 0 (eval > window %d)", cfg.RollingWindow),
		Actual:    fmt.Sprintf("%d", max(len(eval)-cfg.RollingWindow, 0)),
		Pass:      len(eval) > cfg.RollingWindow,
	})

	// Check 4: enough rolling rows for stable tail metrics
	result.add(SufficiencyCheck{
		Name:      "Evaluation rows",
		Threshold: fmt.Sprintf(">= %d", cfg.RollingWindow+sizing.WarnMargin),
		Actual:    fmt.Sprintf("%d", len(eval)),
		Pass:      len(eval) >= cfg.RollingWindow+sizing.WarnMargin,
	})

	// Check 5: the sweep has rows to work with
	if cfg.Sweep {
		result.add(SufficiencyCheck{
			Name:      "Sweep rows",
			Threshold: fmt.Sprintf(">= %d", sizing.SweepMinRows),
			Actual:    fmt.Sprintf("%d", len(eval)),
			Pass:      len(eval) >= sizing.SweepMinRows,
		})
	}

	return result
}

// checkOrdering: (block, log index) strictly ascending, no duplicates.
func checkOrdering(records []*domain.FeatureRecord) (SufficiencyCheck, []string) {
	var errs []string
	violations := 0
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.BlockNumber < cur.BlockNumber ||
			(prev.BlockNumber == cur.BlockNumber && prev.LogIndex < cur.LogIndex) {
			continue
		}
		violations++
		if len(errs) < maxSufficiencyErrors {
			errs = append(errs, fmt.Sprintf("row %d: %d:%d not after %d:%d",
				i, cur.BlockNumber, cur.LogIndex, prev.BlockNumber, prev.LogIndex))
		}
	}
	return SufficiencyCheck{
		Name:      "Ordering violations",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", violations),
		Pass:      violations == 0,
	}, errs
}
