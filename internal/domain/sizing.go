package domain

// SizingDecision is one row of the per-record sizing table produced by a backtest.
type SizingDecision struct {
	BlockNumber     uint64
	LogIndex        uint
	Z               float64
	TradeSize       float64
	AdverseSlippage float64
	Cap             *float64 // NULL when the policy has no cap yet (rolling warm-up)
	Scale           *float64 // min(1, cap/z), NULL when Cap is NULL
	EffectiveSize   *float64
	EffectiveCost   *float64
}

// CostSummary describes the distribution of a cost series.
// Only defined values contribute; Count == 0 means the series was empty.
type CostSummary struct {
	Name   string  `json:"name"`
	Count  int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"total"`
}

// PolicyOutcome compares one capped policy against the full-size baseline.
type PolicyOutcome struct {
	Policy           string      `json:"policy"`
	Baseline         CostSummary `json:"baseline"`
	Capped           CostSummary `json:"capped"`
	AvoidedCost      float64     `json:"avoided_cost"`
	ExecutedNotional float64     `json:"executed_notional_fraction"`
}

// TailRiskBin summarizes slippage tails for one z-quantile bin.
type TailRiskBin struct {
	ZLow  float64 `json:"z_low"`
	ZHigh float64 `json:"z_high"`
	Count int     `json:"count"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// CapSweepRow is one point of the static cap-quantile sweep.
type CapSweepRow struct {
	Quantile         float64 `json:"z_cap_quantile"`
	Cap              float64 `json:"z_cap"`
	P99Cost          float64 `json:"p99_cost_eff"`
	TotalCost        float64 `json:"total_cost_eff"`
	ExecutedNotional float64 `json:"notional_exec_frac"`
}

// BacktestReport is the structured output of one backtest run.
type BacktestReport struct {
	RunID string `json:"run_id"`
	Pool  string `json:"pool"`

	TrainFraction   float64 `json:"train_fraction"`
	StaticQuantile  float64 `json:"static_quantile"`
	RollingWindow   int     `json:"rolling_window"`
	RollingQuantile float64 `json:"rolling_quantile"`

	RowsLoaded  int `json:"rows_loaded"`
	RowsCleaned int `json:"rows_cleaned"`
	TrainRows   int `json:"train_rows"`
	EvalRows    int `json:"eval_rows"`

	StaticCap       float64 `json:"static_cap"`
	StaticCapSource string  `json:"static_cap_source"`

	// Static policy over the whole evaluation fraction.
	StaticFull PolicyOutcome `json:"static_full"`

	// Comparison restricted to rows where the rolling cap is defined.
	RollingEvaluable int           `json:"rolling_evaluable"`
	RollingCoverage  float64       `json:"rolling_coverage"`
	Static           PolicyOutcome `json:"static"`
	Rolling          PolicyOutcome `json:"rolling"`

	TailBins []TailRiskBin `json:"tail_bins,omitempty"`
	Sweep    []CapSweepRow `json:"sweep,omitempty"`

	StaticDecisions  []SizingDecision `json:"-"`
	RollingDecisions []SizingDecision `json:"-"`
}
