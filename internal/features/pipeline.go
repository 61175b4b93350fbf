// Package features derives per-trade execution features from an ordered swap stream.
package features

import (
	"fmt"
	"math/big"

	"dex-exec-lab/internal/domain"
)

// Accumulator is the one-record state carried between steps.
// It always holds the literal predecessor's values, including nil.
type Accumulator struct {
	PrevPrice     *float64
	PrevLiquidity *big.Int
}

// Step derives the FeatureRecord of ev given the predecessor state.
// It is pure: acc and ev are not modified.
//
// Formulas:
//   - price = 1 / ((sqrtPriceX96 / 2^96)^2 * 10^(dec0 - dec1)), NULL if not finite positive
//   - trade_size = |amount0| / 10^dec0
//   - exec_price = trade_size / (|amount1| / 10^dec1), NULL if amount1 == 0
//   - slippage = (exec_price - ref_price) / ref_price, NULL if either is NULL or ref_price == 0
//   - z = trade_size / liquidity_prev, NULL if liquidity_prev is NULL or zero
func Step(acc Accumulator, ev *domain.SwapEvent, dec Decimals) (Accumulator, domain.FeatureRecord) {
	price := PriceFromSqrt(ev.SqrtPriceX96, dec)
	size := scaledAbs(ev.Amount0, dec.Token0)

	var exec *float64
	if ev.Amount1.Sign() != 0 {
		exec = finite(size / scaledAbs(ev.Amount1, dec.Token1))
	}

	var slippage *float64
	if exec != nil && acc.PrevPrice != nil && *acc.PrevPrice != 0 {
		slippage = finite((*exec - *acc.PrevPrice) / *acc.PrevPrice)
	}

	var z *float64
	if acc.PrevLiquidity != nil && acc.PrevLiquidity.Sign() > 0 {
		liq, _ := new(big.Float).SetInt(acc.PrevLiquidity).Float64()
		z = finite(size / liq)
	}

	rec := domain.FeatureRecord{
		Pool:          ev.Pool,
		BlockNumber:   ev.BlockNumber,
		LogIndex:      ev.LogIndex,
		Price:         price,
		RefPrice:      copyFloat(acc.PrevPrice),
		ExecPrice:     exec,
		Slippage:      slippage,
		TradeSize:     &size,
		Liquidity:     copyInt(ev.Liquidity),
		LiquidityPrev: copyInt(acc.PrevLiquidity),
		Z:             z,
	}

	next := Accumulator{
		PrevPrice:     copyFloat(price),
		PrevLiquidity: copyInt(ev.Liquidity),
	}
	return next, rec
}

// Validate checks every event for required fields and strict ordering
// before any record is derived.
func Validate(events []*domain.SwapEvent) error {
	for i, ev := range events {
		if err := validateEvent(ev); err != nil {
			return err
		}
		if i > 0 && !events[i-1].Before(ev) {
			return fmt.Errorf("event %d:%d after %d:%d: %w",
				ev.BlockNumber, ev.LogIndex, events[i-1].BlockNumber, events[i-1].LogIndex, ErrOutOfOrder)
		}
	}
	return nil
}

func validateEvent(ev *domain.SwapEvent) error {
	missing := ""
	switch {
	case ev.SqrtPriceX96 == nil:
		missing = "sqrt_price_x96"
	case ev.Liquidity == nil:
		missing = "liquidity"
	case ev.Amount0 == nil:
		missing = "amount0"
	case ev.Amount1 == nil:
		missing = "amount1"
	}
	if missing != "" {
		return &SchemaError{Field: missing, Block: ev.BlockNumber, LogIndex: ev.LogIndex}
	}
	return nil
}

// Build validates events and folds Step over them in one forward pass.
func Build(events []*domain.SwapEvent, dec Decimals) ([]*domain.FeatureRecord, error) {
	return build(events, dec, nil)
}

func build(events []*domain.SwapEvent, dec Decimals, progress func(done int)) ([]*domain.FeatureRecord, error) {
	if err := Validate(events); err != nil {
		return nil, err
	}

	records := make([]*domain.FeatureRecord, 0, len(events))
	var acc Accumulator
	for i, ev := range events {
		var rec domain.FeatureRecord
		acc, rec = Step(acc, ev, dec)
		records = append(records, &rec)
		if progress != nil {
			progress(i + 1)
		}
	}
	return records, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
