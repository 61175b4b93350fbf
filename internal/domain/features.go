package domain

import "math/big"

// FeatureRecord holds per-swap execution features.
// Corresponds to swap_features table in ClickHouse / SQLite.
// Nil pointers are NULL: the value could not be derived for this row.
type FeatureRecord struct {
	Pool          string   // pool address
	BlockNumber   uint64   // block of the source swap
	LogIndex      uint     // log index of the source swap
	Price         *float64 // pool mid price (quote per base), NULL if non-finite/non-positive
	RefPrice      *float64 // previous row's Price, NULL if first row
	ExecPrice     *float64 // |amount0| / |amount1| in natural units, NULL if amount1 == 0
	Slippage      *float64 // (exec - ref) / ref, NULL if ref or exec undefined
	TradeSize     *float64 // |amount0| in token0 units
	Liquidity     *big.Int // pool liquidity at this swap
	LiquidityPrev *big.Int // previous row's Liquidity, NULL if first row
	Z             *float64 // trade_size / liquidity_prev, NULL if liquidity_prev undefined or zero
}
