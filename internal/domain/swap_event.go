package domain

import "math/big"

// SwapEvent represents a decoded pool Swap log.
// Corresponds to swap_events table in PostgreSQL / SQLite.
// Identity is (Pool, BlockNumber, LogIndex); rows are append-only.
type SwapEvent struct {
	Venue          string   // chain/venue label, e.g. "arbitrum_42161"
	Pool           string   // checksummed pool address
	BlockNumber    uint64   // block containing the log
	LogIndex       uint     // log position within the block (ordering tie-break)
	TxHash         string   // transaction hash (0x-prefixed)
	Sender         string   // indexed sender address
	Recipient      string   // indexed recipient address
	Amount0        *big.Int // signed token0 delta from the pool's perspective
	Amount1        *big.Int // signed token1 delta from the pool's perspective
	SqrtPriceX96   *big.Int // post-trade sqrt price, Q64.96
	Liquidity      *big.Int // in-range liquidity after the trade
	Tick           int32    // post-trade tick
	BlockTimestamp int64    // Unix timestamp in seconds
}

// Before reports whether e sorts strictly before o in canonical stream order.
func (e *SwapEvent) Before(o *SwapEvent) bool {
	if e.BlockNumber != o.BlockNumber {
		return e.BlockNumber < o.BlockNumber
	}
	return e.LogIndex < o.LogIndex
}
