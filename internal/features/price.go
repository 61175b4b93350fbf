package features

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals holds the token decimals of a pool's two assets.
type Decimals struct {
	Token0 int32
	Token1 int32
}

// floatPrec is the mantissa precision used for sqrt price arithmetic.
const floatPrec = 256

var q96 = new(big.Float).SetPrec(floatPrec).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// PriceFromSqrt converts a Q64.96 sqrt price into quote-per-base units:
//
//	p = (sqrtPriceX96 / 2^96)^2 * 10^(dec0 - dec1)
//	price = 1 / p
//
// Returns nil when p is non-positive or the result is not finite.
func PriceFromSqrt(sqrtPriceX96 *big.Int, dec Decimals) *float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil
	}

	r := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPriceX96)
	r.Quo(r, q96)
	p := new(big.Float).SetPrec(floatPrec).Mul(r, r)
	p.Mul(p, pow10(dec.Token0-dec.Token1))
	if p.Sign() <= 0 {
		return nil
	}

	inv := new(big.Float).SetPrec(floatPrec).Quo(big.NewFloat(1).SetPrec(floatPrec), p)
	v, _ := inv.Float64()
	return finite(v)
}

// pow10 returns 10^e for positive or negative e.
func pow10(e int32) *big.Float {
	n := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(absInt32(e))), nil)
	f := new(big.Float).SetPrec(floatPrec).SetInt(n)
	if e < 0 {
		return new(big.Float).SetPrec(floatPrec).Quo(big.NewFloat(1).SetPrec(floatPrec), f)
	}
	return f
}

// scaledAbs returns |amount| / 10^decimals, exact until the final conversion.
func scaledAbs(amount *big.Int, decimals int32) float64 {
	return decimal.NewFromBigInt(amount, -decimals).Abs().InexactFloat64()
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
