// Package fixedpoint centralizes decimal-safe money math. Every cross-asset
// computation (price times amount, amount times rate) routes through here so
// that truncation happens in exactly one place: ratios are carried as integer
// mantissa plus decimal exponent, never as floating point.
package fixedpoint

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// MaxPrecision number of fractional digits kept after each multiply/divide.
	MaxPrecision int32 = 16
	// QuoteDecimals precision of the common price quote unit used by the
	// oracles of every supported protocol.
	QuoteDecimals int32 = 36
)

var (
	// ErrDivisionByZero denominator was zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// MulDiv computes a*b/denom with arbitrary-precision intermediates, truncated
// to MaxPrecision fractional digits. The full product is formed before the
// division, so no intermediate overflow or precision loss is possible.
func MulDiv(a, b, denom decimal.Decimal) (decimal.Decimal, error) {
	if denom.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	return a.Mul(b).DivRound(denom, MaxPrecision+1).Truncate(MaxPrecision), nil
}

// ScaleDecimals rescales a raw integer amount between token precisions.
// Scaling down truncates toward zero, matching on-chain integer division.
func ScaleDecimals(value decimal.Decimal, fromDecimals, toDecimals int32) decimal.Decimal {
	if fromDecimals == toDecimals {
		return value
	}
	return value.Shift(toDecimals - fromDecimals).Truncate(0)
}

// FromBigInt converts a raw on-chain integer amount into a decimal in
// human units.
func FromBigInt(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToBigInt converts a human-unit decimal back into a raw on-chain integer,
// truncating any sub-unit remainder.
func ToBigInt(value decimal.Decimal, decimals int32) *big.Int {
	return value.Shift(decimals).Truncate(0).BigInt()
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
