package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		denom    string
		expected string
	}{
		{name: "simple ratio", a: "1000", b: "0.85", denom: "2", expected: "425"},
		{name: "identity", a: "123.456", b: "1", denom: "1", expected: "123.456"},
		{name: "cross decimals", a: "0.000001", b: "1000000000000000000", denom: "1", expected: "1000000000000"},
		{name: "truncation", a: "1", b: "1", denom: "3", expected: "0.3333333333333333"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := decimal.RequireFromString(tc.a)
			b := decimal.RequireFromString(tc.b)
			denom := decimal.RequireFromString(tc.denom)

			got, err := MulDiv(a, b, denom)
			require.NoError(t, err)
			require.True(t, decimal.RequireFromString(tc.expected).Equal(got),
				"expected %s, got %s", tc.expected, got.String())
		})
	}
}

func TestMulDivZeroDenominator(t *testing.T) {
	_, err := MulDiv(decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.Zero)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// a*b/b must recover a within truncation tolerance
	properties.Property("mulDiv by same factor recovers input", prop.ForAll(
		func(a, b float64) bool {
			da := decimal.NewFromFloat(a)
			db := decimal.NewFromFloat(b)

			got, err := MulDiv(da, db, db)
			if err != nil {
				return false
			}
			diff := got.Sub(da).Abs()
			tolerance := da.Abs().Mul(decimal.New(1, -12)).Add(decimal.New(1, -12))
			return diff.LessThanOrEqual(tolerance)
		},
		gen.Float64Range(0.000001, 1e12),
		gen.Float64Range(0.000001, 1e12),
	))

	properties.TestingRun(t)
}

func TestScaleDecimals(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		from, to int32
		expected string
	}{
		{name: "6 to 18", value: "1000000", from: 6, to: 18, expected: "1000000000000000000"},
		{name: "18 to 6", value: "1000000000000000000", from: 18, to: 6, expected: "1000000"},
		{name: "18 to 6 truncates dust", value: "1000000999999999999", from: 18, to: 6, expected: "1000000"},
		{name: "same precision", value: "42", from: 8, to: 8, expected: "42"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ScaleDecimals(decimal.RequireFromString(tc.value), tc.from, tc.to)
			require.True(t, decimal.RequireFromString(tc.expected).Equal(got),
				"expected %s, got %s", tc.expected, got.String())
		})
	}
}

func TestBigIntConversion(t *testing.T) {
	raw := new(big.Int)
	raw.SetString("1234567890123456789", 10)

	value := FromBigInt(raw, 18)
	require.Equal(t, "1.234567890123456789", value.String())

	back := ToBigInt(value, 18)
	require.Zero(t, raw.Cmp(back))
}

func TestFromBigIntNil(t *testing.T) {
	require.True(t, FromBigInt(nil, 18).IsZero())
}

func TestMin(t *testing.T) {
	a := decimal.NewFromInt(3)
	b := decimal.NewFromInt(7)
	require.True(t, Min(a, b).Equal(a))
	require.True(t, Min(b, a).Equal(a))
	require.True(t, Min(a, a).Equal(a))
}
