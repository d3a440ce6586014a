package ratemodel

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *JumpRate {
	t.Helper()
	model, err := NewJumpRate(
		decimal.RequireFromString("0.02"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("0.8"),
	)
	require.NoError(t, err)
	return model
}

func TestNewJumpRateValidation(t *testing.T) {
	_, err := NewJumpRate(decimal.NewFromInt(-1), decimal.Zero, decimal.Zero, decimal.Zero)
	require.Error(t, err)

	_, err = NewJumpRate(decimal.Zero, decimal.Zero, decimal.Zero, decimal.NewFromInt(2))
	require.Error(t, err)
}

func TestUtilizationRate(t *testing.T) {
	tests := []struct {
		name                  string
		cash, borrows, reserves string
		expected              string
	}{
		{name: "half utilized", cash: "500", borrows: "500", reserves: "0", expected: "0.5"},
		{name: "empty pool", cash: "0", borrows: "0", reserves: "0", expected: "0"},
		{name: "reserves shrink pool", cash: "600", borrows: "500", reserves: "100", expected: "0.5"},
		{name: "fully borrowed", cash: "0", borrows: "100", reserves: "0", expected: "1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := UtilizationRate(
				decimal.RequireFromString(tc.cash),
				decimal.RequireFromString(tc.borrows),
				decimal.RequireFromString(tc.reserves),
			)
			require.True(t, decimal.RequireFromString(tc.expected).Equal(got),
				"expected %s, got %s", tc.expected, got.String())
		})
	}
}

func TestBorrowRateBelowKinkIsLinear(t *testing.T) {
	model := testModel(t)

	cash := decimal.NewFromInt(1000)
	reserves := decimal.Zero

	rateAtZero := model.BorrowRatePerBlock(cash, decimal.Zero, reserves)
	rateAtHalf := model.BorrowRatePerBlock(cash, decimal.NewFromInt(1000), reserves) // 50% util

	// base rate per block at zero utilization
	expectedBase := decimal.RequireFromString("0.02").
		DivRound(BlocksPerYear, 17).Truncate(16)
	require.True(t, rateAtZero.Equal(expectedBase))
	require.True(t, rateAtHalf.GreaterThan(rateAtZero))
}

func TestBorrowRateJumpAboveKink(t *testing.T) {
	model := testModel(t)

	reserves := decimal.Zero

	// 80% utilization sits exactly at the kink, 90% above it
	rateAtKink := model.BorrowRatePerBlock(decimal.NewFromInt(200), decimal.NewFromInt(800), reserves)
	rateAbove := model.BorrowRatePerBlock(decimal.NewFromInt(100), decimal.NewFromInt(900), reserves)

	slopeBelow := rateAtKink.Sub(model.BorrowRatePerBlock(decimal.NewFromInt(300), decimal.NewFromInt(700), reserves))
	slopeAbove := rateAbove.Sub(rateAtKink)

	// same 10-point utilization step, much steeper slope above the kink
	require.True(t, slopeAbove.GreaterThan(slopeBelow))
}

func TestBorrowRateMonotonicInBorrows(t *testing.T) {
	model := testModel(t)

	cash := decimal.NewFromInt(1000)
	prev := model.BorrowRatePerBlock(cash, decimal.Zero, decimal.Zero)

	for borrows := int64(100); borrows <= 1000; borrows += 100 {
		rate := model.BorrowRatePerBlock(cash, decimal.NewFromInt(borrows), decimal.Zero)
		require.True(t, rate.GreaterThan(prev), "rate must rise with borrows, at %d", borrows)
		prev = rate
	}
}

func TestSupplyRateBelowBorrowRate(t *testing.T) {
	model := testModel(t)

	cash := decimal.NewFromInt(500)
	borrows := decimal.NewFromInt(500)
	reserveFactor := decimal.RequireFromString("0.1")

	borrowRate := model.BorrowRatePerBlock(cash, borrows, decimal.Zero)
	supplyRate := model.SupplyRatePerBlock(cash, borrows, decimal.Zero, reserveFactor)

	require.True(t, supplyRate.LessThan(borrowRate))
	require.True(t, supplyRate.IsPositive())
}

func TestSupplyRateDecreasesWithCash(t *testing.T) {
	model := testModel(t)

	borrows := decimal.NewFromInt(500)
	prev := model.SupplyRatePerBlock(decimal.NewFromInt(500), borrows, decimal.Zero, decimal.RequireFromString("0.1"))

	for cash := int64(600); cash <= 1500; cash += 100 {
		rate := model.SupplyRatePerBlock(decimal.NewFromInt(cash), borrows, decimal.Zero, decimal.RequireFromString("0.1"))
		require.True(t, rate.LessThan(prev), "supply rate must fall as cash dilutes the pool, at %d", cash)
		prev = rate
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	model := testModel(t)

	ref := common.HexToAddress("0x0000000000000000000000000000000000000001")
	registry.Register(ref, model)

	resolved, err := registry.Resolve(ref)
	require.NoError(t, err)
	require.Equal(t, Model(model), resolved)

	_, err = registry.Resolve(common.HexToAddress("0x0000000000000000000000000000000000000002"))
	require.Error(t, err)
}
