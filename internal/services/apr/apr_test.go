package apr

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/ratemodel"
)

var modelAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")

func testRegistry(t *testing.T) *ratemodel.Registry {
	t.Helper()

	model, err := ratemodel.NewJumpRate(
		decimal.RequireFromString("0.02"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("0.8"),
	)
	require.NoError(t, err)

	registry := ratemodel.NewRegistry()
	registry.Register(modelAddr, model)

	return registry
}

func testMarket(symbol, cash, borrows, price string) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Asset: domain.Asset{
			Address:  common.HexToAddress("0x00000000000000000000000000000000000000e1"),
			Symbol:   symbol,
			Decimals: 18,
		},
		Cash:          decimal.RequireFromString(cash),
		TotalBorrows:  decimal.RequireFromString(borrows),
		TotalReserves: decimal.Zero,
		ReserveFactor: decimal.RequireFromString("0.1"),
		Price:         decimal.RequireFromString(price),
		RateModelRef:  modelAddr,
	}
}

func TestPredictZeroDeltaMatchesObservedRates(t *testing.T) {
	predictor := NewPredictor(testRegistry(t))
	borrow := testMarket("USDC", "1000", "500", "1")
	collateral := testMarket("WETH", "2000", "400", "1")

	prediction, err := predictor.Predict(borrow, decimal.Zero, collateral, decimal.Zero, 100)
	require.NoError(t, err)

	model, err := ratemodel.NewJumpRate(
		decimal.RequireFromString("0.02"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("0.8"),
	)
	require.NoError(t, err)

	observedBorrow := model.BorrowRatePerBlock(borrow.Cash, borrow.TotalBorrows, borrow.TotalReserves)
	observedSupply := model.SupplyRatePerBlock(collateral.Cash, collateral.TotalBorrows, collateral.TotalReserves, collateral.ReserveFactor)

	require.True(t, prediction.BorrowRatePerBlock.Equal(observedBorrow))
	require.True(t, prediction.SupplyRatePerBlock.Equal(observedSupply))
	require.True(t, prediction.BorrowCostForPeriod.IsZero())
	require.True(t, prediction.SupplyIncomeForPeriod.IsZero())
}

func TestPredictBorrowRaisesRate(t *testing.T) {
	predictor := NewPredictor(testRegistry(t))
	borrow := testMarket("USDC", "1000", "500", "1")
	collateral := testMarket("WETH", "2000", "400", "1")

	small, err := predictor.Predict(borrow, decimal.NewFromInt(10), collateral, decimal.Zero, 1)
	require.NoError(t, err)
	large, err := predictor.Predict(borrow, decimal.NewFromInt(300), collateral, decimal.Zero, 1)
	require.NoError(t, err)

	require.True(t, large.BorrowRatePerBlock.GreaterThan(small.BorrowRatePerBlock),
		"more debt must raise the projected borrow rate: %s vs %s",
		large.BorrowRatePerBlock.String(), small.BorrowRatePerBlock.String())
}

func TestPredictSupplyDilutesRate(t *testing.T) {
	predictor := NewPredictor(testRegistry(t))
	borrow := testMarket("USDC", "1000", "500", "1")
	collateral := testMarket("WETH", "2000", "400", "1")

	small, err := predictor.Predict(borrow, decimal.Zero, collateral, decimal.NewFromInt(10), 1)
	require.NoError(t, err)
	large, err := predictor.Predict(borrow, decimal.Zero, collateral, decimal.NewFromInt(5000), 1)
	require.NoError(t, err)

	require.True(t, large.SupplyRatePerBlock.LessThan(small.SupplyRatePerBlock),
		"more collateral must dilute the projected supply rate")
}

func TestPredictRevaluesSupplyIncome(t *testing.T) {
	predictor := NewPredictor(testRegistry(t))
	borrow := testMarket("USDC", "1000", "500", "1")
	collateral := testMarket("WETH", "2000", "400", "2000")

	prediction, err := predictor.Predict(borrow, decimal.NewFromInt(100), collateral, decimal.NewFromInt(1), 1000)
	require.NoError(t, err)

	// income accrues in collateral units; at price 2000:1 the borrow-unit
	// figure is the collateral-unit figure times 2000
	inCollateralUnits := prediction.SupplyRatePerBlock.Mul(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(1000))
	expected := inCollateralUnits.Mul(decimal.NewFromInt(2000))

	diff := prediction.SupplyIncomeForPeriod.Sub(expected).Abs()
	require.True(t, diff.LessThan(decimal.New(1, -10)),
		"got %s, want about %s", prediction.SupplyIncomeForPeriod.String(), expected.String())
}

func TestPredictUnknownModel(t *testing.T) {
	predictor := NewPredictor(testRegistry(t))
	borrow := testMarket("USDC", "1000", "500", "1")
	borrow.RateModelRef = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	collateral := testMarket("WETH", "2000", "400", "1")

	_, err := predictor.Predict(borrow, decimal.Zero, collateral, decimal.Zero, 1)
	require.Error(t, err)
}
