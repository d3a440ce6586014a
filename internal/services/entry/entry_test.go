package entry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/capacity"
)

func testMarkets(liquidationThreshold string) (*domain.MarketSnapshot, *domain.MarketSnapshot) {
	collateral := &domain.MarketSnapshot{
		Asset: domain.Asset{
			Address:  common.HexToAddress("0x00000000000000000000000000000000000000c1"),
			Symbol:   "WETH",
			Decimals: 18,
		},
		Price: decimal.NewFromInt(1),
	}
	borrow := &domain.MarketSnapshot{
		Asset: domain.Asset{
			Address:  common.HexToAddress("0x00000000000000000000000000000000000000b1"),
			Symbol:   "USDC",
			Decimals: 6,
		},
		Price:                decimal.NewFromInt(1),
		LiquidationThreshold: decimal.RequireFromString(liquidationThreshold),
	}

	return collateral, borrow
}

func openLimits() capacity.Limits {
	return capacity.Limits{
		MaxAmountToBorrow: capacity.Unlimited,
		MaxAmountToSupply: capacity.Unlimited,
	}
}

func TestExactCollateralIn(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)

	amounts, err := Resolve(domain.EntryKindExactCollateralIn, decimal.NewFromInt(1000),
		domain.EntryParams{}, collateral, borrow, target, openLimits())
	require.NoError(t, err)

	// 1000 * 0.85 / 2 = 425
	require.True(t, amounts.CollateralAmount.Equal(decimal.NewFromInt(1000)))
	require.True(t, amounts.AmountToBorrow.Equal(decimal.NewFromInt(425)),
		"got %s", amounts.AmountToBorrow.String())
}

func TestExactBorrowOut(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)

	amounts, err := Resolve(domain.EntryKindExactBorrowOut, decimal.NewFromInt(425),
		domain.EntryParams{}, collateral, borrow, target, openLimits())
	require.NoError(t, err)

	// inverse of the exact-collateral case: 425 * 2 / 0.85 = 1000
	require.True(t, amounts.AmountToBorrow.Equal(decimal.NewFromInt(425)))
	require.True(t, amounts.CollateralAmount.Equal(decimal.NewFromInt(1000)),
		"got %s", amounts.CollateralAmount.String())
}

func TestProportionSplit(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)

	amounts, err := Resolve(domain.EntryKindProportionSplit, decimal.NewFromInt(1000),
		domain.EntryParams{ProportionX: decimal.NewFromInt(1), ProportionY: decimal.NewFromInt(1)},
		collateral, borrow, target, openLimits())
	require.NoError(t, err)

	// only part of the input becomes collateral
	require.True(t, amounts.CollateralAmount.LessThan(decimal.NewFromInt(1000)))
	require.True(t, amounts.CollateralAmount.GreaterThan(decimal.Zero))

	// with 1:1 the converted part of the input equals the borrow,
	// so collateral + borrow re-assembles the input
	diff := amounts.CollateralAmount.Add(amounts.AmountToBorrow).Sub(decimal.NewFromInt(1000)).Abs()
	require.True(t, diff.LessThan(decimal.New(1, -10)),
		"collateral %s + borrowed %s should re-assemble the input",
		amounts.CollateralAmount.String(), amounts.AmountToBorrow.String())

	// the resulting position sits at the target health factor
	hf := amounts.CollateralAmount.Mul(decimal.RequireFromString("0.85")).Div(amounts.AmountToBorrow)
	require.True(t, hf.Sub(target).Abs().LessThan(decimal.New(1, -10)), "health factor %s", hf.String())
}

func TestProportionSplitSkewed(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)

	amounts, err := Resolve(domain.EntryKindProportionSplit, decimal.NewFromInt(1000),
		domain.EntryParams{ProportionX: decimal.NewFromInt(3), ProportionY: decimal.NewFromInt(1)},
		collateral, borrow, target, openLimits())
	require.NoError(t, err)

	// X:Y = 3:1 converts three value units of input per borrowed unit
	converted := decimal.NewFromInt(1000).Sub(amounts.CollateralAmount)
	ratio := converted.Div(amounts.AmountToBorrow)
	require.True(t, ratio.Sub(decimal.NewFromInt(3)).Abs().LessThan(decimal.New(1, -10)),
		"ratio %s", ratio.String())
}

func TestResolveCapacityClamp(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)
	limits := capacity.Limits{
		MaxAmountToBorrow: decimal.NewFromInt(100),
		MaxAmountToSupply: capacity.Unlimited,
	}

	amounts, err := Resolve(domain.EntryKindExactCollateralIn, decimal.NewFromInt(1000),
		domain.EntryParams{}, collateral, borrow, target, limits)
	require.NoError(t, err)

	require.True(t, amounts.AmountToBorrow.Equal(decimal.NewFromInt(100)),
		"borrow must not exceed the ceiling, got %s", amounts.AmountToBorrow.String())
	require.True(t, amounts.CollateralAmount.Equal(decimal.NewFromInt(1000)))
}

func TestResolveExhaustedBorrowCeiling(t *testing.T) {
	collateral, borrow := testMarkets("0.85")
	target := decimal.NewFromInt(2)
	exhausted := capacity.Limits{
		MaxAmountToBorrow: decimal.Zero,
		MaxAmountToSupply: capacity.Unlimited,
	}

	cases := []struct {
		name   string
		kind   domain.EntryKind
		params domain.EntryParams
	}{
		{"exact collateral in", domain.EntryKindExactCollateralIn, domain.EntryParams{}},
		{"proportion split", domain.EntryKindProportionSplit,
			domain.EntryParams{ProportionX: decimal.NewFromInt(1), ProportionY: decimal.NewFromInt(1)}},
		{"exact borrow out", domain.EntryKindExactBorrowOut, domain.EntryParams{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			amounts, err := Resolve(c.kind, decimal.NewFromInt(1000),
				c.params, collateral, borrow, target, exhausted)
			require.NoError(t, err)
			require.True(t, amounts.AmountToBorrow.IsZero(),
				"borrow must be zero when the ceiling is exhausted, got %s",
				amounts.AmountToBorrow.String())
		})
	}
}

func TestResolveUnknownKind(t *testing.T) {
	collateral, borrow := testMarkets("0.85")

	_, err := Resolve(domain.EntryKind(42), decimal.NewFromInt(1000),
		domain.EntryParams{}, collateral, borrow, decimal.NewFromInt(2), openLimits())
	require.Error(t, err)
}

func TestExactKindsAreInverses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("collateral survives the borrow round-trip", prop.ForAll(
		func(amountIn, threshold, target float64) bool {
			collateral, borrow := testMarkets("0.85")
			borrow.LiquidationThreshold = decimal.NewFromFloat(threshold)
			in := decimal.NewFromFloat(amountIn)
			hf := decimal.NewFromFloat(target)

			forward, err := Resolve(domain.EntryKindExactCollateralIn, in,
				domain.EntryParams{}, collateral, borrow, hf, openLimits())
			if err != nil {
				return false
			}
			back, err := Resolve(domain.EntryKindExactBorrowOut, forward.AmountToBorrow,
				domain.EntryParams{}, collateral, borrow, hf, openLimits())
			if err != nil {
				return false
			}

			diff := back.CollateralAmount.Sub(in).Abs()
			tolerance := in.Mul(decimal.New(1, -12))
			return diff.LessThanOrEqual(tolerance)
		},
		gen.Float64Range(1, 1e9),
		gen.Float64Range(0.1, 0.95),
		gen.Float64Range(1.05, 5),
	))

	properties.TestingRun(t)
}
