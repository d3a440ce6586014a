// Package entry implements the three allocation strategies that turn a single
// input amount into a (collateralAmount, amountToBorrow) pair.
package entry

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/capacity"
	"lendplanner/pkg/fixedpoint"
)

// Amounts is the resolved allocation, post-clamp.
type Amounts struct {
	CollateralAmount decimal.Decimal
	AmountToBorrow   decimal.Decimal
}

// Resolve converts amountIn into an allocation under the selected entry kind.
// The caller has already validated the request; snapshots carry current prices
// and thresholds, limits carry the capacity ceilings of the borrow market.
//
// The liquidation threshold used for sizing is the one reported by the borrow
// market. That source looks asymmetric but it is how every supported protocol
// reports the figure per-market, and both sides of the round-trip (kind 0 and
// kind 2) must read the same value to stay inverses of each other.
func Resolve(
	kind domain.EntryKind,
	amountIn decimal.Decimal,
	params domain.EntryParams,
	collateralMarket, borrowMarket *domain.MarketSnapshot,
	healthFactorTarget decimal.Decimal,
	limits capacity.Limits,
) (Amounts, error) {
	switch kind {
	case domain.EntryKindExactCollateralIn:
		return exactCollateralIn(amountIn, collateralMarket, borrowMarket, healthFactorTarget, limits)
	case domain.EntryKindExactBorrowOut:
		return exactBorrowOut(amountIn, collateralMarket, borrowMarket, healthFactorTarget, limits)
	case domain.EntryKindProportionSplit:
		return proportionSplit(amountIn, params, collateralMarket, borrowMarket, healthFactorTarget, limits)
	default:
		return Amounts{}, errors.Errorf("unsupported entry kind %s", kind.String())
	}
}

// exactCollateralIn locks the full input as collateral and borrows the maximum
// amount that keeps the position at the target health factor.
func exactCollateralIn(
	amountIn decimal.Decimal,
	collateralMarket, borrowMarket *domain.MarketSnapshot,
	healthFactorTarget decimal.Decimal,
	limits capacity.Limits,
) (Amounts, error) {
	collateralAmount := limits.ClampSupply(amountIn)

	amountToBorrow, err := BorrowAgainst(collateralAmount, collateralMarket, borrowMarket, healthFactorTarget)
	if err != nil {
		return Amounts{}, err
	}

	return Amounts{
		CollateralAmount: collateralAmount,
		AmountToBorrow:   limits.ClampBorrow(amountToBorrow),
	}, nil
}

// exactBorrowOut is the algebraic inverse of exactCollateralIn: given the
// desired borrow amount, find the minimum collateral that supports it.
func exactBorrowOut(
	amountIn decimal.Decimal,
	collateralMarket, borrowMarket *domain.MarketSnapshot,
	healthFactorTarget decimal.Decimal,
	limits capacity.Limits,
) (Amounts, error) {
	amountToBorrow := limits.ClampBorrow(amountIn)

	collateralAmount, err := fixedpoint.MulDiv(
		amountToBorrow.Mul(healthFactorTarget),
		borrowMarket.Price,
		borrowMarket.LiquidationThreshold.Mul(collateralMarket.Price),
	)
	if err != nil {
		return Amounts{}, errors.Wrap(err, "collateral for exact borrow")
	}

	return Amounts{
		CollateralAmount: limits.ClampSupply(collateralAmount),
		AmountToBorrow:   amountToBorrow,
	}, nil
}

// proportionSplit splits the input so that the converted part and the borrowed
// value stand in ratio X:Y. With a = threshold*X/(target*Y) the retained part
// is amountIn/(1+a); the borrow is then sized against it exactly like
// exactCollateralIn.
func proportionSplit(
	amountIn decimal.Decimal,
	params domain.EntryParams,
	collateralMarket, borrowMarket *domain.MarketSnapshot,
	healthFactorTarget decimal.Decimal,
	limits capacity.Limits,
) (Amounts, error) {
	a, err := fixedpoint.MulDiv(
		borrowMarket.LiquidationThreshold,
		params.ProportionX,
		healthFactorTarget.Mul(params.ProportionY),
	)
	if err != nil {
		return Amounts{}, errors.Wrap(err, "proportion coefficient")
	}

	collateralAmount, err := fixedpoint.MulDiv(
		amountIn,
		decimal.NewFromInt(1),
		decimal.NewFromInt(1).Add(a),
	)
	if err != nil {
		return Amounts{}, errors.Wrap(err, "proportion split")
	}
	collateralAmount = limits.ClampSupply(collateralAmount)

	amountToBorrow, err := BorrowAgainst(collateralAmount, collateralMarket, borrowMarket, healthFactorTarget)
	if err != nil {
		return Amounts{}, err
	}

	return Amounts{
		CollateralAmount: collateralAmount,
		AmountToBorrow:   limits.ClampBorrow(amountToBorrow),
	}, nil
}

// BorrowAgainst sizes the borrow that holds the target health factor for the
// given collateral: collateral * priceCollateral * threshold / (target * priceBorrow).
// Shared by the entry kinds and the rebalance engine.
func BorrowAgainst(
	collateralAmount decimal.Decimal,
	collateralMarket, borrowMarket *domain.MarketSnapshot,
	healthFactorTarget decimal.Decimal,
) (decimal.Decimal, error) {
	amount, err := fixedpoint.MulDiv(
		collateralAmount.Mul(borrowMarket.LiquidationThreshold),
		collateralMarket.Price,
		healthFactorTarget.Mul(borrowMarket.Price),
	)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "borrow sizing")
	}
	return amount, nil
}
