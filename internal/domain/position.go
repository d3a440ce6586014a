package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is a read-only snapshot of an open borrow, as tracked by the
// external position contract. The engine never mutates it.
type Position struct {
	Pair             AssetPair
	CollateralAmount decimal.Decimal
	DebtAmount       decimal.Decimal
}

// NewPosition constructs a validated position snapshot.
func NewPosition(pair AssetPair, collateralAmount, debtAmount decimal.Decimal) (*Position, error) {
	if pair.Collateral.IsZero() || pair.Borrow.IsZero() {
		return nil, errors.New("position requires both collateral and borrow assets")
	}
	if collateralAmount.IsNegative() {
		return nil, errors.New("collateral amount must not be negative")
	}
	if debtAmount.IsNegative() {
		return nil, errors.New("debt amount must not be negative")
	}

	return &Position{
		Pair:             pair,
		CollateralAmount: collateralAmount,
		DebtAmount:       debtAmount,
	}, nil
}

// HealthFactor computes the risk-adjusted collateral-to-debt ratio at the given
// prices and liquidation threshold. The second return value is false when the
// position has no debt, i.e. the health factor is infinite.
func (p *Position) HealthFactor(priceCollateral, priceBorrow, liquidationThreshold decimal.Decimal) (decimal.Decimal, bool) {
	if p == nil || !p.DebtAmount.IsPositive() {
		return decimal.Zero, false
	}

	debtValue := p.DebtAmount.Mul(priceBorrow)
	if debtValue.IsZero() {
		return decimal.Zero, false
	}

	collateralValue := p.CollateralAmount.Mul(priceCollateral).Mul(liquidationThreshold)
	return collateralValue.Div(debtValue), true
}

// HasDebt reports whether there is anything to rebalance.
func (p *Position) HasDebt() bool {
	return p != nil && p.DebtAmount.IsPositive()
}
