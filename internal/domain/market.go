package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MarketSnapshot is a point-in-time view of one lending market. All fields are
// taken from a single atomic read of the market; the snapshot is never mutated
// and is discarded after the plan or rebalance request it was built for.
//
// Pool balances are expressed in underlying-asset units, already scaled down by
// the asset's decimals. Price is the asset price in the common quote unit,
// normalized from the oracle's 36-decimal representation.
type MarketSnapshot struct {
	Asset Asset

	Cash          decimal.Decimal
	TotalBorrows  decimal.Decimal
	TotalReserves decimal.Decimal

	// CollateralFactor market LTV as a fraction, e.g. 0.80.
	CollateralFactor decimal.Decimal
	// LiquidationThreshold per-market threshold as a fraction, always >= CollateralFactor.
	LiquidationThreshold decimal.Decimal
	// ReserveFactor share of borrow interest diverted to reserves.
	ReserveFactor decimal.Decimal

	// BorrowCap protocol ceiling on total borrows; zero means unlimited.
	BorrowCap decimal.Decimal

	Price decimal.Decimal

	MintPaused   bool
	BorrowPaused bool
	Frozen       bool

	// RateModelRef opaque handle identifying the interest rate model of the
	// market; resolved by the rate-model registry.
	RateModelRef common.Address
}

// Validate checks internal consistency of the snapshot.
func (m *MarketSnapshot) Validate() error {
	if m.Asset.IsZero() {
		return errors.New("market snapshot has no asset")
	}
	if m.Cash.IsNegative() || m.TotalBorrows.IsNegative() || m.TotalReserves.IsNegative() {
		return errors.Errorf("market %s has negative pool balances", m.Asset.String())
	}
	if m.Price.IsNegative() {
		return errors.Errorf("market %s has negative price", m.Asset.String())
	}
	if m.LiquidationThreshold.LessThan(m.CollateralFactor) {
		return errors.Errorf("market %s liquidation threshold %s below collateral factor %s",
			m.Asset.String(), m.LiquidationThreshold.String(), m.CollateralFactor.String())
	}
	return nil
}

// Usable reports whether the market can participate in a new plan at all.
func (m *MarketSnapshot) Usable() bool {
	return !m.Frozen
}
