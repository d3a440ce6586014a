package domain

import "github.com/shopspring/decimal"

// ConversionPlan is the immutable result of a plan request. A zero-valued plan
// (see NullPlan) signals "no plan available": a frozen or paused market, or an
// asset with no registered market. That outcome is deliberately distinct from a
// malformed request, which is an error.
type ConversionPlan struct {
	CollateralAmount decimal.Decimal
	AmountToBorrow   decimal.Decimal

	MaxAmountToBorrow decimal.Decimal
	MaxAmountToSupply decimal.Decimal

	// LTV echoed from the collateral market; LiquidationThreshold echoed from
	// the borrow market, matching how the underlying protocols report it.
	LTV                  decimal.Decimal
	LiquidationThreshold decimal.Decimal

	// BorrowCostForPeriod and SupplyIncomeForPeriod are both expressed in
	// borrow-asset units so the caller can compare them directly.
	BorrowCostForPeriod   decimal.Decimal
	SupplyIncomeForPeriod decimal.Decimal

	// CollateralValueInBorrowAsset collateral amount revalued at current prices.
	CollateralValueInBorrowAsset decimal.Decimal
}

// NullPlan returns the "no plan available" sentinel.
func NullPlan() ConversionPlan {
	return ConversionPlan{}
}

// IsNull reports whether the plan is the null sentinel.
func (p ConversionPlan) IsNull() bool {
	return p.CollateralAmount.IsZero() && p.AmountToBorrow.IsZero() &&
		p.MaxAmountToBorrow.IsZero() && p.MaxAmountToSupply.IsZero()
}
