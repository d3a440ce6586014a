package domain

import "github.com/shopspring/decimal"

// RebalanceDirection is the action a rebalance plan instructs the caller to take.
type RebalanceDirection int

const (
	// RebalanceNoAction the position already sits at or cannot move toward the target.
	RebalanceNoAction RebalanceDirection = iota
	// RebalanceBorrowMore borrow additional funds against existing collateral.
	RebalanceBorrowMore
	// RebalanceRepayBorrowAsset repay part of the debt with borrow-asset funds.
	RebalanceRepayBorrowAsset
	// RebalanceRepayCollateralAsset repay by selling collateral.
	RebalanceRepayCollateralAsset
)

// String returns the string representation of the direction.
func (d RebalanceDirection) String() string {
	switch d {
	case RebalanceNoAction:
		return "no_action"
	case RebalanceBorrowMore:
		return "borrow_more"
	case RebalanceRepayBorrowAsset:
		return "repay_borrow_asset"
	case RebalanceRepayCollateralAsset:
		return "repay_collateral_asset"
	default:
		return "unknown"
	}
}

// RebalancePlan is the instruction produced by the rebalance engine. Amount is
// denominated in the asset implied by Direction: borrow asset for BorrowMore
// and RepayBorrowAsset, collateral asset for RepayCollateralAsset.
type RebalancePlan struct {
	Direction RebalanceDirection
	Amount    decimal.Decimal

	// ResultingHealthFactor estimate after notionally applying Amount.
	// Zero with Infinite set when the action would clear the debt entirely.
	ResultingHealthFactor decimal.Decimal
	Infinite              bool
}

// NoActionPlan returns the plan meaning "nothing to do".
func NoActionPlan(currentHealthFactor decimal.Decimal, infinite bool) RebalancePlan {
	return RebalancePlan{
		Direction:             RebalanceNoAction,
		ResultingHealthFactor: currentHealthFactor,
		Infinite:              infinite,
	}
}
