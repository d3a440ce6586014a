// Package capacity computes how much a market can absorb: the borrow-side
// ceiling from pool liquidity and the protocol borrow cap, and the supply-side
// ceiling, which none of the supported protocols actually impose.
package capacity

import (
	"github.com/shopspring/decimal"

	"lendplanner/internal/domain"
	"lendplanner/pkg/fixedpoint"
)

// Unlimited stands in for the absent supply cap. The protocols report
// type(uint256).max there; 1e59 is that magnitude after scaling an 18-decimal
// token down to human units, and no real amount ever reaches it.
var Unlimited = decimal.New(1, 59)

// Limits is the pair of ceilings for one borrow/collateral market pair.
type Limits struct {
	MaxAmountToBorrow decimal.Decimal
	MaxAmountToSupply decimal.Decimal
}

// ForMarket derives the limits from the borrow market snapshot.
//
// The borrow ceiling is liquidity-limited when the market has no cap, zero when
// the cap is already exceeded (fail closed), and min(cash, cap-borrows)
// otherwise. Supply is never capped by the protocols we integrate, so the
// supply ceiling is always Unlimited.
func ForMarket(borrowMarket *domain.MarketSnapshot) Limits {
	return Limits{
		MaxAmountToBorrow: maxBorrow(borrowMarket),
		MaxAmountToSupply: Unlimited,
	}
}

func maxBorrow(m *domain.MarketSnapshot) decimal.Decimal {
	if m.BorrowCap.IsZero() {
		return m.Cash
	}
	if m.TotalBorrows.GreaterThanOrEqual(m.BorrowCap) {
		return decimal.Zero
	}
	return fixedpoint.Min(m.Cash, m.BorrowCap.Sub(m.TotalBorrows))
}

// ClampBorrow clamps a proposed borrow amount to the borrow ceiling.
func (l Limits) ClampBorrow(amount decimal.Decimal) decimal.Decimal {
	return fixedpoint.Min(amount, l.MaxAmountToBorrow)
}

// ClampSupply clamps a proposed collateral amount to the supply ceiling.
func (l Limits) ClampSupply(amount decimal.Decimal) decimal.Decimal {
	return fixedpoint.Min(amount, l.MaxAmountToSupply)
}
