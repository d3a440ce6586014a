package ratemodel

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lendplanner/pkg/fixedpoint"
)

// JumpRate is the Compound-style kinked rate curve used by every supported
// Compound fork: linear in utilization up to the kink, then a steeper jump
// slope above it. All configured rates are annual; per-block rates are derived
// by dividing by BlocksPerYear.
type JumpRate struct {
	baseRate       decimal.Decimal
	multiplier     decimal.Decimal
	jumpMultiplier decimal.Decimal
	kink           decimal.Decimal
}

// NewJumpRate constructs a validated jump-rate model.
func NewJumpRate(baseRate, multiplier, jumpMultiplier, kink decimal.Decimal) (*JumpRate, error) {
	if baseRate.IsNegative() || multiplier.IsNegative() || jumpMultiplier.IsNegative() {
		return nil, errors.New("rate curve parameters must not be negative")
	}
	if kink.IsNegative() || kink.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("kink must be within [0, 1], got %s", kink.String())
	}

	return &JumpRate{
		baseRate:       baseRate,
		multiplier:     multiplier,
		jumpMultiplier: jumpMultiplier,
		kink:           kink,
	}, nil
}

// BorrowRatePerBlock rate charged to borrowers at the pool's current utilization.
func (j *JumpRate) BorrowRatePerBlock(cash, borrows, reserves decimal.Decimal) decimal.Decimal {
	util := UtilizationRate(cash, borrows, reserves)

	if util.LessThanOrEqual(j.kink) {
		return util.Mul(j.multiplierPerBlock()).Add(j.baseRatePerBlock()).Truncate(fixedpoint.MaxPrecision)
	}

	normalRate := j.kink.Mul(j.multiplierPerBlock()).Add(j.baseRatePerBlock())
	excessUtil := util.Sub(j.kink)
	return excessUtil.Mul(j.jumpMultiplierPerBlock()).Add(normalRate).Truncate(fixedpoint.MaxPrecision)
}

// SupplyRatePerBlock rate paid to suppliers: the borrow rate net of the reserve
// cut, scaled back down by utilization.
func (j *JumpRate) SupplyRatePerBlock(cash, borrows, reserves, reserveFactor decimal.Decimal) decimal.Decimal {
	util := UtilizationRate(cash, borrows, reserves)
	borrowRate := j.BorrowRatePerBlock(cash, borrows, reserves)
	rateToPool := borrowRate.Mul(decimal.NewFromInt(1).Sub(reserveFactor))
	return util.Mul(rateToPool).Truncate(fixedpoint.MaxPrecision)
}

func (j *JumpRate) baseRatePerBlock() decimal.Decimal {
	return j.baseRate.DivRound(BlocksPerYear, fixedpoint.MaxPrecision+1).Truncate(fixedpoint.MaxPrecision)
}

func (j *JumpRate) multiplierPerBlock() decimal.Decimal {
	return j.multiplier.DivRound(BlocksPerYear, fixedpoint.MaxPrecision+1).Truncate(fixedpoint.MaxPrecision)
}

func (j *JumpRate) jumpMultiplierPerBlock() decimal.Decimal {
	return j.jumpMultiplier.DivRound(BlocksPerYear, fixedpoint.MaxPrecision+1).Truncate(fixedpoint.MaxPrecision)
}
