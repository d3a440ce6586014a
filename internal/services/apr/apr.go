// Package apr predicts the interest rates a market pair would exhibit after a
// planned trade lands, and converts them into period cost/income figures.
package apr

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/ratemodel"
	"lendplanner/pkg/fixedpoint"
)

// Prediction period-accrued figures for one plan, both in borrow-asset units.
type Prediction struct {
	BorrowRatePerBlock  decimal.Decimal
	SupplyRatePerBlock  decimal.Decimal
	BorrowCostForPeriod decimal.Decimal
	// SupplyIncomeForPeriod accrues on the collateral market but is revalued
	// into borrow-asset units so cost and income share a currency.
	SupplyIncomeForPeriod decimal.Decimal
}

// Predictor resolves rate models and projects post-trade rates.
type Predictor struct {
	models *ratemodel.Registry
}

// NewPredictor creates a predictor over the given model registry.
func NewPredictor(models *ratemodel.Registry) *Predictor {
	return &Predictor{models: models}
}

// Predict projects the rates after amountToBorrow is added to the borrow
// market's debt and collateralAmount is added to the collateral market's cash.
// With both amounts zero the projected rates equal the currently observed ones.
func (p *Predictor) Predict(
	borrowMarket *domain.MarketSnapshot, amountToBorrow decimal.Decimal,
	collateralMarket *domain.MarketSnapshot, collateralAmount decimal.Decimal,
	periods int64,
) (Prediction, error) {
	borrowModel, err := p.models.Resolve(borrowMarket.RateModelRef)
	if err != nil {
		return Prediction{}, errors.Wrap(err, "borrow market rate model")
	}
	supplyModel, err := p.models.Resolve(collateralMarket.RateModelRef)
	if err != nil {
		return Prediction{}, errors.Wrap(err, "collateral market rate model")
	}

	// new debt raises utilization on the borrow side
	borrowRate := borrowModel.BorrowRatePerBlock(
		borrowMarket.Cash,
		borrowMarket.TotalBorrows.Add(amountToBorrow),
		borrowMarket.TotalReserves,
	)

	// new collateral dilutes the supply side
	supplyRate := supplyModel.SupplyRatePerBlock(
		collateralMarket.Cash.Add(collateralAmount),
		collateralMarket.TotalBorrows,
		collateralMarket.TotalReserves,
		collateralMarket.ReserveFactor,
	)

	periodCount := decimal.NewFromInt(periods)

	borrowCost := borrowRate.Mul(amountToBorrow).Mul(periodCount).Truncate(fixedpoint.MaxPrecision)

	supplyIncomeCollateral := supplyRate.Mul(collateralAmount).Mul(periodCount)
	supplyIncome, err := fixedpoint.MulDiv(supplyIncomeCollateral, collateralMarket.Price, borrowMarket.Price)
	if err != nil {
		return Prediction{}, errors.Wrap(err, "revalue supply income")
	}

	return Prediction{
		BorrowRatePerBlock:    borrowRate,
		SupplyRatePerBlock:    supplyRate,
		BorrowCostForPeriod:   borrowCost,
		SupplyIncomeForPeriod: supplyIncome,
	}, nil
}
