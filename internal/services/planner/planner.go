// Package planner assembles conversion plans: capacity limits, entry-kind
// resolution and rate prediction composed into one immutable result.
package planner

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lendplanner/internal/domain"
	"lendplanner/internal/metrics"
	"lendplanner/internal/services/apr"
	"lendplanner/internal/services/capacity"
	"lendplanner/internal/services/entry"
	"lendplanner/pkg/fixedpoint"
)

type snapshotProvider interface {
	// Snapshot returns the market view for the asset, or domain.ErrMarketNotFound
	// when the asset has no registered market.
	Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error)
}

// Request is one conversion-plan request. AmountIn is denominated in the
// collateral asset for kinds 0 and 1 and in the borrow asset for kind 2.
type Request struct {
	Pair               domain.AssetPair
	AmountIn           decimal.Decimal
	Kind               domain.EntryKind
	Params             domain.EntryParams
	HealthFactorTarget decimal.Decimal
	// Periods number of blocks the cost/income projection covers.
	Periods int64
}

// Builder builds conversion plans. Stateless between calls; safe for
// concurrent use on unrelated inputs.
type Builder struct {
	markets   snapshotProvider
	predictor *apr.Predictor
	minHF     decimal.Decimal
	l         *zap.Logger
	m         *metrics.Metrics
}

// NewBuilder wires the plan builder. minHealthFactor is configuration, not a
// compiled-in constant, so tolerances stay testable.
func NewBuilder(l *zap.Logger, markets snapshotProvider, predictor *apr.Predictor,
	minHealthFactor decimal.Decimal, m *metrics.Metrics) *Builder {
	return &Builder{
		markets:   markets,
		predictor: predictor,
		minHF:     minHealthFactor,
		l:         l,
		m:         m,
	}
}

// Build produces the plan for the request. Malformed input returns an error
// wrapping domain.ErrInvalidRequest; a frozen, paused or unregistered market
// returns the null plan with no error.
func (b *Builder) Build(ctx context.Context, req Request) (domain.ConversionPlan, error) {
	if err := b.validate(req); err != nil {
		if b.m != nil {
			b.m.InvalidRequests.Inc()
		}
		return domain.NullPlan(), err
	}

	collateralMarket, borrowMarket, ok, err := b.fetchPair(ctx, req.Pair)
	if err != nil {
		return domain.NullPlan(), err
	}
	if !ok {
		if b.m != nil {
			b.m.NullPlans.Inc()
		}
		b.l.Info("no plan available",
			zap.String("pair", req.Pair.String()),
			zap.String("entry_kind", req.Kind.String()))
		return domain.NullPlan(), nil
	}

	limits := capacity.ForMarket(borrowMarket)

	amounts, err := entry.Resolve(req.Kind, req.AmountIn, req.Params,
		collateralMarket, borrowMarket, req.HealthFactorTarget, limits)
	if err != nil {
		return domain.NullPlan(), errors.Wrapf(err, "resolve entry kind %s", req.Kind.String())
	}

	// rates are projected for the final, clamped amounts
	prediction, err := b.predictor.Predict(borrowMarket, amounts.AmountToBorrow,
		collateralMarket, amounts.CollateralAmount, req.Periods)
	if err != nil {
		return domain.NullPlan(), errors.Wrap(err, "predict rates")
	}

	collateralValue, err := fixedpoint.MulDiv(amounts.CollateralAmount,
		collateralMarket.Price, borrowMarket.Price)
	if err != nil {
		return domain.NullPlan(), errors.Wrap(err, "revalue collateral")
	}

	if b.m != nil {
		b.m.PlansBuilt.WithLabelValues(req.Kind.String()).Inc()
	}

	return domain.ConversionPlan{
		CollateralAmount:             amounts.CollateralAmount,
		AmountToBorrow:               amounts.AmountToBorrow,
		MaxAmountToBorrow:            limits.MaxAmountToBorrow,
		MaxAmountToSupply:            limits.MaxAmountToSupply,
		LTV:                          collateralMarket.CollateralFactor,
		LiquidationThreshold:         borrowMarket.LiquidationThreshold,
		BorrowCostForPeriod:          prediction.BorrowCostForPeriod,
		SupplyIncomeForPeriod:        prediction.SupplyIncomeForPeriod,
		CollateralValueInBorrowAsset: collateralValue,
	}, nil
}

// validate rejects malformed requests before any market read. A rejected
// request is an error, never a null plan.
func (b *Builder) validate(req Request) error {
	switch {
	case req.Pair.Collateral.IsZero():
		return errors.Wrap(domain.ErrInvalidRequest, "collateral asset is zero")
	case req.Pair.Borrow.IsZero():
		return errors.Wrap(domain.ErrInvalidRequest, "borrow asset is zero")
	case !req.AmountIn.IsPositive():
		return errors.Wrapf(domain.ErrInvalidRequest, "amount in must be positive, got %s", req.AmountIn.String())
	case req.Periods <= 0:
		return errors.Wrapf(domain.ErrInvalidRequest, "periods must be positive, got %d", req.Periods)
	case req.HealthFactorTarget.LessThan(b.minHF):
		return errors.Wrapf(domain.ErrInvalidRequest, "health factor target %s below minimum %s",
			req.HealthFactorTarget.String(), b.minHF.String())
	case !req.Kind.Valid():
		return errors.Wrapf(domain.ErrInvalidRequest, "unknown entry kind %d", int(req.Kind))
	}

	if err := req.Params.Validate(req.Kind); err != nil {
		return errors.Wrap(domain.ErrInvalidRequest, err.Error())
	}
	return nil
}

// fetchPair reads both snapshots. ok is false when the pair cannot produce a
// plan: unregistered asset, frozen market, or the relevant pause flag set.
func (b *Builder) fetchPair(ctx context.Context, pair domain.AssetPair) (collateral, borrow *domain.MarketSnapshot, ok bool, err error) {
	collateral, err = b.markets.Snapshot(ctx, pair.Collateral)
	if errors.Is(err, domain.ErrMarketNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, errors.Wrapf(err, "collateral market %s", pair.Collateral.String())
	}

	borrow, err = b.markets.Snapshot(ctx, pair.Borrow)
	if errors.Is(err, domain.ErrMarketNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, errors.Wrapf(err, "borrow market %s", pair.Borrow.String())
	}

	if err := collateral.Validate(); err != nil {
		return nil, nil, false, err
	}
	if err := borrow.Validate(); err != nil {
		return nil, nil, false, err
	}

	if !collateral.Usable() || !borrow.Usable() ||
		collateral.MintPaused || borrow.BorrowPaused {
		return nil, nil, false, nil
	}

	return collateral, borrow, true, nil
}
