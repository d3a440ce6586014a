// Package rebalance computes the borrow-more or repay action that moves an
// open position's health factor to a target, and guards against actions that
// would degrade a healthy position beyond tolerance.
package rebalance

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lendplanner/internal/domain"
	"lendplanner/internal/metrics"
	"lendplanner/internal/services/capacity"
	"lendplanner/internal/services/entry"
	"lendplanner/pkg/fixedpoint"
)

type snapshotProvider interface {
	Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error)
}

// Request one rebalance computation. Direction and Amount are only consulted
// when the position sits below the target: repairing it needs funds the engine
// cannot see, so the caller states which asset it will repay with and how much.
type Request struct {
	Position           *domain.Position
	TargetHealthFactor decimal.Decimal
	Direction          domain.RebalanceDirection
	Amount             decimal.Decimal
}

// Engine computes rebalance plans. Stateless; concurrent calls on unrelated
// positions need no synchronization.
type Engine struct {
	markets      snapshotProvider
	minHF        decimal.Decimal
	maxReduction decimal.Decimal
	l            *zap.Logger
	m            *metrics.Metrics
}

// NewEngine wires the rebalance engine. maxReduction is the tolerated relative
// health-factor drop for an already-healthy position, e.g. 0.005 for 0.5%.
func NewEngine(l *zap.Logger, markets snapshotProvider, minHealthFactor, maxReduction decimal.Decimal,
	m *metrics.Metrics) *Engine {
	return &Engine{
		markets:      markets,
		minHF:        minHealthFactor,
		maxReduction: maxReduction,
		l:            l,
		m:            m,
	}
}

// Compute runs the Evaluate -> direction -> Validate machine for one request.
func (e *Engine) Compute(ctx context.Context, req Request) (domain.RebalancePlan, error) {
	if req.Position == nil {
		return domain.RebalancePlan{}, errors.Wrap(domain.ErrInvalidRequest, "position is required")
	}
	if !req.TargetHealthFactor.IsPositive() || req.TargetHealthFactor.LessThan(e.minHF) {
		return domain.RebalancePlan{}, errors.Wrapf(domain.ErrInvalidRequest,
			"target health factor %s below minimum %s", req.TargetHealthFactor.String(), e.minHF.String())
	}

	collateralMarket, err := e.markets.Snapshot(ctx, req.Position.Pair.Collateral)
	if err != nil {
		return domain.RebalancePlan{}, errors.Wrap(err, "collateral market")
	}
	borrowMarket, err := e.markets.Snapshot(ctx, req.Position.Pair.Borrow)
	if err != nil {
		return domain.RebalancePlan{}, errors.Wrap(err, "borrow market")
	}

	// the threshold source matches entry sizing: the borrow market reports it
	threshold := borrowMarket.LiquidationThreshold

	currentHF, hasDebt := req.Position.HealthFactor(collateralMarket.Price, borrowMarket.Price, threshold)
	if !hasDebt {
		return domain.NoActionPlan(decimal.Zero, true), nil
	}

	var plan domain.RebalancePlan
	switch {
	case currentHF.GreaterThan(req.TargetHealthFactor):
		plan, err = e.borrowMore(req, collateralMarket, borrowMarket, threshold)
	case currentHF.LessThan(req.TargetHealthFactor):
		plan, err = e.repay(req, collateralMarket, borrowMarket, threshold, currentHF)
	default:
		plan = domain.NoActionPlan(currentHF, false)
	}
	if err != nil {
		if errors.Is(err, domain.ErrHealthFactorViolation) && e.m != nil {
			e.m.RebalanceRejections.Inc()
		}
		return domain.RebalancePlan{}, err
	}

	if e.m != nil {
		e.m.RebalancePlans.WithLabelValues(plan.Direction.String()).Inc()
	}
	e.l.Info("rebalance plan computed",
		zap.String("pair", req.Position.Pair.String()),
		zap.String("direction", plan.Direction.String()),
		zap.String("amount", plan.Amount.String()),
		zap.String("current_hf", currentHF.String()),
		zap.String("target_hf", req.TargetHealthFactor.String()))

	return plan, nil
}

// borrowMore solves for the extra debt that brings the health factor down to
// the target, clamped to the borrow market's capacity. A partial rebalance on
// insufficient capacity is fine; a non-positive amount collapses to no action.
func (e *Engine) borrowMore(req Request, collateralMarket, borrowMarket *domain.MarketSnapshot,
	threshold decimal.Decimal) (domain.RebalancePlan, error) {

	targetDebt, err := entry.BorrowAgainst(req.Position.CollateralAmount,
		collateralMarket, borrowMarket, req.TargetHealthFactor)
	if err != nil {
		return domain.RebalancePlan{}, errors.Wrap(err, "target debt")
	}

	limits := capacity.ForMarket(borrowMarket)
	amount := limits.ClampBorrow(targetDebt.Sub(req.Position.DebtAmount))
	if !amount.IsPositive() {
		currentHF, _ := req.Position.HealthFactor(collateralMarket.Price, borrowMarket.Price, threshold)
		return domain.NoActionPlan(currentHF, false), nil
	}

	resulting := healthFactorFor(req.Position.CollateralAmount, req.Position.DebtAmount.Add(amount),
		collateralMarket.Price, borrowMarket.Price, threshold)

	return domain.RebalancePlan{
		Direction:             domain.RebalanceBorrowMore,
		Amount:                amount,
		ResultingHealthFactor: resulting,
	}, nil
}

// repay validates a caller-supplied repay amount. The engine does not solve
// for the amount here: the caller already knows how much liquidity is on hand.
func (e *Engine) repay(req Request, collateralMarket, borrowMarket *domain.MarketSnapshot,
	threshold, currentHF decimal.Decimal) (domain.RebalancePlan, error) {

	if req.Direction != domain.RebalanceRepayBorrowAsset && req.Direction != domain.RebalanceRepayCollateralAsset {
		return domain.RebalancePlan{}, errors.Wrapf(domain.ErrInvalidRequest,
			"position below target health factor, repay direction required, got %s", req.Direction.String())
	}
	if !req.Amount.IsPositive() {
		return domain.RebalancePlan{}, errors.Wrapf(domain.ErrInvalidRequest,
			"repay amount must be positive, got %s", req.Amount.String())
	}

	newCollateral := req.Position.CollateralAmount
	newDebt := req.Position.DebtAmount

	switch req.Direction {
	case domain.RebalanceRepayBorrowAsset:
		newDebt = newDebt.Sub(req.Amount)
	case domain.RebalanceRepayCollateralAsset:
		repaid, err := fixedpoint.MulDiv(req.Amount, collateralMarket.Price, borrowMarket.Price)
		if err != nil {
			return domain.RebalancePlan{}, errors.Wrap(err, "revalue repay amount")
		}
		newCollateral = newCollateral.Sub(req.Amount)
		newDebt = newDebt.Sub(repaid)
	}

	if newCollateral.IsNegative() {
		return domain.RebalancePlan{}, errors.Wrap(domain.ErrInvalidRequest,
			"repay amount exceeds position collateral")
	}

	if !newDebt.IsPositive() {
		// the action clears the debt entirely
		return domain.RebalancePlan{
			Direction: req.Direction,
			Amount:    req.Amount,
			Infinite:  true,
		}, nil
	}

	resulting := healthFactorFor(newCollateral, newDebt, collateralMarket.Price, borrowMarket.Price, threshold)

	// A healthy position must not be degraded beyond tolerance by a repair
	// action. A distressed one may take any corrective step: partial repairs of
	// a bad position are legitimate even when the immediate effect looks adverse.
	if currentHF.GreaterThanOrEqual(e.minHF) && resulting.LessThan(currentHF) {
		drop := currentHF.Sub(resulting)
		if drop.GreaterThan(currentHF.Mul(e.maxReduction)) {
			return domain.RebalancePlan{}, errors.Wrapf(domain.ErrHealthFactorViolation,
				"health factor would drop from %s to %s", currentHF.String(), resulting.String())
		}
	}

	return domain.RebalancePlan{
		Direction:             req.Direction,
		Amount:                req.Amount,
		ResultingHealthFactor: resulting,
	}, nil
}

func healthFactorFor(collateral, debt, priceCollateral, priceBorrow, threshold decimal.Decimal) decimal.Decimal {
	debtValue := debt.Mul(priceBorrow)
	if !debtValue.IsPositive() {
		return decimal.Zero
	}
	return collateral.Mul(priceCollateral).Mul(threshold).
		DivRound(debtValue, fixedpoint.MaxPrecision+1).Truncate(fixedpoint.MaxPrecision)
}
