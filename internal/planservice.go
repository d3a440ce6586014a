// Package internal wires the conversion-plan builder, the rebalance engine and
// the decision journal into the service surface exposed by cmd and the web API.
package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/planner"
	"lendplanner/internal/services/rebalance"
)

type journal interface {
	SavePlan(event domain.PlanEvent) error
	SaveRebalance(event domain.RebalanceEvent) error
}

// PlanService is the single entry point callers use. It owns no market state;
// every call reads fresh snapshots through the providers wired into the
// builder and engine.
type PlanService struct {
	builder *planner.Builder
	engine  *rebalance.Engine
	journal journal
	l       *zap.Logger
}

// NewPlanService assembles the service. journal may be nil when auditing is
// disabled (tests, one-shot CLI runs).
func NewPlanService(l *zap.Logger, builder *planner.Builder, engine *rebalance.Engine, j journal) *PlanService {
	return &PlanService{
		builder: builder,
		engine:  engine,
		journal: j,
		l:       l,
	}
}

// BuildConversionPlan builds a plan and journals the outcome. Journal failures
// never fail the request; the plan is already computed and valid.
func (s *PlanService) BuildConversionPlan(ctx context.Context, req planner.Request) (domain.ConversionPlan, error) {
	plan, err := s.builder.Build(ctx, req)
	if err != nil {
		return domain.NullPlan(), err
	}

	if s.journal != nil {
		event := domain.PlanEvent{
			Time:      time.Now(),
			Pair:      req.Pair.String(),
			EntryKind: req.Kind.String(),
			AmountIn:  req.AmountIn,
			Null:      plan.IsNull(),
			Plan:      plan,
		}
		if err := s.journal.SavePlan(event); err != nil {
			s.l.Error("failed to journal plan event", zap.Error(err), zap.String("pair", event.Pair))
		}
	}

	return plan, nil
}

// ComputeRebalance computes a rebalance plan and journals the outcome,
// including health-factor rejections.
func (s *PlanService) ComputeRebalance(ctx context.Context, req rebalance.Request) (domain.RebalancePlan, error) {
	plan, err := s.engine.Compute(ctx, req)

	if s.journal != nil && req.Position != nil {
		event := domain.RebalanceEvent{
			Time:               time.Now(),
			Pair:               req.Position.Pair.String(),
			TargetHealthFactor: req.TargetHealthFactor,
		}
		if err != nil {
			event.Rejected = errors.Is(err, domain.ErrHealthFactorViolation)
			event.Reason = err.Error()
		} else {
			event.Direction = plan.Direction.String()
			event.Amount = plan.Amount
			event.ResultingHF = plan.ResultingHealthFactor
		}
		if jerr := s.journal.SaveRebalance(event); jerr != nil {
			s.l.Error("failed to journal rebalance event", zap.Error(jerr), zap.String("pair", event.Pair))
		}
	}

	return plan, err
}
