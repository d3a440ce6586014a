package internal

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/apr"
	"lendplanner/internal/services/markets"
	"lendplanner/internal/services/planner"
	"lendplanner/internal/services/ratemodel"
	"lendplanner/internal/services/rebalance"
)

var (
	wethAddr  = common.HexToAddress("0x0000000000000000000000000000000000000401")
	usdcAddr  = common.HexToAddress("0x0000000000000000000000000000000000000402")
	modelAddr = common.HexToAddress("0x0000000000000000000000000000000000000403")
)

type recordingJournal struct {
	plans      []domain.PlanEvent
	rebalances []domain.RebalanceEvent
	fail       bool
}

func (j *recordingJournal) SavePlan(event domain.PlanEvent) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.plans = append(j.plans, event)
	return nil
}

func (j *recordingJournal) SaveRebalance(event domain.RebalanceEvent) error {
	if j.fail {
		return errors.New("disk full")
	}
	j.rebalances = append(j.rebalances, event)
	return nil
}

func testService(t *testing.T, j journal) *PlanService {
	t.Helper()

	weth := domain.Asset{Address: wethAddr, Symbol: "WETH", Decimals: 18}
	usdc := domain.Asset{Address: usdcAddr, Symbol: "USDC", Decimals: 6}

	provider := markets.NewStaticProvider()
	provider.Set(domain.MarketSnapshot{
		Asset:                weth,
		Cash:                 decimal.NewFromInt(5000),
		CollateralFactor:     decimal.RequireFromString("0.8"),
		LiquidationThreshold: decimal.RequireFromString("0.85"),
		Price:                decimal.NewFromInt(1),
		RateModelRef:         modelAddr,
	})
	provider.Set(domain.MarketSnapshot{
		Asset:                usdc,
		Cash:                 decimal.NewFromInt(10000),
		CollateralFactor:     decimal.RequireFromString("0.8"),
		LiquidationThreshold: decimal.RequireFromString("0.85"),
		Price:                decimal.NewFromInt(1),
		RateModelRef:         modelAddr,
	})

	model, err := ratemodel.NewJumpRate(
		decimal.RequireFromString("0.02"),
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("0.8"),
	)
	require.NoError(t, err)
	registry := ratemodel.NewRegistry()
	registry.Register(modelAddr, model)

	minHF := decimal.RequireFromString("1.05")
	builder := planner.NewBuilder(zap.NewNop(), provider, apr.NewPredictor(registry), minHF, nil)
	engine := rebalance.NewEngine(zap.NewNop(), provider, minHF, decimal.RequireFromString("0.005"), nil)

	return NewPlanService(zap.NewNop(), builder, engine, j)
}

func planRequest() planner.Request {
	return planner.Request{
		Pair: domain.AssetPair{
			Collateral: domain.Asset{Address: wethAddr, Symbol: "WETH", Decimals: 18},
			Borrow:     domain.Asset{Address: usdcAddr, Symbol: "USDC", Decimals: 6},
		},
		AmountIn:           decimal.NewFromInt(1000),
		Kind:               domain.EntryKindExactCollateralIn,
		HealthFactorTarget: decimal.NewFromInt(2),
		Periods:            100,
	}
}

func TestBuildConversionPlanJournals(t *testing.T) {
	j := &recordingJournal{}
	service := testService(t, j)

	plan, err := service.BuildConversionPlan(context.Background(), planRequest())
	require.NoError(t, err)
	require.False(t, plan.IsNull())

	require.Len(t, j.plans, 1)
	require.Equal(t, "WETH_USDC", j.plans[0].Pair)
	require.Equal(t, "exact_collateral_in", j.plans[0].EntryKind)
	require.False(t, j.plans[0].Null)
}

func TestBuildConversionPlanSurvivesJournalFailure(t *testing.T) {
	service := testService(t, &recordingJournal{fail: true})

	plan, err := service.BuildConversionPlan(context.Background(), planRequest())
	require.NoError(t, err)
	require.False(t, plan.IsNull())
}

func TestBuildConversionPlanSkipsJournalOnError(t *testing.T) {
	j := &recordingJournal{}
	service := testService(t, j)

	req := planRequest()
	req.AmountIn = decimal.Zero

	_, err := service.BuildConversionPlan(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Empty(t, j.plans)
}

func TestComputeRebalanceJournals(t *testing.T) {
	j := &recordingJournal{}
	service := testService(t, j)

	position, err := domain.NewPosition(planRequest().Pair,
		decimal.NewFromInt(1000), decimal.NewFromInt(100))
	require.NoError(t, err)

	plan, err := service.ComputeRebalance(context.Background(), rebalance.Request{
		Position:           position,
		TargetHealthFactor: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	require.Equal(t, domain.RebalanceBorrowMore, plan.Direction)

	require.Len(t, j.rebalances, 1)
	require.Equal(t, "borrow_more", j.rebalances[0].Direction)
	require.False(t, j.rebalances[0].Rejected)
}

func TestComputeRebalanceJournalsRejection(t *testing.T) {
	j := &recordingJournal{}
	service := testService(t, j)

	position, err := domain.NewPosition(planRequest().Pair,
		decimal.NewFromInt(1000), decimal.NewFromInt(500))
	require.NoError(t, err)

	// below target with no repay direction: the request itself is invalid,
	// which is journaled but not flagged as a health-factor rejection
	_, err = service.ComputeRebalance(context.Background(), rebalance.Request{
		Position:           position,
		TargetHealthFactor: decimal.NewFromInt(2),
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	require.Len(t, j.rebalances, 1)
	require.False(t, j.rebalances[0].Rejected)
	require.NotEmpty(t, j.rebalances[0].Reason)
}

func TestNilJournal(t *testing.T) {
	service := testService(t, nil)

	plan, err := service.BuildConversionPlan(context.Background(), planRequest())
	require.NoError(t, err)
	require.False(t, plan.IsNull())
}
