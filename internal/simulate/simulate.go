// Package simulate runs one plan computation over fixture markets loaded from
// YAML, with no RPC connectivity. Useful for dry-running parameters before
// pointing the planner at live deployments.
package simulate

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lendplanner/config"
	"lendplanner/internal/domain"
	"lendplanner/internal/services/apr"
	"lendplanner/internal/services/markets"
	"lendplanner/internal/services/planner"
	"lendplanner/internal/services/ratemodel"
)

type marketFixture struct {
	Asset                string `yaml:"asset"`
	Symbol               string `yaml:"symbol"`
	Decimals             int32  `yaml:"decimals"`
	Cash                 string `yaml:"cash"`
	TotalBorrows         string `yaml:"total_borrows"`
	TotalReserves        string `yaml:"total_reserves"`
	CollateralFactor     string `yaml:"collateral_factor"`
	LiquidationThreshold string `yaml:"liquidation_threshold"`
	ReserveFactor        string `yaml:"reserve_factor"`
	BorrowCap            string `yaml:"borrow_cap"`
	Price                string `yaml:"price"`
	MintPaused           bool   `yaml:"mint_paused"`
	BorrowPaused         bool   `yaml:"borrow_paused"`
	Frozen               bool   `yaml:"frozen"`
	RateModel            string `yaml:"rate_model"`
}

type rateModelFixture struct {
	Ref            string `yaml:"ref"`
	BaseRate       string `yaml:"base_rate"`
	Multiplier     string `yaml:"multiplier"`
	JumpMultiplier string `yaml:"jump_multiplier"`
	Kink           string `yaml:"kink"`
}

type requestFixture struct {
	Collateral         string `yaml:"collateral"`
	Borrow             string `yaml:"borrow"`
	AmountIn           string `yaml:"amount_in"`
	EntryKind          int    `yaml:"entry_kind"`
	ProportionX        string `yaml:"proportion_x,omitempty"`
	ProportionY        string `yaml:"proportion_y,omitempty"`
	HealthFactorTarget string `yaml:"health_factor_target"`
	Periods            int64  `yaml:"periods"`
}

// Fixtures is the full simulation input: markets, rate curves and one request.
type Fixtures struct {
	Markets         []marketFixture    `yaml:"markets"`
	RateModels      []rateModelFixture `yaml:"rate_models"`
	Request         requestFixture     `yaml:"request"`
	MinHealthFactor string             `yaml:"min_health_factor,omitempty"`
}

// Run loads the fixture file, builds the plan and writes it as JSON to out.
func Run(path string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read fixtures")
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return errors.Wrap(err, "parse fixtures")
	}

	plan, err := Build(context.Background(), fixtures)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"null": plan.IsNull(),
		"plan": plan,
	})
}

// Build assembles a fixture-backed builder and computes the plan.
func Build(ctx context.Context, fixtures Fixtures) (domain.ConversionPlan, error) {
	provider := markets.NewStaticProvider()
	assets := make(map[common.Address]domain.Asset, len(fixtures.Markets))

	for i, m := range fixtures.Markets {
		snapshot, err := toSnapshot(m)
		if err != nil {
			return domain.NullPlan(), errors.Wrapf(err, "market %d", i)
		}
		provider.Set(snapshot)
		assets[snapshot.Asset.Address] = snapshot.Asset
	}

	registry := ratemodel.NewRegistry()
	for i, rm := range fixtures.RateModels {
		model, err := toModel(rm)
		if err != nil {
			return domain.NullPlan(), errors.Wrapf(err, "rate model %d", i)
		}
		registry.Register(common.HexToAddress(rm.Ref), model)
	}

	req, err := toRequest(fixtures.Request, assets)
	if err != nil {
		return domain.NullPlan(), err
	}

	minHF := config.DefaultMinHealthFactor
	if fixtures.MinHealthFactor != "" {
		if minHF, err = decimal.NewFromString(fixtures.MinHealthFactor); err != nil {
			return domain.NullPlan(), errors.Wrap(err, "min_health_factor")
		}
	}

	builder := planner.NewBuilder(zap.NewNop(), provider, apr.NewPredictor(registry), minHF, nil)
	return builder.Build(ctx, req)
}

func toSnapshot(m marketFixture) (domain.MarketSnapshot, error) {
	if !common.IsHexAddress(m.Asset) {
		return domain.MarketSnapshot{}, errors.Errorf("invalid asset address %q", m.Asset)
	}

	snapshot := domain.MarketSnapshot{
		Asset: domain.Asset{
			Address:  common.HexToAddress(m.Asset),
			Symbol:   m.Symbol,
			Decimals: m.Decimals,
		},
		MintPaused:   m.MintPaused,
		BorrowPaused: m.BorrowPaused,
		Frozen:       m.Frozen,
		RateModelRef: common.HexToAddress(m.RateModel),
	}

	for name, target := range map[string]struct {
		raw string
		dst *decimal.Decimal
	}{
		"cash":                  {m.Cash, &snapshot.Cash},
		"total_borrows":         {m.TotalBorrows, &snapshot.TotalBorrows},
		"total_reserves":        {m.TotalReserves, &snapshot.TotalReserves},
		"collateral_factor":     {m.CollateralFactor, &snapshot.CollateralFactor},
		"liquidation_threshold": {m.LiquidationThreshold, &snapshot.LiquidationThreshold},
		"reserve_factor":        {m.ReserveFactor, &snapshot.ReserveFactor},
		"borrow_cap":            {m.BorrowCap, &snapshot.BorrowCap},
		"price":                 {m.Price, &snapshot.Price},
	} {
		if target.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(target.raw)
		if err != nil {
			return domain.MarketSnapshot{}, errors.Wrapf(err, "field %s", name)
		}
		*target.dst = v
	}

	return snapshot, nil
}

func toModel(rm rateModelFixture) (ratemodel.Model, error) {
	parse := func(name, raw string) (decimal.Decimal, error) {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, name)
		}
		return v, nil
	}

	baseRate, err := parse("base_rate", rm.BaseRate)
	if err != nil {
		return nil, err
	}
	multiplier, err := parse("multiplier", rm.Multiplier)
	if err != nil {
		return nil, err
	}
	jumpMultiplier, err := parse("jump_multiplier", rm.JumpMultiplier)
	if err != nil {
		return nil, err
	}
	kink, err := parse("kink", rm.Kink)
	if err != nil {
		return nil, err
	}

	return ratemodel.NewJumpRate(baseRate, multiplier, jumpMultiplier, kink)
}

func toRequest(r requestFixture, assets map[common.Address]domain.Asset) (planner.Request, error) {
	if !common.IsHexAddress(r.Collateral) || !common.IsHexAddress(r.Borrow) {
		return planner.Request{}, errors.New("request needs collateral and borrow asset addresses")
	}

	amountIn, err := decimal.NewFromString(r.AmountIn)
	if err != nil {
		return planner.Request{}, errors.Wrap(err, "amount_in")
	}
	target, err := decimal.NewFromString(r.HealthFactorTarget)
	if err != nil {
		return planner.Request{}, errors.Wrap(err, "health_factor_target")
	}

	params := domain.EntryParams{}
	if r.ProportionX != "" {
		if params.ProportionX, err = decimal.NewFromString(r.ProportionX); err != nil {
			return planner.Request{}, errors.Wrap(err, "proportion_x")
		}
	}
	if r.ProportionY != "" {
		if params.ProportionY, err = decimal.NewFromString(r.ProportionY); err != nil {
			return planner.Request{}, errors.Wrap(err, "proportion_y")
		}
	}

	collateral, ok := assets[common.HexToAddress(r.Collateral)]
	if !ok {
		collateral = domain.Asset{Address: common.HexToAddress(r.Collateral)}
	}
	borrow, ok := assets[common.HexToAddress(r.Borrow)]
	if !ok {
		borrow = domain.Asset{Address: common.HexToAddress(r.Borrow)}
	}

	return planner.Request{
		Pair:               domain.AssetPair{Collateral: collateral, Borrow: borrow},
		AmountIn:           amountIn,
		Kind:               domain.EntryKind(r.EntryKind),
		Params:             params,
		HealthFactorTarget: target,
		Periods:            r.Periods,
	}, nil
}
