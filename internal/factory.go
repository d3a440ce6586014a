package internal

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lendplanner/config"
	"lendplanner/internal/domain"
	"lendplanner/internal/services/markets"
	"lendplanner/internal/services/ratemodel"
)

// BuildRegistries dials every configured protocol deployment and assembles the
// market and rate-model registries the engine runs against.
func BuildRegistries(cfg *config.Config) (*markets.Registry, *ratemodel.Registry, error) {
	marketRegistry := markets.NewRegistry()
	modelRegistry := ratemodel.NewRegistry()

	for _, protocol := range cfg.Protocols {
		client, err := ethclient.Dial(protocol.RPCURL)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "dial %s rpc", protocol.Name)
		}

		tokens := make([]markets.TokenConfig, 0, len(protocol.Markets))
		assets := make([]domain.Asset, 0, len(protocol.Markets))
		for _, m := range protocol.Markets {
			asset := domain.Asset{
				Address:  common.HexToAddress(m.Asset),
				Symbol:   m.Symbol,
				Decimals: m.Decimals,
			}
			assets = append(assets, asset)
			tokens = append(tokens, markets.TokenConfig{
				Asset:  asset,
				Market: common.HexToAddress(m.Market),
			})
		}

		provider, err := buildProvider(protocol, client, tokens)
		if err != nil {
			return nil, nil, err
		}

		for _, asset := range assets {
			if err := marketRegistry.Register(asset, provider); err != nil {
				return nil, nil, errors.Wrapf(err, "register %s market", asset.String())
			}
		}

		for _, rm := range protocol.RateModels {
			model, err := buildRateModel(rm)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "protocol %s rate model %s", protocol.Name, rm.Ref)
			}
			modelRegistry.Register(common.HexToAddress(rm.Ref), model)
		}
	}

	return marketRegistry, modelRegistry, nil
}

func buildProvider(protocol config.ProtocolConfig, client *ethclient.Client, tokens []markets.TokenConfig) (markets.Provider, error) {
	oracle := common.HexToAddress(protocol.Oracle)

	switch protocol.Name {
	case "keom":
		return markets.NewKeom(client, common.HexToAddress(protocol.Comptroller), oracle, tokens, protocol.RequestsPerSecond)
	case "zerovix":
		return markets.NewZerovix(client, common.HexToAddress(protocol.Comptroller), oracle, tokens, protocol.RequestsPerSecond)
	case "moonwell":
		return markets.NewMoonwell(client, common.HexToAddress(protocol.Comptroller), oracle, tokens, protocol.RequestsPerSecond)
	case "aave3":
		return markets.NewAave3(client, common.HexToAddress(protocol.DataProvider), oracle, tokens, protocol.RequestsPerSecond)
	default:
		return nil, errors.Errorf("unsupported protocol %q", protocol.Name)
	}
}

func buildRateModel(rm config.RateModelConfig) (ratemodel.Model, error) {
	baseRate, err := decimal.NewFromString(rm.BaseRate)
	if err != nil {
		return nil, errors.Wrap(err, "base_rate")
	}
	multiplier, err := decimal.NewFromString(rm.Multiplier)
	if err != nil {
		return nil, errors.Wrap(err, "multiplier")
	}
	jumpMultiplier, err := decimal.NewFromString(rm.JumpMultiplier)
	if err != nil {
		return nil, errors.Wrap(err, "jump_multiplier")
	}
	kink, err := decimal.NewFromString(rm.Kink)
	if err != nil {
		return nil, errors.Wrap(err, "kink")
	}

	return ratemodel.NewJumpRate(baseRate, multiplier, jumpMultiplier, kink)
}
