package markets

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"lendplanner/internal/domain"
	"lendplanner/pkg/fixedpoint"
	"lendplanner/pkg/retrier"
)

// Aave3 exposes its reserve state through the protocol data provider rather
// than per-market contracts, and reports risk parameters in basis points.
const aaveDataProviderABI = `[
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveConfigurationData","outputs":[{"name":"decimals","type":"uint256"},{"name":"ltv","type":"uint256"},{"name":"liquidationThreshold","type":"uint256"},{"name":"liquidationBonus","type":"uint256"},{"name":"reserveFactor","type":"uint256"},{"name":"usageAsCollateralEnabled","type":"bool"},{"name":"borrowingEnabled","type":"bool"},{"name":"stableBorrowRateEnabled","type":"bool"},{"name":"isActive","type":"bool"},{"name":"isFrozen","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveData","outputs":[{"name":"unbacked","type":"uint256"},{"name":"accruedToTreasuryScaled","type":"uint256"},{"name":"totalAToken","type":"uint256"},{"name":"totalStableDebt","type":"uint256"},{"name":"totalVariableDebt","type":"uint256"},{"name":"liquidityRate","type":"uint256"},{"name":"variableBorrowRate","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},{"name":"averageStableBorrowRate","type":"uint256"},{"name":"liquidityIndex","type":"uint256"},{"name":"variableBorrowIndex","type":"uint256"},{"name":"lastUpdateTimestamp","type":"uint40"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getReserveCaps","outputs":[{"name":"borrowCap","type":"uint256"},{"name":"supplyCap","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getPaused","outputs":[{"name":"isPaused","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"asset","type":"address"}],"name":"getInterestRateStrategyAddress","outputs":[{"name":"irStrategyAddress","type":"address"}],"stateMutability":"view","type":"function"}]`

const aaveOracleABI = `[
{"inputs":[{"name":"asset","type":"address"}],"name":"getAssetPrice","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// aave risk parameters are expressed in basis points
const aaveBpsDecimals = 4

// aave oracle prices are expressed in an 8-decimal base currency
const aaveOracleDecimals = 8

// Aave3Provider reads Aave v3 reserve state and maps it onto the common
// market snapshot shape.
type Aave3Provider struct {
	client       contractCaller
	dataProvider common.Address
	oracle       common.Address
	tokens       map[common.Address]TokenConfig
	limiter      *rate.Limiter
	retry        *retrier.Retrier

	providerABI abi.ABI
	oracleABI   abi.ABI
}

// NewAave3 creates a provider for an Aave v3 deployment.
func NewAave3(client contractCaller, dataProvider, oracle common.Address, tokens []TokenConfig, rps float64) (*Aave3Provider, error) {
	providerParsed, err := abi.JSON(strings.NewReader(aaveDataProviderABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse data provider ABI")
	}
	oracleParsed, err := abi.JSON(strings.NewReader(aaveOracleABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse oracle ABI")
	}

	tokenMap := make(map[common.Address]TokenConfig, len(tokens))
	for _, t := range tokens {
		tokenMap[t.Asset.Address] = t
	}

	if rps <= 0 {
		rps = 10
	}

	return &Aave3Provider{
		client:       client,
		dataProvider: dataProvider,
		oracle:       oracle,
		tokens:       tokenMap,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		retry:        retrier.New(retrier.WithMaxRetries(3)),
		providerABI:  providerParsed,
		oracleABI:    oracleParsed,
	}, nil
}

// Snapshot reads the reserve state for the asset in one pass.
func (p *Aave3Provider) Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error) {
	if _, ok := p.tokens[asset.Address]; !ok {
		return nil, errors.Wrapf(domain.ErrMarketNotFound, "aave3 market for asset %s", asset.String())
	}

	conf, err := p.call(ctx, p.dataProvider, p.providerABI, "getReserveConfigurationData", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getReserveConfigurationData")
	}
	data, err := p.call(ctx, p.dataProvider, p.providerABI, "getReserveData", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getReserveData")
	}
	caps, err := p.call(ctx, p.dataProvider, p.providerABI, "getReserveCaps", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getReserveCaps")
	}
	pausedOut, err := p.call(ctx, p.dataProvider, p.providerABI, "getPaused", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getPaused")
	}
	strategyOut, err := p.call(ctx, p.dataProvider, p.providerABI, "getInterestRateStrategyAddress", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getInterestRateStrategyAddress")
	}

	ltv := asBig(conf[1])
	threshold := asBig(conf[2])
	reserveFactor := asBig(conf[4])
	borrowingEnabled, _ := conf[6].(bool)
	isActive, _ := conf[8].(bool)
	isFrozen, _ := conf[9].(bool)

	totalAToken := asBig(data[2])
	totalStableDebt := asBig(data[3])
	totalVariableDebt := asBig(data[4])

	borrowCap := asBig(caps[0])
	paused, _ := pausedOut[0].(bool)
	strategy, _ := strategyOut[0].(common.Address)

	rawPrice, err := p.call(ctx, p.oracle, p.oracleABI, "getAssetPrice", asset.Address)
	if err != nil {
		return nil, errors.Wrap(err, "getAssetPrice")
	}

	decimals := asset.Decimals

	totalDebt := new(big.Int).Add(totalStableDebt, totalVariableDebt)
	cash := new(big.Int).Sub(totalAToken, totalDebt)
	if cash.Sign() < 0 {
		cash = big.NewInt(0)
	}

	return &domain.MarketSnapshot{
		Asset:                asset,
		Cash:                 fixedpoint.FromBigInt(cash, decimals),
		TotalBorrows:         fixedpoint.FromBigInt(totalDebt, decimals),
		TotalReserves:        decimal.Zero,
		CollateralFactor:     fixedpoint.FromBigInt(ltv, aaveBpsDecimals),
		LiquidationThreshold: fixedpoint.FromBigInt(threshold, aaveBpsDecimals),
		ReserveFactor:        fixedpoint.FromBigInt(reserveFactor, aaveBpsDecimals),
		// aave reports borrow caps in whole tokens
		BorrowCap:    fixedpoint.FromBigInt(borrowCap, 0),
		Price:        fixedpoint.FromBigInt(asBig(rawPrice[0]), aaveOracleDecimals),
		MintPaused:   paused,
		BorrowPaused: paused || !borrowingEnabled,
		Frozen:       isFrozen || !isActive,
		RateModelRef: strategy,
	}, nil
}

func (p *Aave3Provider) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	output, err := retrier.DoWithData(p.retry, ctx, func(ctx context.Context) ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}

	out, err := contract.Unpack(method, output)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}

func asBig(v interface{}) *big.Int {
	b, _ := v.(*big.Int)
	if b == nil {
		return big.NewInt(0)
	}
	return b
}
