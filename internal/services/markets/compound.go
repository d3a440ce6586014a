package markets

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"lendplanner/internal/domain"
	"lendplanner/pkg/fixedpoint"
	"lendplanner/pkg/retrier"
)

// cToken and comptroller read surfaces shared by the Compound forks. Keom and
// Zerovix comptrollers report a separate liquidation threshold per market;
// Moonwell only reports the collateral factor and uses it as the threshold.
const cTokenABI = `[
{"constant":true,"inputs":[],"name":"getCash","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[],"name":"totalBorrows","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[],"name":"totalReserves","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[],"name":"reserveFactorMantissa","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[],"name":"interestRateModel","outputs":[{"name":"","type":"address"}],"type":"function"}]`

const comptrollerThreeFieldABI = `[
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"markets","outputs":[{"name":"isListed","type":"bool"},{"name":"collateralFactorMantissa","type":"uint256"},{"name":"liquidationThresholdMantissa","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"borrowCaps","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"mintGuardianPaused","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"borrowGuardianPaused","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const comptrollerTwoFieldABI = `[
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"markets","outputs":[{"name":"isListed","type":"bool"},{"name":"collateralFactorMantissa","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"borrowCaps","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"mintGuardianPaused","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"","type":"address"}],"name":"borrowGuardianPaused","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const priceOracleABI = `[
{"constant":true,"inputs":[{"name":"cToken","type":"address"}],"name":"getUnderlyingPrice","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// contractCaller is the slice of ethclient.Client the providers need.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type forkSpec struct {
	name string
	// separateThreshold the comptroller's markets() carries a third field with
	// the liquidation threshold. Without it, the collateral factor is reused.
	separateThreshold bool
}

// CompoundProvider reads Compound-fork market state: cToken pool balances,
// comptroller risk parameters and the underlying price oracle. One instance
// serves every market of one deployment.
type CompoundProvider struct {
	spec        forkSpec
	client      contractCaller
	comptroller common.Address
	oracle      common.Address
	tokens      map[common.Address]TokenConfig
	limiter     *rate.Limiter
	retry       *retrier.Retrier

	cToken         abi.ABI
	comptrollerABI abi.ABI
	oracleABI      abi.ABI
}

// NewKeom creates a provider for a Keom deployment.
func NewKeom(client contractCaller, comptroller, oracle common.Address, tokens []TokenConfig, rps float64) (*CompoundProvider, error) {
	return newCompound(forkSpec{name: "keom", separateThreshold: true}, client, comptroller, oracle, tokens, rps)
}

// NewZerovix creates a provider for a 0vix/Zerovix deployment.
func NewZerovix(client contractCaller, comptroller, oracle common.Address, tokens []TokenConfig, rps float64) (*CompoundProvider, error) {
	return newCompound(forkSpec{name: "zerovix", separateThreshold: true}, client, comptroller, oracle, tokens, rps)
}

// NewMoonwell creates a provider for a Moonwell deployment.
func NewMoonwell(client contractCaller, comptroller, oracle common.Address, tokens []TokenConfig, rps float64) (*CompoundProvider, error) {
	return newCompound(forkSpec{name: "moonwell", separateThreshold: false}, client, comptroller, oracle, tokens, rps)
}

func newCompound(spec forkSpec, client contractCaller, comptroller, oracle common.Address,
	tokens []TokenConfig, rps float64) (*CompoundProvider, error) {

	cTokenParsed, err := abi.JSON(strings.NewReader(cTokenABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse cToken ABI")
	}

	comptrollerJSON := comptrollerTwoFieldABI
	if spec.separateThreshold {
		comptrollerJSON = comptrollerThreeFieldABI
	}
	comptrollerParsed, err := abi.JSON(strings.NewReader(comptrollerJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse comptroller ABI")
	}

	oracleParsed, err := abi.JSON(strings.NewReader(priceOracleABI))
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

	return &CompoundProvider{
		spec:           spec,
		client:         client,
		comptroller:    comptroller,
		oracle:         oracle,
		tokens:         tokenMap,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		retry:          retrier.New(retrier.WithMaxRetries(3)),
		cToken:         cTokenParsed,
		comptrollerABI: comptrollerParsed,
		oracleABI:      oracleParsed,
	}, nil
}

// Snapshot reads the full market state for the asset in one pass.
func (p *CompoundProvider) Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error) {
	token, ok := p.tokens[asset.Address]
	if !ok {
		return nil, errors.Wrapf(domain.ErrMarketNotFound, "%s market for asset %s", p.spec.name, asset.String())
	}

	cash, err := p.callUint(ctx, token.Market, p.cToken, "getCash")
	if err != nil {
		return nil, errors.Wrap(err, "getCash")
	}
	totalBorrows, err := p.callUint(ctx, token.Market, p.cToken, "totalBorrows")
	if err != nil {
		return nil, errors.Wrap(err, "totalBorrows")
	}
	totalReserves, err := p.callUint(ctx, token.Market, p.cToken, "totalReserves")
	if err != nil {
		return nil, errors.Wrap(err, "totalReserves")
	}
	reserveFactor, err := p.callUint(ctx, token.Market, p.cToken, "reserveFactorMantissa")
	if err != nil {
		return nil, errors.Wrap(err, "reserveFactorMantissa")
	}
	rateModelRef, err := p.callAddress(ctx, token.Market, p.cToken, "interestRateModel")
	if err != nil {
		return nil, errors.Wrap(err, "interestRateModel")
	}

	listed, collateralFactor, threshold, err := p.readMarketParams(ctx, token.Market)
	if err != nil {
		return nil, err
	}

	borrowCap, err := p.callUint(ctx, p.comptroller, p.comptrollerABI, "borrowCaps", token.Market)
	if err != nil {
		return nil, errors.Wrap(err, "borrowCaps")
	}
	mintPaused, err := p.callBool(ctx, p.comptroller, p.comptrollerABI, "mintGuardianPaused", token.Market)
	if err != nil {
		return nil, errors.Wrap(err, "mintGuardianPaused")
	}
	borrowPaused, err := p.callBool(ctx, p.comptroller, p.comptrollerABI, "borrowGuardianPaused", token.Market)
	if err != nil {
		return nil, errors.Wrap(err, "borrowGuardianPaused")
	}

	rawPrice, err := p.callUint(ctx, p.oracle, p.oracleABI, "getUnderlyingPrice", token.Market)
	if err != nil {
		return nil, errors.Wrap(err, "getUnderlyingPrice")
	}

	decimals := asset.Decimals

	return &domain.MarketSnapshot{
		Asset:                asset,
		Cash:                 fixedpoint.FromBigInt(cash, decimals),
		TotalBorrows:         fixedpoint.FromBigInt(totalBorrows, decimals),
		TotalReserves:        fixedpoint.FromBigInt(totalReserves, decimals),
		CollateralFactor:     fixedpoint.FromBigInt(collateralFactor, 18),
		LiquidationThreshold: fixedpoint.FromBigInt(threshold, 18),
		ReserveFactor:        fixedpoint.FromBigInt(reserveFactor, 18),
		BorrowCap:            fixedpoint.FromBigInt(borrowCap, decimals),
		Price:                fixedpoint.FromBigInt(rawPrice, fixedpoint.QuoteDecimals-decimals),
		MintPaused:           mintPaused,
		BorrowPaused:         borrowPaused,
		Frozen:               !listed,
		RateModelRef:         rateModelRef,
	}, nil
}

// readMarketParams unpacks comptroller.markets(), handling both fork layouts.
func (p *CompoundProvider) readMarketParams(ctx context.Context, market common.Address) (listed bool, collateralFactor, threshold *big.Int, err error) {
	out, err := p.call(ctx, p.comptroller, p.comptrollerABI, "markets", market)
	if err != nil {
		return false, nil, nil, errors.Wrap(err, "markets")
	}

	listed, _ = out[0].(bool)
	collateralFactor, _ = out[1].(*big.Int)
	if collateralFactor == nil {
		return false, nil, nil, errors.New("markets() returned no collateral factor")
	}

	if p.spec.separateThreshold {
		threshold, _ = out[2].(*big.Int)
		if threshold == nil {
			return false, nil, nil, errors.New("markets() returned no liquidation threshold")
		}
	} else {
		threshold = collateralFactor
	}

	return listed, collateralFactor, threshold, nil
}

func (p *CompoundProvider) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
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

func (p *CompoundProvider) callUint(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := p.call(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s returned unexpected type", method)
	}
	return v, nil
}

func (p *CompoundProvider) callBool(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (bool, error) {
	out, err := p.call(ctx, to, contract, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, errors.Errorf("%s returned unexpected type", method)
	}
	return v, nil
}

func (p *CompoundProvider) callAddress(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (common.Address, error) {
	out, err := p.call(ctx, to, contract, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("%s returned unexpected type", method)
	}
	return v, nil
}
