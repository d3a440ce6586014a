// Package config loads the planner configuration from YAML or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is omitted.
var (
	DefaultMinHealthFactor          = decimal.RequireFromString("1.05")
	DefaultMaxHealthFactorReduction = decimal.RequireFromString("0.005")
)

// MarketConfig one underlying asset and its protocol market contract.
type MarketConfig struct {
	Asset    string `yaml:"asset"`
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
	Market   string `yaml:"market"`
}

// RateModelConfig jump-rate curve parameters for one on-chain model address.
type RateModelConfig struct {
	Ref            string `yaml:"ref"`
	BaseRate       string `yaml:"base_rate"`
	Multiplier     string `yaml:"multiplier"`
	JumpMultiplier string `yaml:"jump_multiplier"`
	Kink           string `yaml:"kink"`
}

// ProtocolConfig one lending deployment the planner connects to.
type ProtocolConfig struct {
	// Name one of: keom, zerovix, moonwell, aave3.
	Name   string `yaml:"name"`
	RPCURL string `yaml:"rpc_url"`
	// Comptroller for the Compound forks; DataProvider for aave3.
	Comptroller       string            `yaml:"comptroller,omitempty"`
	DataProvider      string            `yaml:"data_provider,omitempty"`
	Oracle            string            `yaml:"oracle"`
	RequestsPerSecond float64           `yaml:"requests_per_second,omitempty"`
	Markets           []MarketConfig    `yaml:"markets"`
	RateModels        []RateModelConfig `yaml:"rate_models,omitempty"`
}

// Config is the full planner configuration.
type Config struct {
	MinHealthFactor          decimal.Decimal
	MaxHealthFactorReduction decimal.Decimal
	JournalDir               string
	WebAddr                  string
	Protocols                []ProtocolConfig
}

type configTmp struct {
	MinHealthFactorStr          string           `yaml:"min_health_factor,omitempty"`
	MaxHealthFactorReductionStr string           `yaml:"max_health_factor_reduction,omitempty"`
	JournalDir                  string           `yaml:"journal_dir,omitempty"`
	WebAddr                     string           `yaml:"web_addr,omitempty"`
	Protocols                   []ProtocolConfig `yaml:"protocols"`
}

// Get reads the configuration from the path given by --config.
func Get() (*Config, error) {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	return FromFile(*configPath)
}

// FromFile loads and validates the configuration at path.
func FromFile(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(f)
}

func parse(raw []byte) (*Config, error) {
	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, err
	}

	cfg := &Config{
		MinHealthFactor:          DefaultMinHealthFactor,
		MaxHealthFactorReduction: DefaultMaxHealthFactorReduction,
		JournalDir:               tmp.JournalDir,
		WebAddr:                  tmp.WebAddr,
		Protocols:                tmp.Protocols,
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}

	if tmp.MinHealthFactorStr != "" {
		v, err := decimal.NewFromString(tmp.MinHealthFactorStr)
		if err != nil {
			return nil, fmt.Errorf("invalid min_health_factor %q: %w", tmp.MinHealthFactorStr, err)
		}
		cfg.MinHealthFactor = v
	}
	if tmp.MaxHealthFactorReductionStr != "" {
		v, err := decimal.NewFromString(tmp.MaxHealthFactorReductionStr)
		if err != nil {
			return nil, fmt.Errorf("invalid max_health_factor_reduction %q: %w", tmp.MaxHealthFactorReductionStr, err)
		}
		cfg.MaxHealthFactorReduction = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.MinHealthFactor.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("min_health_factor must be greater than 1, got %s", c.MinHealthFactor.String())
	}
	if c.MaxHealthFactorReduction.IsNegative() || c.MaxHealthFactorReduction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("max_health_factor_reduction must be within [0, 1), got %s", c.MaxHealthFactorReduction.String())
	}

	for i, p := range c.Protocols {
		switch p.Name {
		case "keom", "zerovix", "moonwell":
			if !common.IsHexAddress(p.Comptroller) {
				return fmt.Errorf("protocol %d (%s): comptroller address is invalid", i, p.Name)
			}
		case "aave3":
			if !common.IsHexAddress(p.DataProvider) {
				return fmt.Errorf("protocol %d (%s): data_provider address is invalid", i, p.Name)
			}
		default:
			return fmt.Errorf("protocol %d: unsupported protocol %q", i, p.Name)
		}

		if !common.IsHexAddress(p.Oracle) {
			return fmt.Errorf("protocol %d (%s): oracle address is invalid", i, p.Name)
		}
		if p.RPCURL == "" {
			return fmt.Errorf("protocol %d (%s): rpc_url is required", i, p.Name)
		}
		if len(p.Markets) == 0 {
			return fmt.Errorf("protocol %d (%s): at least one market is required", i, p.Name)
		}

		for j, m := range p.Markets {
			if !common.IsHexAddress(m.Asset) || !common.IsHexAddress(m.Market) {
				return fmt.Errorf("protocol %d (%s) market %d: invalid address", i, p.Name, j)
			}
			if m.Decimals <= 0 || m.Decimals > 30 {
				return fmt.Errorf("protocol %d (%s) market %d: decimals out of range", i, p.Name, j)
			}
		}
	}

	return nil
}
