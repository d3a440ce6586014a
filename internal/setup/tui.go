// Package setup provides the interactive terminal wizard that writes the
// planner's YAML configuration.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"lendplanner/config"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

// RunTUI launches the terminal configuration wizard and writes config.yaml.
func RunTUI() error {
	var (
		protocol     string
		rpcURL       string
		registryAddr string
		oracleAddr   string
		marketsStr   string
		minHF        string
		maxReduction string
		webAddr      string
		confirm      bool
	)

	// defaults
	minHF = "1.05"
	maxReduction = "0.005"
	webAddr = ":8080"

	fmt.Println(headerStyle.Render("lendplanner setup"))
	fmt.Println(stepStyle.Render("Step 1: protocol deployment"))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Lending protocol").
				Options(
					huh.NewOption("Keom", "keom"),
					huh.NewOption("Zerovix (0vix)", "zerovix"),
					huh.NewOption("Moonwell", "moonwell"),
					huh.NewOption("Aave v3", "aave3"),
				).
				Value(&protocol),
			huh.NewInput().
				Title("RPC URL").
				Placeholder("https://polygon-rpc.com").
				Value(&rpcURL).
				Validate(required("rpc url")),
			huh.NewInput().
				Title("Comptroller / data provider address").
				Value(&registryAddr).
				Validate(hexAddress),
			huh.NewInput().
				Title("Price oracle address").
				Value(&oracleAddr).
				Validate(hexAddress),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Markets (one per line: asset,symbol,decimals,market)").
				Value(&marketsStr).
				Validate(validMarkets),
			huh.NewInput().
				Title("Minimum health factor").
				Value(&minHF).
				Validate(positiveDecimal),
			huh.NewInput().
				Title("Max allowed health factor reduction (fraction)").
				Value(&maxReduction).
				Validate(positiveDecimal),
			huh.NewInput().
				Title("Web listen address").
				Value(&webAddr),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml?").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}
	if !confirm {
		fmt.Println("aborted, nothing written")
		return nil
	}

	markets, err := parseMarkets(marketsStr)
	if err != nil {
		return err
	}

	protocolCfg := config.ProtocolConfig{
		Name:    protocol,
		RPCURL:  rpcURL,
		Oracle:  oracleAddr,
		Markets: markets,
	}
	if protocol == "aave3" {
		protocolCfg.DataProvider = registryAddr
	} else {
		protocolCfg.Comptroller = registryAddr
	}

	out := map[string]interface{}{
		"min_health_factor":           minHF,
		"max_health_factor_reduction": maxReduction,
		"web_addr":                    webAddr,
		"protocols":                   []config.ProtocolConfig{protocolCfg},
	}

	payload, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile("config.yaml", payload, 0o644); err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("config.yaml written"))
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func hexAddress(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("not a valid address")
	}
	return nil
}

func positiveDecimal(s string) error {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if !v.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validMarkets(s string) error {
	_, err := parseMarkets(s)
	return err
}

func parseMarkets(s string) ([]config.MarketConfig, error) {
	var markets []config.MarketConfig
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("expected asset,symbol,decimals,market, got %q", line)
		}
		decimals, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || decimals <= 0 || decimals > 30 {
			return nil, fmt.Errorf("invalid decimals in %q", line)
		}
		if !common.IsHexAddress(strings.TrimSpace(parts[0])) || !common.IsHexAddress(strings.TrimSpace(parts[3])) {
			return nil, fmt.Errorf("invalid address in %q", line)
		}
		markets = append(markets, config.MarketConfig{
			Asset:    strings.TrimSpace(parts[0]),
			Symbol:   strings.TrimSpace(parts[1]),
			Decimals: int32(decimals),
			Market:   strings.TrimSpace(parts[3]),
		})
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("at least one market is required")
	}
	return markets, nil
}
