// Package ratemodel provides interest-rate-curve capabilities for lending
// markets: borrow and supply rates as a function of pool utilization.
package ratemodel

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lendplanner/pkg/fixedpoint"
)

// Model computes per-block rates from pool-level balances.
type Model interface {
	BorrowRatePerBlock(cash, borrows, reserves decimal.Decimal) decimal.Decimal
	SupplyRatePerBlock(cash, borrows, reserves, reserveFactor decimal.Decimal) decimal.Decimal
}

// BlocksPerYear block cadence shared by the supported chains.
var BlocksPerYear = decimal.NewFromInt(2102400)

// UtilizationRate borrows / (cash + borrows - reserves); zero for an empty pool.
func UtilizationRate(cash, borrows, reserves decimal.Decimal) decimal.Decimal {
	total := cash.Add(borrows).Sub(reserves)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return borrows.DivRound(total, fixedpoint.MaxPrecision+1).Truncate(fixedpoint.MaxPrecision)
}

// Registry resolves a market-supplied model reference to a Model.
type Registry struct {
	models map[common.Address]Model
}

// NewRegistry creates a registry over the given model set.
func NewRegistry() *Registry {
	return &Registry{models: make(map[common.Address]Model)}
}

// Register binds a model to its on-chain reference address.
func (r *Registry) Register(ref common.Address, m Model) {
	r.models[ref] = m
}

// Resolve returns the model registered for ref.
func (r *Registry) Resolve(ref common.Address) (Model, error) {
	m, ok := r.models[ref]
	if !ok {
		return nil, errors.Errorf("no interest rate model registered for %s", ref.Hex())
	}
	return m, nil
}
