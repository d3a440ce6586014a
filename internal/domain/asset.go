// Package domain defines core data structures used throughout the lending planner.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a lending-market underlying token.
type Asset struct {
	// Address on-chain token address.
	Address common.Address
	// Symbol human-readable ticker, informational only.
	Symbol string
	// Decimals token precision (6, 8 and 18 are all observed in production markets).
	Decimals int32
}

// IsZero reports whether the asset is unset.
func (a Asset) IsZero() bool {
	return a.Address == (common.Address{})
}

// String returns the string representation.
func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address.Hex()
}

// AssetPair collateral/borrow asset pair for a conversion request.
type AssetPair struct {
	Collateral Asset
	Borrow     Asset
}

// String returns the string representation.
func (p AssetPair) String() string {
	return fmt.Sprintf("%s_%s", p.Collateral.String(), p.Borrow.String())
}
