package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EntryKind selects how a single input amount is converted into a
// (collateral, borrow) pair.
type EntryKind int

const (
	// EntryKindExactCollateralIn the caller supplies an exact collateral amount
	// and wants the maximum sound borrow against it.
	EntryKindExactCollateralIn EntryKind = 0
	// EntryKindProportionSplit the caller supplies a total amount and two weights;
	// the amount is split so that the converted part of the input and the
	// borrowed value stand in the given ratio.
	EntryKindProportionSplit EntryKind = 1
	// EntryKindExactBorrowOut the caller specifies the amount to borrow and wants
	// the minimum collateral required.
	EntryKindExactBorrowOut EntryKind = 2
)

// String returns the string representation of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryKindExactCollateralIn:
		return "exact_collateral_in"
	case EntryKindProportionSplit:
		return "proportion_split"
	case EntryKindExactBorrowOut:
		return "exact_borrow_out"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Valid reports whether the kind is one of the three supported strategies.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindExactCollateralIn, EntryKindProportionSplit, EntryKindExactBorrowOut:
		return true
	}
	return false
}

// EntryParams extra parameters for EntryKindProportionSplit: the amount is split
// so that the converted part and the borrowed value stand in ratio X:Y.
// Both weights must be positive for the split kind; other kinds ignore them.
type EntryParams struct {
	ProportionX decimal.Decimal
	ProportionY decimal.Decimal
}

// EqualSplit returns params for an equal-value split.
func EqualSplit() EntryParams {
	one := decimal.NewFromInt(1)
	return EntryParams{ProportionX: one, ProportionY: one}
}

// Validate checks the params for the given kind.
func (p EntryParams) Validate(kind EntryKind) error {
	if kind != EntryKindProportionSplit {
		return nil
	}
	if !p.ProportionX.IsPositive() || !p.ProportionY.IsPositive() {
		return fmt.Errorf("proportion weights must be positive, got %s:%s",
			p.ProportionX.String(), p.ProportionY.String())
	}
	return nil
}
