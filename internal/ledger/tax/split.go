// Package tax splits GST between its central/state (intra-state) and
// integrated (inter-state) components.
//
// Amounts are rounded half-up to the currency minor unit exactly once per
// line, on the unrounded product of amount and rate.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/ledger"
)

// MinorUnitPlaces is the number of decimal places of the currency minor unit.
const MinorUnitPlaces = 2

var (
	two     = decimal.NewFromInt(2)
	maxRate = decimal.NewFromInt(1)
)

// Breakdown holds the three mutually exclusive tax components of one line.
type Breakdown struct {
	CGST decimal.Decimal
	SGST decimal.Decimal
	IGST decimal.Decimal
}

func (b Breakdown) Total() decimal.Decimal {
	return b.CGST.Add(b.SGST).Add(b.IGST)
}

// Split computes the tax on amount at rate (a proportion, 0.18 for 18%).
// It panics on a negative amount or a rate outside [0, 1]; callers validate
// input with ValidateRate first.
func Split(amount, rate decimal.Decimal, interState bool) Breakdown {
	if amount.IsNegative() {
		panic(fmt.Sprintf("tax: negative taxable amount %s", amount))
	}
	if err := ValidateRate(rate); err != nil {
		panic("tax: " + err.Error())
	}
	return apportion(amount.Mul(rate), interState)
}

// Apportion splits an already derived, unrounded line tax.
func Apportion(lineTax decimal.Decimal, interState bool) Breakdown {
	if lineTax.IsNegative() {
		panic(fmt.Sprintf("tax: negative line tax %s", lineTax))
	}
	return apportion(lineTax, interState)
}

func apportion(lineTax decimal.Decimal, interState bool) Breakdown {
	if interState {
		return Breakdown{
			CGST: decimal.Zero,
			SGST: decimal.Zero,
			IGST: Round(lineTax),
		}
	}
	half := Round(lineTax.Div(two))
	return Breakdown{
		CGST: half,
		SGST: half,
		IGST: decimal.Zero,
	}
}

// Round rounds half-up to the minor unit. Ledger amounts are never negative,
// so half away from zero and half-up coincide.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitPlaces)
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return ledger.NewValidationError("tax_rate", fmt.Sprintf("must be between 0 and 1, got %s", rate))
	}
	return nil
}
