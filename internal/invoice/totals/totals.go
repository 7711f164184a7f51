// Package totals computes the subtotal, VAT and grand total of an invoice
// from its lines.
//
// All arithmetic is exact decimal. Only the VAT figure is rounded, to whole
// Rupiah, using the rounding policy implemented by RoundVAT.
package totals

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument reports a negative or non-finite input. It is wrapped
// with the offending field.
var ErrInvalidArgument = errors.New("invalid_argument")

// DefaultVATPercentage is the rate applied when nothing else is configured.
var DefaultVATPercentage = decimal.NewFromInt(11)

var (
	hundred       = decimal.NewFromInt(100)
	fractionFloor = decimal.RequireFromString("0.49")
	fractionCeil  = decimal.RequireFromString("0.50")
)

// Line is a priced quantity on an invoice.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Totals is the invoice aggregate derived from its lines.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// NewLine builds a Line from a float price, rejecting non-finite values.
func NewLine(unitPrice float64, quantity int64) (Line, error) {
	if math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) {
		return Line{}, fmt.Errorf("%w: unit_price is not a finite number", ErrInvalidArgument)
	}
	return Line{UnitPrice: decimal.NewFromFloat(unitPrice), Quantity: quantity}, nil
}

// LineTotal returns unit price times quantity, unrounded.
func LineTotal(line Line) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
}

// Compute aggregates lines and applies VAT at vatPercentage percent.
func Compute(lines []Line, vatPercentage decimal.Decimal) (Totals, error) {
	if vatPercentage.IsNegative() {
		return Totals{}, fmt.Errorf("%w: vat_percentage must not be negative", ErrInvalidArgument)
	}
	if len(lines) == 0 {
		return Totals{Subtotal: decimal.Zero, VATAmount: decimal.Zero, Total: decimal.Zero}, nil
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if line.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: line %d unit_price must not be negative", ErrInvalidArgument, i+1)
		}
		if line.Quantity < 0 {
			return Totals{}, fmt.Errorf("%w: line %d quantity must not be negative", ErrInvalidArgument, i+1)
		}
		subtotal = subtotal.Add(LineTotal(line))
	}

	vat := RoundVAT(subtotal.Mul(vatPercentage).Div(hundred))
	return Totals{
		Subtotal:  subtotal,
		VATAmount: vat,
		Total:     subtotal.Add(vat),
	}, nil
}

// RoundVAT rounds a raw VAT amount to a whole number.
//
// A fractional part of exactly .49 is truncated. Otherwise .50 and above
// rounds up and everything else rounds half away from zero. The .49 branch
// must stay first and separate.
func RoundVAT(raw decimal.Decimal) decimal.Decimal {
	floor := raw.Floor()
	fractional := raw.Sub(floor)

	switch {
	case fractional.Equal(fractionFloor):
		return floor
	case fractional.GreaterThanOrEqual(fractionCeil):
		return raw.Ceil()
	default:
		return raw.Round(0)
	}
}
