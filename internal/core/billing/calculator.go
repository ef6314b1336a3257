// Package billing derives order totals from cart lines. Everything here is
// pure: no I/O, no clocks, no shared state.
package billing

import (
	"math"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// DefaultTaxRateBP is 18% expressed in basis points.
const DefaultTaxRateBP = 1800

// Calculator applies a fixed tax rate in basis points.
type Calculator struct {
	TaxRateBP int64
}

func NewCalculator(taxRateBP int64) Calculator {
	return Calculator{TaxRateBP: taxRateBP}
}

// Line is a cart line reduced to the figures used for billing.
type Line struct {
	Quantity  int
	UnitPrice float64
}

// Calculate returns subtotal, tax and total. Tax is taken on the subtotal
// before the discount is applied.
func (c Calculator) Calculate(lines []Line, discount float64) (domain.Totals, error) {
	if len(lines) == 0 {
		return domain.Totals{}, domain.NewValidationError("items", "cart is empty")
	}
	if discount < 0 || math.IsNaN(discount) || math.IsInf(discount, 0) {
		return domain.Totals{}, domain.NewValidationError("discount", "must be a non-negative amount")
	}

	var subtotal int64
	for _, l := range lines {
		lt, err := lineTotal(l)
		if err != nil {
			return domain.Totals{}, err
		}
		subtotal += lt
	}

	disc := ToMinor(discount)
	if disc > subtotal {
		return domain.Totals{}, domain.NewValidationError("discount", "exceeds subtotal")
	}

	tax := percentOf(subtotal, c.TaxRateBP)

	return domain.Totals{
		Subtotal:    FromMinor(subtotal),
		TaxAmount:   FromMinor(tax),
		Discount:    FromMinor(disc),
		TotalAmount: FromMinor(subtotal - disc + tax),
	}, nil
}

// LineTotal returns quantity*unit_price rounded to minor units.
func LineTotal(l Line) (float64, error) {
	lt, err := lineTotal(l)
	if err != nil {
		return 0, err
	}
	return FromMinor(lt), nil
}

func lineTotal(l Line) (int64, error) {
	if l.Quantity <= 0 {
		return 0, domain.NewValidationError("quantity", "must be a positive integer")
	}
	if l.UnitPrice < 0 || math.IsNaN(l.UnitPrice) || math.IsInf(l.UnitPrice, 0) {
		return 0, domain.NewValidationError("unit_price", "must be non-negative")
	}
	return int64(l.Quantity) * ToMinor(l.UnitPrice), nil
}

// percentOf rounds half up; amount is never negative here.
func percentOf(amount, bp int64) int64 {
	return (amount*bp + 5000) / 10000
}

// ToMinor converts an amount to minor units (cents).
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinor(minor int64) float64 {
	return float64(minor) / 100
}

// Round rounds an amount to two decimals.
func Round(amount float64) float64 {
	return FromMinor(ToMinor(amount))
}

// WithinTolerance reports whether a and b differ by at most one minor unit.
func WithinTolerance(a, b float64) bool {
	d := ToMinor(a) - ToMinor(b)
	return d >= -1 && d <= 1
}
