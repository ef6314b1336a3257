package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

func TestCalculate_Scenarios(t *testing.T) {
	calc := NewCalculator(DefaultTaxRateBP)

	tests := []struct {
		name     string
		lines    []Line
		discount float64
		want     domain.Totals
	}{
		{
			name:  "two units no discount",
			lines: []Line{{Quantity: 2, UnitPrice: 100}},
			want:  domain.Totals{Subtotal: 200, TaxAmount: 36, Discount: 0, TotalAmount: 236},
		},
		{
			name:     "tax on pre-discount subtotal",
			lines:    []Line{{Quantity: 1, UnitPrice: 50}},
			discount: 20,
			want:     domain.Totals{Subtotal: 50, TaxAmount: 9, Discount: 20, TotalAmount: 39},
		},
		{
			name:  "several lines with cents",
			lines: []Line{{Quantity: 3, UnitPrice: 1.99}, {Quantity: 1, UnitPrice: 0.5}},
			want:  domain.Totals{Subtotal: 6.47, TaxAmount: 1.16, Discount: 0, TotalAmount: 7.63},
		},
		{
			name:  "free item",
			lines: []Line{{Quantity: 4, UnitPrice: 0}},
			want:  domain.Totals{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Calculate(tc.lines, tc.discount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCalculate_TotalInvariant(t *testing.T) {
	calc := NewCalculator(DefaultTaxRateBP)

	for qty := 1; qty <= 7; qty++ {
		for _, price := range []float64{0.01, 0.33, 1.05, 9.99, 12.5, 199.95} {
			for _, discount := range []float64{0, 0.01, 0.5} {
				got, err := calc.Calculate([]Line{{Quantity: qty, UnitPrice: price}, {Quantity: 1, UnitPrice: 1}}, discount)
				require.NoError(t, err)
				assert.True(t, WithinTolerance(got.TotalAmount, got.Subtotal-got.Discount+got.TaxAmount),
					"qty=%d price=%v discount=%v: %+v", qty, price, discount, got)
			}
		}
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := NewCalculator(DefaultTaxRateBP)
	lines := []Line{{Quantity: 3, UnitPrice: 17.35}, {Quantity: 2, UnitPrice: 4.1}}

	first, err := calc.Calculate(lines, 5)
	require.NoError(t, err)
	second, err := calc.Calculate(lines, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []Line{{Quantity: 3, UnitPrice: 17.35}, {Quantity: 2, UnitPrice: 4.1}}, lines)
}

func TestCalculate_Invalid(t *testing.T) {
	calc := NewCalculator(DefaultTaxRateBP)

	tests := []struct {
		name     string
		lines    []Line
		discount float64
		field    string
	}{
		{"empty cart", nil, 0, "items"},
		{"zero quantity", []Line{{Quantity: 0, UnitPrice: 1}}, 0, "quantity"},
		{"negative quantity", []Line{{Quantity: -2, UnitPrice: 1}}, 0, "quantity"},
		{"negative price", []Line{{Quantity: 1, UnitPrice: -1}}, 0, "unit_price"},
		{"negative discount", []Line{{Quantity: 1, UnitPrice: 1}}, -1, "discount"},
		{"discount above subtotal", []Line{{Quantity: 1, UnitPrice: 10}}, 10.01, "discount"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Calculate(tc.lines, tc.discount)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestLineTotal(t *testing.T) {
	got, err := LineTotal(Line{Quantity: 3, UnitPrice: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.3, got)

	_, err = LineTotal(Line{Quantity: 0, UnitPrice: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
