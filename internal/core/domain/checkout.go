package domain

import (
	"errors"
	"fmt"
)

// CartLine is one product line as submitted at checkout.
type CartLine struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   float64
	// TotalPrice is the client-computed line total; zero means "not supplied".
	TotalPrice float64
}

// Totals are the monetary figures derived from a cart.
type Totals struct {
	Subtotal    float64
	TaxAmount   float64
	Discount    float64
	TotalAmount float64
}

type CheckoutRequest struct {
	RequestID     string
	BusinessID    string
	Lines         []CartLine
	Discount      float64
	Customer      Customer
	PaymentMethod string
	PaymentStatus string
	Status        string
	OrderType     string
}

type WarningKind string

const (
	WarningLineItems         WarningKind = "line_items"
	WarningStockUnreadable   WarningKind = "stock_unreadable"
	WarningStockWrite        WarningKind = "stock_write"
	WarningInsufficientStock WarningKind = "insufficient_stock"
)

// Warning is a partial-fulfillment failure attached to an otherwise successful checkout.
type Warning struct {
	Kind      WarningKind
	ProductID string
	Err       error
}

func (w Warning) Error() string {
	if w.ProductID != "" {
		return fmt.Sprintf("%s: product %s: %v", w.Kind, w.ProductID, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Kind, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// ErrPartialFulfillment matches every Warning through errors.Is.
var ErrPartialFulfillment = errors.New("partial fulfillment")

func (w Warning) Is(target error) bool { return target == ErrPartialFulfillment }

// CheckoutResult is returned on full or degraded success.
type CheckoutResult struct {
	OrderID     string
	OrderNumber string
	Totals      Totals
	// Degraded is set when optional header fields were dropped to fit the schema.
	Degraded      bool
	DroppedFields []string
	Warnings      []Warning
	Adjustments   []StockAdjustment
	LowStock      []StockLevel
}

// FullSuccess reports an unqualified success: nothing dropped, nothing failed.
func (r *CheckoutResult) FullSuccess() bool {
	return !r.Degraded && len(r.Warnings) == 0
}
