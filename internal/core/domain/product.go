package domain

// Product stock is owned by the catalog; fulfillment only read-modify-writes the counter.
type ProductStock struct {
	ProductID         string
	StockQuantity     int
	LowStockThreshold int
	HasThreshold      bool
}

// Product columns touched by fulfillment.
const (
	ColumnStockQuantity     = "stock_quantity"
	ColumnLowStockThreshold = "low_stock_threshold"
)

// StockAdjustment is the effect of one decrement.
type StockAdjustment struct {
	ProductID string
	Previous  int
	Sold      int
	New       int

	LowStockThreshold int
	HasThreshold      bool
}

// LowStock reports whether the new quantity is at or below the threshold.
func (a StockAdjustment) LowStock() bool {
	return a.HasThreshold && a.New <= a.LowStockThreshold
}

// Shortfall is the part of the sale that stock could not cover.
func (a StockAdjustment) Shortfall() int {
	if a.Sold > a.Previous {
		return a.Sold - a.Previous
	}
	return 0
}

// ClampedDecrement returns max(0, current-sold).
func ClampedDecrement(current, sold int) int {
	if n := current - sold; n > 0 {
		return n
	}
	return 0
}

// StockLevel is reported when a product falls to or below its low-stock threshold.
type StockLevel struct {
	ProductID         string
	StockQuantity     int
	LowStockThreshold int
}
