package port

import (
	"context"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// Record is one row of a collection keyed by column name.
type Record map[string]any

// Query selects rows by column equality.
type Query struct {
	Filter map[string]any
	// OrderBy is a column name; rows are returned ascending unless Descending is set.
	OrderBy    string
	Descending bool
	// Limit of zero returns every matching row.
	Limit int
}

// DataStore is the generic request/response API over named collections.
// There is no multi-statement transaction; each call is all-or-nothing.
type DataStore interface {
	// Insert writes rows in a single call and returns them as stored,
	// including store-assigned columns such as id and created_at.
	// An unknown column must surface as *domain.ColumnError.
	Insert(ctx context.Context, collection string, rows []Record) ([]Record, error)

	// Select returns matching rows.
	Select(ctx context.Context, collection string, q Query) ([]Record, error)

	// Update sets values on every row matching filter and returns the number of rows changed.
	Update(ctx context.Context, collection string, filter map[string]any, values Record) (int64, error)
}

// StockDecrementer is implemented by stores that can apply
// stock_quantity = max(0, stock_quantity - quantity) atomically.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, productID string, quantity int) (domain.StockAdjustment, error)
}
