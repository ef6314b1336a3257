package service

import (
	"context"
	"fmt"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

// LineItemCommitter writes the line items of a committed order as one batch.
// A failure never invalidates the order header.
type LineItemCommitter struct {
	store port.DataStore
}

func NewLineItemCommitter(store port.DataStore) *LineItemCommitter {
	return &LineItemCommitter{store: store}
}

func (c *LineItemCommitter) Commit(ctx context.Context, orderID string, items []domain.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]port.Record, 0, len(items))
	for _, it := range items {
		rows = append(rows, port.Record{
			"order_id":     orderID,
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"quantity":     it.Quantity,
			"unit_price":   it.UnitPrice,
			"total_price":  it.TotalPrice,
		})
	}

	if _, err := c.store.Insert(ctx, domain.CollectionOrderItems, rows); err != nil {
		return fmt.Errorf("insert %d line items for order %s: %w", len(rows), orderID, err)
	}
	return nil
}
