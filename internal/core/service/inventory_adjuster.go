package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

type AdjustReport struct {
	Adjustments []domain.StockAdjustment
	Warnings    []domain.Warning
	LowStock    []domain.StockLevel
}

// InventoryAdjuster decrements stock for sold lines, one line at a time, so
// that repeated products in one cart apply cumulatively.
type InventoryAdjuster struct {
	store  port.DataStore
	atomic port.StockDecrementer
}

// NewInventoryAdjuster uses the store's atomic decrement when it has one and
// falls back to read-then-write otherwise.
func NewInventoryAdjuster(store port.DataStore) *InventoryAdjuster {
	a := &InventoryAdjuster{store: store}
	if d, ok := store.(port.StockDecrementer); ok {
		a.atomic = d
	}
	return a
}

func (a *InventoryAdjuster) Adjust(ctx context.Context, items []domain.OrderLineItem) AdjustReport {
	var report AdjustReport

	for _, it := range items {
		if it.ProductID == "" {
			continue
		}

		adj, warn := a.adjustOne(ctx, it.ProductID, it.Quantity)
		if warn != nil {
			slog.WarnContext(ctx, "stock adjustment failed", "product_id", it.ProductID, "kind", warn.Kind, "error", warn.Err)
			report.Warnings = append(report.Warnings, *warn)
			continue
		}

		report.Adjustments = append(report.Adjustments, adj)
		if short := adj.Shortfall(); short > 0 {
			report.Warnings = append(report.Warnings, domain.Warning{
				Kind:      domain.WarningInsufficientStock,
				ProductID: adj.ProductID,
				Err:       fmt.Errorf("%w: sold %d with %d on hand, clamped to 0", domain.ErrInsufficientStock, adj.Sold, adj.Previous),
			})
		}
		if adj.LowStock() {
			report.LowStock = append(report.LowStock, domain.StockLevel{
				ProductID:         adj.ProductID,
				StockQuantity:     adj.New,
				LowStockThreshold: adj.LowStockThreshold,
			})
		}
	}

	return report
}

func (a *InventoryAdjuster) adjustOne(ctx context.Context, productID string, sold int) (domain.StockAdjustment, *domain.Warning) {
	if a.atomic != nil {
		adj, err := a.atomic.DecrementStock(ctx, productID, sold)
		if err != nil {
			kind := domain.WarningStockWrite
			if errors.Is(err, domain.ErrNotFound) {
				kind = domain.WarningStockUnreadable
			}
			return adj, &domain.Warning{Kind: kind, ProductID: productID, Err: err}
		}
		return adj, nil
	}

	stock, err := a.readStock(ctx, productID)
	if err != nil {
		return domain.StockAdjustment{}, &domain.Warning{Kind: domain.WarningStockUnreadable, ProductID: productID, Err: err}
	}

	adj := domain.StockAdjustment{
		ProductID:         productID,
		Previous:          stock.StockQuantity,
		Sold:              sold,
		New:               domain.ClampedDecrement(stock.StockQuantity, sold),
		LowStockThreshold: stock.LowStockThreshold,
		HasThreshold:      stock.HasThreshold,
	}

	_, err = a.store.Update(ctx, domain.CollectionProducts,
		map[string]any{domain.ColumnID: productID},
		port.Record{domain.ColumnStockQuantity: adj.New},
	)
	if err != nil {
		return adj, &domain.Warning{Kind: domain.WarningStockWrite, ProductID: productID, Err: err}
	}
	return adj, nil
}

func (a *InventoryAdjuster) readStock(ctx context.Context, productID string) (domain.ProductStock, error) {
	rows, err := a.store.Select(ctx, domain.CollectionProducts, port.Query{
		Filter: map[string]any{domain.ColumnID: productID},
		Limit:  1,
	})
	if err != nil {
		return domain.ProductStock{}, fmt.Errorf("read stock: %w", err)
	}
	if len(rows) == 0 {
		return domain.ProductStock{}, fmt.Errorf("read stock: product %s: %w", productID, domain.ErrNotFound)
	}

	qty, ok := rows[0].Int(domain.ColumnStockQuantity)
	if !ok {
		return domain.ProductStock{}, fmt.Errorf("read stock: product %s has no readable stock_quantity", productID)
	}
	threshold, hasThreshold := rows[0].Int(domain.ColumnLowStockThreshold)

	return domain.ProductStock{
		ProductID:         productID,
		StockQuantity:     qty,
		LowStockThreshold: threshold,
		HasThreshold:      hasThreshold,
	}, nil
}
