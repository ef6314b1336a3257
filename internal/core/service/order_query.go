package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/schema"
	"github.com/rl1809/pos-checkout/internal/port"
)

type OrderFilter struct {
	CustomerEmail string
	// Limit of zero falls back to the gateway default; a default of zero returns all rows.
	Limit int
}

// OrderQuery is the read side over orders, always newest first.
type OrderQuery struct {
	store        port.DataStore
	capability   *schema.Capability
	defaultLimit int
}

func NewOrderQuery(store port.DataStore, capability *schema.Capability, defaultLimit int) *OrderQuery {
	if capability == nil {
		capability = schema.Unknown()
	}
	return &OrderQuery{store: store, capability: capability, defaultLimit: defaultLimit}
}

func (q *OrderQuery) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	query := port.Query{
		OrderBy:    domain.ColumnCreatedAt,
		Descending: true,
		Limit:      f.Limit,
	}
	if query.Limit <= 0 {
		query.Limit = q.defaultLimit
	}

	if email := strings.TrimSpace(f.CustomerEmail); email != "" {
		// Orders cannot match on a column the schema does not have.
		if !q.capability.Allows(domain.ColumnCustomerEmail) {
			return []domain.Order{}, nil
		}
		query.Filter = map[string]any{domain.ColumnCustomerEmail: email}
	}

	rows, err := q.store.Select(ctx, domain.CollectionOrders, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, orderFromRecord(r))
	}
	return orders, nil
}

func (q *OrderQuery) GetOrder(ctx context.Context, id string) (*domain.OrderDetail, error) {
	rows, err := q.store.Select(ctx, domain.CollectionOrders, port.Query{
		Filter: map[string]any{domain.ColumnID: id},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}

	itemRows, err := q.store.Select(ctx, domain.CollectionOrderItems, port.Query{
		Filter:  map[string]any{"order_id": id},
		OrderBy: domain.ColumnCreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	detail := &domain.OrderDetail{Order: orderFromRecord(rows[0])}
	detail.Items = make([]domain.OrderLineItem, 0, len(itemRows))
	for _, r := range itemRows {
		detail.Items = append(detail.Items, lineItemFromRecord(r))
	}
	return detail, nil
}

func (q *OrderQuery) exists(ctx context.Context, id string) error {
	rows, err := q.store.Select(ctx, domain.CollectionOrders, port.Query{
		Filter: map[string]any{domain.ColumnID: id},
		Limit:  1,
	})
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func orderFromRecord(r port.Record) domain.Order {
	amount := func(col string) float64 {
		v, _ := r.Float(col)
		return v
	}
	return domain.Order{
		ID:            r.String(domain.ColumnID),
		OrderNumber:   r.String(domain.ColumnOrderNumber),
		BusinessID:    r.String(domain.ColumnBusinessID),
		Subtotal:      amount(domain.ColumnSubtotal),
		TaxAmount:     amount(domain.ColumnTaxAmount),
		Discount:      amount(domain.ColumnDiscount),
		TotalAmount:   amount(domain.ColumnTotalAmount),
		Status:        domain.OrderStatus(r.String(domain.ColumnStatus)),
		PaymentStatus: domain.PaymentStatus(r.String(domain.ColumnPaymentStatus)),
		PaymentMethod: r.String(domain.ColumnPaymentMethod),
		OrderType:     r.String(domain.ColumnOrderType),
		Customer: domain.Customer{
			Name:    r.String(domain.ColumnCustomerName),
			Phone:   r.String(domain.ColumnCustomerPhone),
			Email:   r.String(domain.ColumnCustomerEmail),
			Address: r.String(domain.ColumnCustomerAddress),
		},
		CreatedAt: r.Time(domain.ColumnCreatedAt),
		UpdatedAt: r.Time(domain.ColumnUpdatedAt),
	}
}

func lineItemFromRecord(r port.Record) domain.OrderLineItem {
	qty, _ := r.Int("quantity")
	unit, _ := r.Float("unit_price")
	total, _ := r.Float("total_price")
	return domain.OrderLineItem{
		ID:          r.String(domain.ColumnID),
		OrderID:     r.String("order_id"),
		ProductID:   r.String("product_id"),
		ProductName: r.String("product_name"),
		Quantity:    qty,
		UnitPrice:   unit,
		TotalPrice:  total,
		CreatedAt:   r.Time(domain.ColumnCreatedAt),
	}
}
