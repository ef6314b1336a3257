package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/rl1809/pos-checkout/internal/core/billing"
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/schema"
	"github.com/rl1809/pos-checkout/internal/port"
)

// OrderHeader is the writer input. Nil pointers and empty strings are
// treated as absent and never written.
type OrderHeader struct {
	TotalAmount   *float64
	PaymentMethod string
	PaymentStatus string
	Status        string

	OrderNumber string
	BusinessID  string
	OrderType   string
	Subtotal    *float64
	TaxAmount   *float64
	Discount    *float64
	Customer    domain.Customer
}

// WriteOutcome describes how the header was persisted.
type WriteOutcome struct {
	OrderID  string
	Stored   port.Record
	Degraded bool
	// Dropped lists optional columns that had a value but were not written.
	Dropped  []string
	Attempts int
}

// OrderWriter persists order headers, degrading to the required columns when
// the schema rejects optional ones.
type OrderWriter struct {
	store      port.DataStore
	capability *schema.Capability
}

func NewOrderWriter(store port.DataStore, capability *schema.Capability) *OrderWriter {
	if capability == nil {
		capability = schema.Unknown()
	}
	return &OrderWriter{store: store, capability: capability}
}

// Write inserts the header once, or twice when the first attempt is rejected
// for unknown optional columns.
func (w *OrderWriter) Write(ctx context.Context, h OrderHeader) (WriteOutcome, error) {
	required, optional, err := buildPayload(h)
	if err != nil {
		return WriteOutcome{}, err
	}

	payload := required.Clone()
	var dropped []string
	for col, v := range optional {
		if w.capability.Allows(col) {
			payload[col] = v
		} else {
			dropped = append(dropped, col)
		}
	}

	id, stored, err := w.insert(ctx, payload)
	if err == nil {
		sort.Strings(dropped)
		if len(dropped) > 0 {
			slog.WarnContext(ctx, "order saved without unsupported fields", "order_id", id, "dropped", dropped)
		}
		return WriteOutcome{OrderID: id, Stored: stored, Degraded: len(dropped) > 0, Dropped: dropped, Attempts: 1}, nil
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return WriteOutcome{}, err
	}

	cols, isSchema := schema.MissingColumns(err)
	if !isSchema {
		return WriteOutcome{}, fmt.Errorf("insert order: %w: %w", domain.ErrWriteRejected, err)
	}
	if !rejectsOnlySentOptional(cols, payload) {
		return WriteOutcome{}, fmt.Errorf("insert order: %w: %w", domain.ErrSchemaIncompatible, err)
	}

	w.capability.Exclude(cols...)
	slog.WarnContext(ctx, "order insert rejected optional columns, retrying with required fields",
		"rejected", cols)

	id, stored, retryErr := w.insert(ctx, required)
	if retryErr != nil {
		if errors.Is(retryErr, domain.ErrStoreUnavailable) {
			return WriteOutcome{}, retryErr
		}
		return WriteOutcome{}, fmt.Errorf("insert minimal order: %w: %w", domain.ErrSchemaIncompatible, retryErr)
	}

	dropped = dropped[:0]
	for col := range optional {
		dropped = append(dropped, col)
	}
	sort.Strings(dropped)
	slog.WarnContext(ctx, "order saved with required fields only", "order_id", id, "dropped", dropped)

	return WriteOutcome{OrderID: id, Stored: stored, Degraded: true, Dropped: dropped, Attempts: 2}, nil
}

func (w *OrderWriter) insert(ctx context.Context, payload port.Record) (string, port.Record, error) {
	rows, err := w.store.Insert(ctx, domain.CollectionOrders, []port.Record{payload})
	if err != nil {
		return "", nil, err
	}
	if len(rows) != 1 || rows[0].String(domain.ColumnID) == "" {
		return "", nil, fmt.Errorf("insert order: %w: store returned no id", domain.ErrWriteRejected)
	}
	return rows[0].String(domain.ColumnID), rows[0], nil
}

// rejectsOnlySentOptional is true when every rejected column is optional and
// at least one of them was part of the failed payload.
func rejectsOnlySentOptional(cols []string, sent port.Record) bool {
	if !schema.OnlyOptional(cols) {
		return false
	}
	for _, c := range cols {
		if _, ok := sent[c]; ok {
			return true
		}
	}
	return false
}

func buildPayload(h OrderHeader) (required, optional port.Record, err error) {
	if h.TotalAmount == nil {
		return nil, nil, domain.NewValidationError(domain.ColumnTotalAmount, "required")
	}
	total := *h.TotalAmount
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return nil, nil, domain.NewValidationError(domain.ColumnTotalAmount, "must be a non-negative amount")
	}

	method := strings.TrimSpace(h.PaymentMethod)
	if method == "" {
		method = domain.DefaultPaymentMethod
	}
	payStatus := domain.PaymentStatus(strings.TrimSpace(h.PaymentStatus))
	if payStatus == "" {
		payStatus = domain.PaymentStatusPending
	}
	if !payStatus.Valid() {
		return nil, nil, domain.NewValidationError(domain.ColumnPaymentStatus, "must be pending or paid")
	}
	status := domain.OrderStatus(strings.TrimSpace(h.Status))
	if status == "" {
		status = domain.OrderStatusPending
	}
	if !status.Valid() {
		return nil, nil, domain.NewValidationError(domain.ColumnStatus, "must be pending, completed or cancelled")
	}

	if h.Subtotal != nil && h.TaxAmount != nil {
		discount := 0.0
		if h.Discount != nil {
			discount = *h.Discount
		}
		if !billing.WithinTolerance(total, *h.Subtotal-discount+*h.TaxAmount) {
			return nil, nil, domain.NewValidationError(domain.ColumnTotalAmount, "does not equal subtotal - discount + tax_amount")
		}
	}

	required = port.Record{
		domain.ColumnTotalAmount:   billing.Round(total),
		domain.ColumnPaymentMethod: method,
		domain.ColumnPaymentStatus: string(payStatus),
		domain.ColumnStatus:        string(status),
	}

	optional = port.Record{}
	putString(optional, domain.ColumnOrderNumber, h.OrderNumber)
	putString(optional, domain.ColumnBusinessID, h.BusinessID)
	putString(optional, domain.ColumnOrderType, h.OrderType)
	putString(optional, domain.ColumnCustomerName, h.Customer.Name)
	putString(optional, domain.ColumnCustomerPhone, h.Customer.Phone)
	putString(optional, domain.ColumnCustomerEmail, h.Customer.Email)
	putString(optional, domain.ColumnCustomerAddress, h.Customer.Address)
	putAmount(optional, domain.ColumnSubtotal, h.Subtotal)
	putAmount(optional, domain.ColumnTaxAmount, h.TaxAmount)
	putAmount(optional, domain.ColumnDiscount, h.Discount)

	return required, optional, nil
}

func putString(r port.Record, col, v string) {
	if v = strings.TrimSpace(v); v != "" {
		r[col] = v
	}
}

func putAmount(r port.Record, col string, v *float64) {
	if v != nil {
		r[col] = billing.Round(*v)
	}
}
