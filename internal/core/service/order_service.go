package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rl1809/pos-checkout/internal/core/billing"
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/saga"
	"github.com/rl1809/pos-checkout/internal/core/schema"
	"github.com/rl1809/pos-checkout/internal/port"
)

// Saga step names.
const (
	StepWriteOrder      = "write_order"
	StepCommitLineItems = "commit_line_items"
	StepAdjustInventory = "adjust_inventory"
)

type Options struct {
	// TaxRateBP is the tax rate in basis points; nil means billing.DefaultTaxRateBP.
	TaxRateBP         *int64
	OrderNumberPrefix string
	ListLimit         int
	Idempotency       port.IdempotencyStore
	Sequence          port.Sequence
	Now               func() time.Time
}

// OrderService turns a submitted cart into an order header, its line items
// and adjusted stock levels.
type OrderService struct {
	store    port.DataStore
	calc     billing.Calculator
	writer   *OrderWriter
	items    *LineItemCommitter
	adjuster *InventoryAdjuster
	query    *OrderQuery
	numbers  *OrderNumbers
	idem     port.IdempotencyStore
}

func NewOrderService(store port.DataStore, capability *schema.Capability, opts Options) *OrderService {
	if capability == nil {
		capability = schema.Unknown()
	}
	taxRate := int64(billing.DefaultTaxRateBP)
	if opts.TaxRateBP != nil {
		taxRate = *opts.TaxRateBP
	}
	return &OrderService{
		store:    store,
		calc:     billing.NewCalculator(taxRate),
		writer:   NewOrderWriter(store, capability),
		items:    NewLineItemCommitter(store),
		adjuster: NewInventoryAdjuster(store),
		query:    NewOrderQuery(store, capability, opts.ListLimit),
		numbers:  NewOrderNumbers(opts.Sequence, opts.OrderNumberPrefix, opts.Now),
		idem:     opts.Idempotency,
	}
}

// Checkout runs billing, the header write, the line item batch and the stock
// adjustment in that order. Only the header write can fail the checkout;
// later failures are returned as warnings on the result.
func (s *OrderService) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	lines, totals, err := s.price(req)
	if err != nil {
		return nil, err
	}

	idemKey := ""
	if req.RequestID != "" && s.idem != nil {
		idemKey = "checkout:" + req.RequestID
		ok, err := s.idem.SetIdempotency(ctx, idemKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	result := &domain.CheckoutResult{
		OrderNumber: s.numbers.Next(ctx),
		Totals:      totals,
	}

	header := OrderHeader{
		TotalAmount:   &totals.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		Status:        string(normalizeStatus(req.Status)),
		OrderNumber:   result.OrderNumber,
		BusinessID:    req.BusinessID,
		OrderType:     req.OrderType,
		Subtotal:      &totals.Subtotal,
		TaxAmount:     &totals.TaxAmount,
		Discount:      &totals.Discount,
		Customer:      req.Customer,
	}

	orchestrator := saga.NewOrchestrator(
		saga.StepFunc{StepName: StepWriteOrder, IsCritical: true, Fn: func(ctx context.Context) (saga.Outcome, error) {
			out, err := s.writer.Write(ctx, header)
			if err != nil {
				return saga.OutcomeFailed, err
			}
			result.OrderID = out.OrderID
			result.Degraded = out.Degraded
			result.DroppedFields = out.Dropped
			for i := range lines {
				lines[i].OrderID = out.OrderID
			}
			if out.Degraded {
				return saga.OutcomeDegraded, nil
			}
			return saga.OutcomeCommitted, nil
		}},
		saga.StepFunc{StepName: StepCommitLineItems, Fn: func(ctx context.Context) (saga.Outcome, error) {
			if err := s.items.Commit(ctx, result.OrderID, lines); err != nil {
				result.Warnings = append(result.Warnings, domain.Warning{Kind: domain.WarningLineItems, Err: err})
				return saga.OutcomeWarning, err
			}
			return saga.OutcomeCommitted, nil
		}},
		saga.StepFunc{StepName: StepAdjustInventory, Fn: func(ctx context.Context) (saga.Outcome, error) {
			report := s.adjuster.Adjust(ctx, lines)
			result.Adjustments = report.Adjustments
			result.LowStock = report.LowStock
			result.Warnings = append(result.Warnings, report.Warnings...)
			if len(report.Warnings) > 0 {
				return saga.OutcomeWarning, nil
			}
			return saga.OutcomeCommitted, nil
		}},
	)

	if _, err := orchestrator.Run(ctx); err != nil {
		// No order was stored, so the caller may retry with the same request id.
		if idemKey != "" {
			if relErr := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), idemKey); relErr != nil {
				slog.WarnContext(ctx, "failed to release idempotency key", "key", idemKey, "error", relErr)
			}
		}
		return nil, err
	}

	slog.InfoContext(ctx, "order committed",
		"order_id", result.OrderID,
		"order_number", result.OrderNumber,
		"total_amount", totals.TotalAmount,
		"degraded", result.Degraded,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// price validates the cart and derives line totals and order totals.
func (s *OrderService) price(req domain.CheckoutRequest) ([]domain.OrderLineItem, domain.Totals, error) {
	if len(req.Lines) == 0 {
		return nil, domain.Totals{}, domain.NewValidationError("items", "cart is empty")
	}
	if ps := strings.TrimSpace(req.PaymentStatus); ps != "" && !domain.PaymentStatus(ps).Valid() {
		return nil, domain.Totals{}, domain.NewValidationError(domain.ColumnPaymentStatus, "must be pending or paid")
	}

	billLines := make([]billing.Line, 0, len(req.Lines))
	items := make([]domain.OrderLineItem, 0, len(req.Lines))
	for i, l := range req.Lines {
		bl := billing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		total, err := billing.LineTotal(bl)
		if err != nil {
			return nil, domain.Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if l.TotalPrice != 0 && !billing.WithinTolerance(l.TotalPrice, total) {
			return nil, domain.Totals{}, fmt.Errorf("line %d: %w", i+1,
				domain.NewValidationError("total_price", "does not equal quantity * unit_price"))
		}
		billLines = append(billLines, bl)
		items = append(items, domain.OrderLineItem{
			ProductID:   strings.TrimSpace(l.ProductID),
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   billing.Round(l.UnitPrice),
			TotalPrice:  total,
		})
	}

	totals, err := s.calc.Calculate(billLines, req.Discount)
	if err != nil {
		return nil, domain.Totals{}, err
	}
	return items, totals, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	return s.query.ListOrders(ctx, f)
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.OrderDetail, error) {
	return s.query.GetOrder(ctx, id)
}

// UpdatePaymentStatus is called by the payment collaborator once checkout
// continues outside this service.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, payment domain.PaymentStatus, status domain.OrderStatus) error {
	if id == "" {
		return domain.NewValidationError(domain.ColumnID, "required")
	}
	if !payment.Valid() {
		return domain.NewValidationError(domain.ColumnPaymentStatus, "must be pending or paid")
	}
	values := port.Record{domain.ColumnPaymentStatus: string(payment)}
	if status != "" {
		if !status.Valid() {
			return domain.NewValidationError(domain.ColumnStatus, "must be pending, completed or cancelled")
		}
		values[domain.ColumnStatus] = string(status)
	}

	if err := s.query.exists(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.Update(ctx, domain.CollectionOrders, map[string]any{domain.ColumnID: id}, values); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	slog.InfoContext(ctx, "payment status updated", "order_id", id, "payment_status", payment, "status", status)
	return nil
}

// normalizeStatus accepts only "completed" at the boundary; anything else is pending.
func normalizeStatus(s string) domain.OrderStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(domain.OrderStatusCompleted)) {
		return domain.OrderStatusCompleted
	}
	return domain.OrderStatusPending
}
