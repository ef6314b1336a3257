package handler

import (
	"time"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

// Wire messages shared by the HTTP and gRPC surfaces.

type CustomerDTO struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type LineItemDTO struct {
	ID          string  `json:"id,omitempty"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price,omitempty"`
}

type CreateOrderRequest struct {
	RequestID     string        `json:"request_id,omitempty"`
	BusinessID    string        `json:"business_id,omitempty"`
	Items         []LineItemDTO `json:"items"`
	Discount      float64       `json:"discount,omitempty"`
	Customer      CustomerDTO   `json:"customer"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Status        string        `json:"status,omitempty"`
	OrderType     string        `json:"order_type,omitempty"`
}

type TotalsDTO struct {
	Subtotal    float64 `json:"subtotal"`
	TaxAmount   float64 `json:"tax_amount"`
	Discount    float64 `json:"discount"`
	TotalAmount float64 `json:"total_amount"`
}

type WarningDTO struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id,omitempty"`
	Message   string `json:"message"`
}

type StockLevelDTO struct {
	ProductID         string `json:"product_id"`
	StockQuantity     int    `json:"stock_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type CreateOrderResponse struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Degraded      bool            `json:"degraded"`
	DroppedFields []string        `json:"dropped_fields,omitempty"`
	Warnings      []WarningDTO    `json:"warnings,omitempty"`
	LowStock      []StockLevelDTO `json:"low_stock,omitempty"`
	Totals        TotalsDTO       `json:"totals"`
}

type OrderDTO struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"order_number,omitempty"`
	BusinessID    string        `json:"business_id,omitempty"`
	Subtotal      float64       `json:"subtotal"`
	TaxAmount     float64       `json:"tax_amount"`
	Discount      float64       `json:"discount"`
	TotalAmount   float64       `json:"total_amount"`
	Status        string        `json:"status"`
	PaymentStatus string        `json:"payment_status"`
	PaymentMethod string        `json:"payment_method"`
	OrderType     string        `json:"order_type,omitempty"`
	Customer      CustomerDTO   `json:"customer"`
	CreatedAt     *time.Time    `json:"created_at,omitempty"`
	Items         []LineItemDTO `json:"items,omitempty"`
}

type ListOrdersRequest struct {
	CustomerEmail string `json:"customer_email,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type UpdatePaymentRequest struct {
	ID            string `json:"id,omitempty"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status,omitempty"`
}

type UpdatePaymentResponse struct {
	ID string `json:"id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r CreateOrderRequest) toDomain() domain.CheckoutRequest {
	lines := make([]domain.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.CartLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return domain.CheckoutRequest{
		RequestID:     r.RequestID,
		BusinessID:    r.BusinessID,
		Lines:         lines,
		Discount:      r.Discount,
		Customer:      domain.Customer(r.Customer),
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: r.PaymentStatus,
		Status:        r.Status,
		OrderType:     r.OrderType,
	}
}

func newCreateOrderResponse(res *domain.CheckoutResult) CreateOrderResponse {
	out := CreateOrderResponse{
		OrderID:       res.OrderID,
		OrderNumber:   res.OrderNumber,
		Degraded:      res.Degraded,
		DroppedFields: res.DroppedFields,
		Totals:        TotalsDTO(res.Totals),
	}
	for _, w := range res.Warnings {
		msg := ""
		if w.Err != nil {
			msg = w.Err.Error()
		}
		out.Warnings = append(out.Warnings, WarningDTO{Kind: string(w.Kind), ProductID: w.ProductID, Message: msg})
	}
	for _, l := range res.LowStock {
		out.LowStock = append(out.LowStock, StockLevelDTO(l))
	}
	return out
}

func newOrderDTO(o domain.Order, items []domain.OrderLineItem) OrderDTO {
	dto := OrderDTO{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		BusinessID:    o.BusinessID,
		Subtotal:      o.Subtotal,
		TaxAmount:     o.TaxAmount,
		Discount:      o.Discount,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: o.PaymentMethod,
		OrderType:     o.OrderType,
		Customer:      CustomerDTO(o.Customer),
	}
	if !o.CreatedAt.IsZero() {
		created := o.CreatedAt
		dto.CreatedAt = &created
	}
	for _, it := range items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return dto
}
