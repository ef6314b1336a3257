package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

const DefaultPaymentMethod = "cash"

// Collection names in the backing store.
const (
	CollectionOrders     = "orders"
	CollectionOrderItems = "order_items"
	CollectionProducts   = "products"
)

// Column names of the orders collection.
const (
	ColumnID              = "id"
	ColumnOrderNumber     = "order_number"
	ColumnBusinessID      = "business_id"
	ColumnSubtotal        = "subtotal"
	ColumnTaxAmount       = "tax_amount"
	ColumnDiscount        = "discount"
	ColumnTotalAmount     = "total_amount"
	ColumnStatus          = "status"
	ColumnPaymentStatus   = "payment_status"
	ColumnPaymentMethod   = "payment_method"
	ColumnOrderType       = "order_type"
	ColumnCustomerName    = "customer_name"
	ColumnCustomerPhone   = "customer_phone"
	ColumnCustomerEmail   = "customer_email"
	ColumnCustomerAddress = "customer_address"
	ColumnCreatedAt       = "created_at"
	ColumnUpdatedAt       = "updated_at"
)

// RequiredOrderColumns are written on every attempt; the rest of the header is best effort.
var RequiredOrderColumns = []string{
	ColumnTotalAmount,
	ColumnPaymentMethod,
	ColumnPaymentStatus,
	ColumnStatus,
}

// IsRequiredOrderColumn reports whether col belongs to the minimal order payload.
func IsRequiredOrderColumn(col string) bool {
	for _, c := range RequiredOrderColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Customer is the optional snapshot stored on the order header.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

type Order struct {
	ID            string
	OrderNumber   string
	BusinessID    string
	Subtotal      float64
	TaxAmount     float64
	Discount      float64
	TotalAmount   float64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod string
	OrderType     string
	Customer      Customer
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderLineItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   float64
	TotalPrice  float64
	CreatedAt   time.Time
}

// OrderDetail is an order header together with its line items.
type OrderDetail struct {
	Order
	Items []OrderLineItem
}
