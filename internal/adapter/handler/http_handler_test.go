package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/adapter/storage"
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/port"
)

func newTestServer(t *testing.T, store *storage.MemoryStore) *httptest.Server {
	t.Helper()
	svc := service.NewOrderService(store, nil, service.Options{
		Idempotency: storage.NewMemoryIdempotency(),
		Sequence:    storage.NewMemorySequence(),
	})
	srv := httptest.NewServer(NewHTTPHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, header http.Header) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHTTP_CreateOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed(domain.CollectionProducts, port.Record{"id": "p1", "stock_quantity": 3, "low_stock_threshold": 2})
	srv := newTestServer(t, store)

	resp := postJSON(t, srv.URL+"/api/orders", CreateOrderRequest{
		Items:    []LineItemDTO{{ProductID: "p1", ProductName: "Coffee", Quantity: 2, UnitPrice: 100}},
		Customer: CustomerDTO{Name: "Ana"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[CreateOrderResponse](t, resp)
	assert.NotEmpty(t, body.OrderID)
	assert.NotEmpty(t, body.OrderNumber)
	assert.False(t, body.Degraded)
	assert.Equal(t, TotalsDTO{Subtotal: 200, TaxAmount: 36, TotalAmount: 236}, body.Totals)
	require.Len(t, body.LowStock, 1)
	assert.Equal(t, 1, body.LowStock[0].StockQuantity)
}

func TestHTTP_CreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*storage.MemoryStore)
		body   any
		status int
		code   string
	}{
		{
			name:   "empty cart",
			body:   CreateOrderRequest{},
			status: http.StatusBadRequest,
			code:   "validation_failed",
		},
		{
			name:   "malformed body",
			body:   "not an object",
			status: http.StatusBadRequest,
			code:   "invalid_json",
		},
		{
			name: "store down",
			setup: func(s *storage.MemoryStore) {
				s.FailNext(domain.CollectionOrders, storage.OpInsert, domain.Unavailable("insert orders", errors.New("refused")))
			},
			body:   CreateOrderRequest{Items: []LineItemDTO{{Quantity: 1, UnitPrice: 5}}},
			status: http.StatusServiceUnavailable,
			code:   "store_unavailable",
		},
		{
			name: "required column missing",
			setup: func(s *storage.MemoryStore) {
				s.DefineSchema(domain.CollectionOrders, "total_amount")
			},
			body:   CreateOrderRequest{Items: []LineItemDTO{{Quantity: 1, UnitPrice: 5}}},
			status: http.StatusUnprocessableEntity,
			code:   "schema_incompatible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if tt.setup != nil {
				tt.setup(store)
			}
			srv := newTestServer(t, store)

			resp := postJSON(t, srv.URL+"/api/orders", tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Error)
		})
	}
}

func TestHTTP_IdempotencyHeader(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore())
	body := CreateOrderRequest{Items: []LineItemDTO{{Quantity: 1, UnitPrice: 5}}}
	header := http.Header{idempotencyHeader: []string{"key-1"}}

	first := postJSON(t, srv.URL+"/api/orders", body, header)
	first.Body.Close()
	assert.Equal(t, http.StatusCreated, first.StatusCode)

	second := postJSON(t, srv.URL+"/api/orders", body, header)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestHTTP_ListAndGetOrders(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore())

	var ids []string
	for _, email := range []string{"a@x.com", "b@x.com"} {
		resp := postJSON(t, srv.URL+"/api/orders", CreateOrderRequest{
			Items:    []LineItemDTO{{ProductName: "Tea", Quantity: 1, UnitPrice: 5}},
			Customer: CustomerDTO{Email: email},
		}, nil)
		ids = append(ids, decode[CreateOrderResponse](t, resp).OrderID)
	}

	resp, err := http.Get(srv.URL + "/api/orders")
	require.NoError(t, err)
	list := decode[ListOrdersResponse](t, resp)
	require.Len(t, list.Orders, 2)
	assert.Equal(t, ids[1], list.Orders[0].ID)

	resp, err = http.Get(srv.URL + "/api/orders?customer_email=a@x.com")
	require.NoError(t, err)
	list = decode[ListOrdersResponse](t, resp)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, ids[0], list.Orders[0].ID)

	resp, err = http.Get(srv.URL + "/api/orders?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/orders/" + ids[0])
	require.NoError(t, err)
	order := decode[OrderDTO](t, resp)
	assert.Equal(t, ids[0], order.ID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Tea", order.Items[0].ProductName)

	resp, err = http.Get(srv.URL + "/api/orders/does-not-exist")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_UpdatePayment(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore())
	resp := postJSON(t, srv.URL+"/api/orders", CreateOrderRequest{Items: []LineItemDTO{{Quantity: 1, UnitPrice: 5}}}, nil)
	id := decode[CreateOrderResponse](t, resp).OrderID

	patch := func(body string) int {
		req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/orders/"+id+"/payment", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, patch(`{"payment_status":"paid","status":"completed"}`))
	assert.Equal(t, http.StatusBadRequest, patch(`{"payment_status":"refunded"}`))

	resp, err := http.Get(srv.URL + "/api/orders/" + id)
	require.NoError(t, err)
	order := decode[OrderDTO](t, resp)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.Equal(t, "completed", order.Status)
}

func TestHTTP_Health(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStore())
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}
