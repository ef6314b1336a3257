package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

func TestMemoryStore_InsertAssignsIDAndCreatedAt(t *testing.T) {
	store := NewMemoryStore()

	rows, err := store.Insert(context.Background(), "orders", []port.Record{{"total_amount": 10.0}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].String("id"))
	assert.False(t, rows[0].Time("created_at").IsZero())
	assert.Equal(t, 10.0, rows[0]["total_amount"])
}

func TestMemoryStore_SchemaRejectsUnknownColumns(t *testing.T) {
	store := NewMemoryStore()
	store.DefineSchema("orders", "total_amount", "status")

	_, err := store.Insert(context.Background(), "orders", []port.Record{
		{"total_amount": 1.0, "zeta": 1, "alpha": 2},
	})

	var colErr *domain.ColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, []string{"alpha", "zeta"}, colErr.Columns)
	assert.Empty(t, store.Rows("orders"), "a rejected insert must not store anything")
}

func TestMemoryStore_BatchInsertIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	store.DefineSchema("order_items", "order_id", "quantity")

	_, err := store.Insert(context.Background(), "order_items", []port.Record{
		{"order_id": "o1", "quantity": 1},
		{"order_id": "o1", "bogus": true},
	})
	require.Error(t, err)
	assert.Empty(t, store.Rows("order_items"))
}

func TestMemoryStore_SelectFilterOrderLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, email := range []string{"a@x", "b@x", "a@x"} {
		_, err := store.Insert(ctx, "orders", []port.Record{{"customer_email": email}})
		require.NoError(t, err)
	}

	rows, err := store.Select(ctx, "orders", port.Query{
		Filter:     map[string]any{"customer_email": "a@x"},
		OrderBy:    "created_at",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	all := store.Rows("orders")
	assert.Equal(t, all[2]["id"], rows[0]["id"], "newest first")
	assert.Equal(t, all[0]["id"], rows[1]["id"])

	limited, err := store.Select(ctx, "orders", port.Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_SelectMatchesNumericAcrossTypes(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("products", port.Record{"id": "p1", "stock_quantity": 5})

	rows, err := store.Select(context.Background(), "products", port.Query{
		Filter: map[string]any{"stock_quantity": int64(5)},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("orders", port.Record{"id": "o1", "payment_status": "pending"})

	n, err := store.Update(context.Background(), "orders",
		map[string]any{"id": "o1"}, port.Record{"payment_status": "paid"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "paid", store.Rows("orders")[0]["payment_status"])

	n, err = store.Update(context.Background(), "orders",
		map[string]any{"id": "missing"}, port.Record{"payment_status": "paid"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_FailureInjection(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")
	ctx := context.Background()

	store.FailNext("orders", OpInsert, boom)
	_, err := store.Insert(ctx, "orders", []port.Record{{"total_amount": 1.0}})
	assert.ErrorIs(t, err, boom)

	_, err = store.Insert(ctx, "orders", []port.Record{{"total_amount": 1.0}})
	assert.NoError(t, err, "FailNext fires once")

	store.FailAlways("orders", OpSelect, boom)
	for i := 0; i < 3; i++ {
		_, err = store.Select(ctx, "orders", port.Query{})
		assert.ErrorIs(t, err, boom)
	}
	store.ClearFailures()
	_, err = store.Select(ctx, "orders", port.Query{})
	assert.NoError(t, err)
}

func TestMemoryStore_CancelledContextIsUnavailable(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Insert(ctx, "orders", []port.Record{{"total_amount": 1.0}})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestMemoryStore_DecrementStock(t *testing.T) {
	tests := []struct {
		name      string
		stock     int
		sold      int
		want      int
		shortfall int
	}{
		{"covered", 10, 3, 7, 0},
		{"exact", 3, 3, 0, 0},
		{"clamped", 2, 5, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.Seed("products", port.Record{"id": "p1", "stock_quantity": tt.stock, "low_stock_threshold": 1})

			adj, err := store.DecrementStock(context.Background(), "p1", tt.sold)
			require.NoError(t, err)
			assert.Equal(t, tt.stock, adj.Previous)
			assert.Equal(t, tt.want, adj.New)
			assert.Equal(t, tt.shortfall, adj.Shortfall())
			assert.Equal(t, tt.want, store.Rows("products")[0]["stock_quantity"])
		})
	}
}

func TestMemoryStore_DecrementStockMissingProduct(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.DecrementStock(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_DecrementStockConcurrent(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("products", port.Record{"id": "p1", "stock_quantity": 20})

	var wg sync.WaitGroup
	var mu sync.Mutex
	short := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adj, err := store.DecrementStock(context.Background(), "p1", 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if adj.Shortfall() > 0 {
				mu.Lock()
				short++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, store.Rows("products")[0]["stock_quantity"])
	assert.Equal(t, 30, short)
}

func TestMemoryIdempotency(t *testing.T) {
	idem := NewMemoryIdempotency()
	ctx := context.Background()

	ok, err := idem.SetIdempotency(ctx, "checkout:r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = idem.SetIdempotency(ctx, "checkout:r1")
	assert.False(t, ok)

	ok, _ = idem.SetIdempotency(ctx, "checkout:r2")
	assert.True(t, ok)

	require.NoError(t, idem.ReleaseIdempotency(ctx, "checkout:r1"))
	ok, _ = idem.SetIdempotency(ctx, "checkout:r1")
	assert.True(t, ok, "a released key can be claimed again")
}

func TestMemorySequence(t *testing.T) {
	seq := NewMemorySequence()
	ctx := context.Background()

	a, _ := seq.Next(ctx, "order_number")
	b, _ := seq.Next(ctx, "order_number")
	c, _ := seq.Next(ctx, "other")
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, int64(1), c)
}
