package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

type stubStore struct {
	rows    []port.Record
	err     error
	inserts int
	updates int
}

func (s *stubStore) Insert(ctx context.Context, collection string, rows []port.Record) ([]port.Record, error) {
	s.inserts++
	return rows, nil
}

func (s *stubStore) Select(ctx context.Context, collection string, q port.Query) ([]port.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit > 0 && len(s.rows) > q.Limit {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func (s *stubStore) Update(ctx context.Context, collection string, filter map[string]any, values port.Record) (int64, error) {
	s.updates++
	return 0, nil
}

func TestProbe_SampledRecordDefinesCapability(t *testing.T) {
	store := &stubStore{rows: []port.Record{{
		"id": "o-1", "total_amount": 10.0, "status": "pending", "payment_status": "pending",
		"payment_method": "cash", "customer_name": "Ana",
	}}}

	c := NewProber(store).Probe(context.Background())

	assert.True(t, c.Known())
	assert.True(t, c.Allows("customer_name"))
	assert.False(t, c.Allows("customer_email"))
	assert.True(t, c.Allows("total_amount"))
	assert.Zero(t, store.inserts)
	assert.Zero(t, store.updates)
}

func TestProbe_EmptyOrFailingStoreIsUnknown(t *testing.T) {
	for name, store := range map[string]*stubStore{
		"empty":   {},
		"failing": {err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewProber(store).Probe(context.Background())
			assert.False(t, c.Known())
			assert.True(t, c.Allows("customer_email"))
			assert.Nil(t, c.Columns())
		})
	}
}

func TestCapability_Exclude(t *testing.T) {
	c := Unknown()
	c.Exclude("customer_email", "total_amount", "customer_phone")

	assert.False(t, c.Allows("customer_email"))
	assert.False(t, c.Allows("customer_phone"))
	assert.True(t, c.Allows("total_amount"), "required columns are never excluded")
	assert.True(t, c.Allows("order_type"))
	assert.Equal(t, []string{"customer_email", "customer_phone"}, c.Excluded())

	k := KnownColumns("customer_email", "order_type")
	k.Exclude("customer_email")
	assert.Equal(t, []string{"order_type"}, k.Columns())
}

func TestParseMissingColumns(t *testing.T) {
	tests := []struct {
		msg  string
		want []string
	}{
		{"Error 1054 (42S22): Unknown column 'customer_email' in 'field list'", []string{"customer_email"}},
		{"Unknown column 'orders.order_type' in 'field list'", []string{"order_type"}},
		{`ERROR: column "customer_phone" of relation "orders" does not exist (SQLSTATE 42703)`, []string{"customer_phone"}},
		{`ERROR: column "customer_phone" does not exist`, []string{"customer_phone"}},
		{"Could not find the 'customer_address' column of 'orders' in the schema cache", []string{"customer_address"}},
		{"duplicate key value violates unique constraint", nil},
	}

	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMissingColumns(tc.msg))
		})
	}
}

func TestMissingColumns(t *testing.T) {
	cols, ok := MissingColumns(fmt.Errorf("insert: %w", &domain.ColumnError{
		Collection: "orders", Columns: []string{"customer_email"},
	}))
	require.True(t, ok)
	assert.Equal(t, []string{"customer_email"}, cols)

	cols, ok = MissingColumns(errors.New("Could not find the 'order_type' column of 'orders' in the schema cache"))
	require.True(t, ok)
	assert.Equal(t, []string{"order_type"}, cols)

	_, ok = MissingColumns(errors.New("timeout"))
	assert.False(t, ok)
	_, ok = MissingColumns(nil)
	assert.False(t, ok)
}

func TestOnlyOptional(t *testing.T) {
	assert.True(t, OnlyOptional([]string{"customer_email", "order_type"}))
	assert.False(t, OnlyOptional([]string{"customer_email", "status"}))
}
