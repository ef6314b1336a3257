package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

// Op names a MemoryStore operation for failure injection.
type Op string

const (
	OpInsert    Op = "insert"
	OpSelect    Op = "select"
	OpUpdate    Op = "update"
	OpDecrement Op = "decrement"
)

// storeAssigned columns are accepted by every collection, with or without a schema.
var storeAssigned = []string{domain.ColumnID, domain.ColumnCreatedAt, domain.ColumnUpdatedAt}

type memRow struct {
	seq int64
	rec port.Record
}

type failure struct {
	err    error
	always bool
}

// MemoryStore is an in-process DataStore used by the default server
// configuration and by tests. Collections without a defined schema accept
// any column.
type MemoryStore struct {
	mu       sync.Mutex
	rows     map[string][]memRow
	schemas  map[string]map[string]struct{}
	failures map[string]failure
	seq      int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:     make(map[string][]memRow),
		schemas:  make(map[string]map[string]struct{}),
		failures: make(map[string]failure),
		now:      time.Now,
	}
}

// DefineSchema restricts collection to cols plus the store-assigned columns.
func (m *MemoryStore) DefineSchema(collection string, cols ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(cols)+len(storeAssigned))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	for _, c := range storeAssigned {
		set[c] = struct{}{}
	}
	m.schemas[collection] = set
}

// FailNext makes the next op on collection return err.
func (m *MemoryStore) FailNext(collection string, op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey(collection, op)] = failure{err: err}
}

// FailAlways makes every op on collection return err until ClearFailures.
func (m *MemoryStore) FailAlways(collection string, op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey(collection, op)] = failure{err: err, always: true}
}

func (m *MemoryStore) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]failure)
}

// Seed stores rows as given, bypassing schema checks and failure injection.
func (m *MemoryStore) Seed(collection string, rows ...port.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.appendLocked(collection, r.Clone())
	}
}

// Rows returns a copy of every row in collection in insertion order.
func (m *MemoryStore) Rows(collection string) []port.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]port.Record, 0, len(m.rows[collection]))
	for _, r := range m.rows[collection] {
		out = append(out, r.rec.Clone())
	}
	return out
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, rows []port.Record) ([]port.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("insert "+collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(collection, OpInsert); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := m.checkColumnsLocked(collection, r.Keys()); err != nil {
			return nil, err
		}
	}

	out := make([]port.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, m.appendLocked(collection, r.Clone()).Clone())
	}
	return out, nil
}

func (m *MemoryStore) Select(ctx context.Context, collection string, q port.Query) ([]port.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("select "+collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(collection, OpSelect); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(q.Filter)+1)
	for k := range q.Filter {
		cols = append(cols, k)
	}
	if q.OrderBy != "" {
		cols = append(cols, q.OrderBy)
	}
	if err := m.checkColumnsLocked(collection, cols); err != nil {
		return nil, err
	}

	var matched []memRow
	for _, r := range m.rows[collection] {
		if matches(r.rec, q.Filter) {
			matched = append(matched, r)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i].rec[q.OrderBy], matched[j].rec[q.OrderBy])
			if c == 0 {
				c = compareValues(matched[i].seq, matched[j].seq)
			}
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]port.Record, 0, len(matched))
	for _, r := range matched {
		out = append(out, r.rec.Clone())
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection string, filter map[string]any, values port.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Unavailable("update "+collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(collection, OpUpdate); err != nil {
		return 0, err
	}
	cols := values.Keys()
	for k := range filter {
		cols = append(cols, k)
	}
	if err := m.checkColumnsLocked(collection, cols); err != nil {
		return 0, err
	}

	var n int64
	now := m.now()
	for _, r := range m.rows[collection] {
		if !matches(r.rec, filter) {
			continue
		}
		for k, v := range values {
			r.rec[k] = v
		}
		r.rec[domain.ColumnUpdatedAt] = now
		n++
	}
	return n, nil
}

// DecrementStock applies the clamped decrement under the store lock.
func (m *MemoryStore) DecrementStock(ctx context.Context, productID string, quantity int) (domain.StockAdjustment, error) {
	if err := ctx.Err(); err != nil {
		return domain.StockAdjustment{}, domain.Unavailable("decrement stock", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injectedLocked(domain.CollectionProducts, OpDecrement); err != nil {
		return domain.StockAdjustment{}, err
	}

	filter := map[string]any{domain.ColumnID: productID}
	for _, r := range m.rows[domain.CollectionProducts] {
		if !matches(r.rec, filter) {
			continue
		}
		adj, err := adjustmentFor(productID, []port.Record{r.rec}, quantity)
		if err != nil {
			return domain.StockAdjustment{}, err
		}
		r.rec[domain.ColumnStockQuantity] = adj.New
		r.rec[domain.ColumnUpdatedAt] = m.now()
		return adj, nil
	}
	return domain.StockAdjustment{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
}

func (m *MemoryStore) appendLocked(collection string, rec port.Record) port.Record {
	m.seq++
	if rec.String(domain.ColumnID) == "" {
		rec[domain.ColumnID] = uuid.NewString()
	}
	if _, ok := rec[domain.ColumnCreatedAt]; !ok {
		rec[domain.ColumnCreatedAt] = m.now()
	}
	m.rows[collection] = append(m.rows[collection], memRow{seq: m.seq, rec: rec})
	return rec
}

func (m *MemoryStore) injectedLocked(collection string, op Op) error {
	key := failureKey(collection, op)
	f, ok := m.failures[key]
	if !ok {
		return nil
	}
	if !f.always {
		delete(m.failures, key)
	}
	return f.err
}

func (m *MemoryStore) checkColumnsLocked(collection string, cols []string) error {
	set, ok := m.schemas[collection]
	if !ok {
		return nil
	}
	var unknown []string
	for _, c := range cols {
		if _, ok := set[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &domain.ColumnError{Collection: collection, Columns: unknown}
}

func failureKey(collection string, op Op) string {
	return collection + "/" + string(op)
}

func matches(rec port.Record, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := rec[k]
		if !ok || compareValues(got, want) != 0 {
			return false
		}
	}
	return true
}

// compareValues orders times, then numbers, then everything else by its string form.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	fa, okA := port.Record{"v": a}.Float("v")
	fb, okB := port.Record{"v": b}.Float("v")
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// MemoryIdempotency is the in-process stand-in for the Redis idempotency keys.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: make(map[string]time.Time), ttl: idempotencyKeyTTL, now: time.Now}
}

func (m *MemoryIdempotency) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.keys[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryIdempotency) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type MemorySequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{values: make(map[string]int64)}
}

func (s *MemorySequence) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name]++
	return s.values[name], nil
}
