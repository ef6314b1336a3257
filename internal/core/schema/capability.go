// Package schema tracks which optional order columns the backing store accepts.
//
// A Capability is built once at startup by the Prober and injected wherever
// order payloads are assembled. It is advisory: it narrows the optional set
// before a write, but the writer still handles rejections reactively and feeds
// what it learns back through Exclude.
package schema

import (
	"sort"
	"sync"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

type Capability struct {
	mu       sync.RWMutex
	known    bool
	columns  map[string]struct{}
	excluded map[string]struct{}
}

// Unknown returns a capability with no information; every column is attempted.
func Unknown() *Capability {
	return &Capability{excluded: make(map[string]struct{})}
}

// KnownColumns returns a capability whose supported superset is cols.
func KnownColumns(cols ...string) *Capability {
	c := Unknown()
	c.known = true
	c.columns = make(map[string]struct{}, len(cols))
	for _, col := range cols {
		c.columns[col] = struct{}{}
	}
	return c
}

// Known reports whether the supported set came from a sampled record.
func (c *Capability) Known() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.known
}

// Allows reports whether col should be attempted on the next write.
// Required columns are always allowed.
func (c *Capability) Allows(col string) bool {
	if domain.IsRequiredOrderColumn(col) {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.excluded[col]; ok {
		return false
	}
	if !c.known {
		return true
	}
	_, ok := c.columns[col]
	return ok
}

// Exclude records columns the store rejected. Required columns are ignored.
func (c *Capability) Exclude(cols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range cols {
		if domain.IsRequiredOrderColumn(col) {
			continue
		}
		c.excluded[col] = struct{}{}
		delete(c.columns, col)
	}
}

// Excluded returns the columns learned from rejections, sorted.
func (c *Capability) Excluded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.excluded)
}

// Columns returns the sampled column set, or nil when unknown.
func (c *Capability) Columns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.known {
		return nil
	}
	return sortedKeys(c.columns)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
