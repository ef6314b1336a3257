package schema

import (
	"context"
	"log/slog"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/port"
)

// Prober samples one stored order to learn the current column set. It never writes.
type Prober struct {
	store port.DataStore
}

func NewProber(store port.DataStore) *Prober {
	return &Prober{store: store}
}

// Probe never fails: an empty collection or a read error yields Unknown.
func (p *Prober) Probe(ctx context.Context) *Capability {
	rows, err := p.store.Select(ctx, domain.CollectionOrders, port.Query{Limit: 1})
	if err != nil {
		slog.WarnContext(ctx, "schema probe failed, relying on reactive degradation", "error", err)
		return Unknown()
	}
	if len(rows) == 0 {
		slog.InfoContext(ctx, "schema probe found no orders, capability unknown")
		return Unknown()
	}

	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	capability := KnownColumns(cols...)
	slog.InfoContext(ctx, "schema probe complete", "columns", capability.Columns())
	return capability
}
