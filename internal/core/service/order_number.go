package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/pos-checkout/internal/port"
)

const orderNumberSequence = "order_number"

// OrderNumbers issues human-readable order numbers from a monotonic sequence.
// The opaque order id is assigned by the store and is the only identity.
type OrderNumbers struct {
	seq    port.Sequence
	prefix string
	now    func() time.Time
}

func NewOrderNumbers(seq port.Sequence, prefix string, now func() time.Time) *OrderNumbers {
	if prefix == "" {
		prefix = "ORD"
	}
	if now == nil {
		now = time.Now
	}
	return &OrderNumbers{seq: seq, prefix: prefix, now: now}
}

// Next returns PREFIX-YYYYMMDD-NNNNNN. Without a sequence, or when it fails,
// it falls back to a submission-time number that is not guaranteed unique.
func (n *OrderNumbers) Next(ctx context.Context) string {
	now := n.now()
	if n.seq != nil {
		v, err := n.seq.Next(ctx, orderNumberSequence)
		if err == nil {
			return fmt.Sprintf("%s-%s-%06d", n.prefix, now.Format("20060102"), v)
		}
		slog.WarnContext(ctx, "order number sequence unavailable, using timestamp", "error", err)
	}
	return fmt.Sprintf("%s-%d", n.prefix, now.UnixMilli())
}
