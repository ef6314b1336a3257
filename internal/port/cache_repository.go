package port

import "context"

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
	// ReleaseIdempotency removes a key so the same request can be submitted again
	ReleaseIdempotency(ctx context.Context, key string) error
}

type Sequence interface {
	// Next returns the next value of a monotonic counter, starting at 1
	Next(ctx context.Context, name string) (int64, error)
}
