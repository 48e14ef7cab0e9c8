package port

import "context"

// Ledger is the idempotency record for processed decrements. Entries live in
// a bounded window that outlasts any plausible redelivery delay.
type Ledger interface {
	// Result returns the remaining quantity recorded for an already
	// processed deduplication key, if any.
	Result(ctx context.Context, key string) (remaining int, ok bool, err error)

	// Record stores the successful outcome for a deduplication key.
	Record(ctx context.Context, key string, remaining int) error

	// Reserve marks a key as seen for enqueue-side deduplication. It returns
	// false when the key was already present in the window.
	Reserve(ctx context.Context, key string) (bool, error)

	// Release removes a reserved key so the request can be enqueued again.
	// Used to compensate when the enqueue that reserved it never completed.
	Release(ctx context.Context, key string) error
}
