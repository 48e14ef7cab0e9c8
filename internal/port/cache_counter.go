package port

import "context"

// CacheCounter executes check-and-decrement as a single indivisible step
// against a shadow counter in a low-latency store. It is the sole writer of
// the shadow value once populated.
type CacheCounter interface {
	// EnsurePopulated seeds the shadow counter from loader when absent. The
	// write is set-if-absent: under a concurrent first access exactly one
	// load wins and late losers observe the already-set value.
	EnsurePopulated(ctx context.Context, productKey string, loader func(context.Context) (int, error)) error

	// DecrementAtomic runs the scripted read-check-subtract with no
	// interleaving on the same key. A success returns the authoritative
	// post-decrement quantity; domain.ErrInsufficientStock means no mutation
	// happened.
	DecrementAtomic(ctx context.Context, productKey string, quantity int) (int, error)

	// Restore adds quantity back (rollback when downstream persistence fails).
	Restore(ctx context.Context, productKey string, quantity int) error
}
