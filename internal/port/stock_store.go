package port

import (
	"context"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

// StockStore is the durable counter. All mutations of the authoritative
// quantity go through this transactional API; nothing bypasses it.
type StockStore interface {
	// Get returns the current quantity without locking.
	Get(ctx context.Context, productKey string) (int, error)

	// DecrementExclusive locks the row, checks the quantity, and decrements,
	// all inside one transaction. Returns the remaining quantity.
	DecrementExclusive(ctx context.Context, productKey string, quantity int) (int, error)

	// GetVersioned reads the counter together with its version token.
	GetVersioned(ctx context.Context, productKey string) (domain.Stock, error)

	// DecrementVersioned applies the decrement only if the version still
	// matches, failing with domain.ErrConflictRetry otherwise.
	DecrementVersioned(ctx context.Context, stock domain.Stock, quantity int) (int, error)

	// SetStock seeds or resets a counter (admin and test use).
	SetStock(ctx context.Context, productKey string, quantity int) error
}
