package port

import (
	"context"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

// OrderStore persists order records. It assigns no identifiers; callers
// bring their own.
type OrderStore interface {
	CreateOrder(ctx context.Context, order domain.Order) error
}
