package port

import (
	"context"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

// MessageHandler processes one delivered message. Returning an error the
// consumer considers transient leaves the message unacknowledged, so it
// becomes visible again; any other outcome acknowledges it.
type MessageHandler func(ctx context.Context, msg domain.Message) error

// Sequencer delivers messages sharing a partition key strictly in enqueue
// order, at least once. Enqueue is idempotent within a bounded window: a
// message whose deduplication ID was recently seen is discarded.
type Sequencer interface {
	Enqueue(ctx context.Context, msg domain.Message) error
}
