package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/port"
)

// OrderWorkflow records the order, then hands the decrement to the
// coordinator (synchronous strategies) or the sequencer (queued strategy).
type OrderWorkflow struct {
	orders      port.OrderStore
	coordinator *StockCoordinator
	sequencer   port.Sequencer
}

// PlacedOrder is the caller-visible outcome. Remaining is meaningful only
// when Queued is false; a queued decrement completes downstream.
type PlacedOrder struct {
	OrderID   string
	Remaining int
	Queued    bool
}

func NewOrderWorkflow(orders port.OrderStore, coordinator *StockCoordinator, sequencer port.Sequencer) *OrderWorkflow {
	return &OrderWorkflow{
		orders:      orders,
		coordinator: coordinator,
		sequencer:   sequencer,
	}
}

func (w *OrderWorkflow) PlaceOrder(ctx context.Context, memberID, productKey string, quantity int, strategy domain.Strategy) (PlacedOrder, error) {
	if quantity < 1 {
		return PlacedOrder{}, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	now := time.Now()
	order := domain.Order{
		ID:         uuid.New().String(),
		MemberID:   memberID,
		ProductKey: productKey,
		Quantity:   quantity,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := w.orders.CreateOrder(ctx, order); err != nil {
		return PlacedOrder{}, fmt.Errorf("create order: %w", err)
	}

	req := domain.DecrementRequest{
		OrderID:    order.ID,
		ProductKey: productKey,
		Quantity:   quantity,
	}

	if strategy == domain.StrategyQueued {
		if err := w.sequencer.Enqueue(ctx, domain.NewMessage(req)); err != nil {
			return PlacedOrder{OrderID: order.ID}, fmt.Errorf("enqueue decrement: %w", err)
		}
		return PlacedOrder{OrderID: order.ID, Queued: true}, nil
	}

	remaining, err := w.coordinator.Reduce(ctx, order.ID, productKey, quantity, strategy)
	if err != nil {
		// The order record stands; reconciling unreserved stock is an
		// external concern.
		return PlacedOrder{OrderID: order.ID}, err
	}

	return PlacedOrder{OrderID: order.ID, Remaining: remaining}, nil
}
