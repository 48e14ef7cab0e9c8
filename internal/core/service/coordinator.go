package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/obs"
	"github.com/rl1809/stock-reserve/internal/port"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 20 * time.Millisecond
	defaultMaxBackoff  = 200 * time.Millisecond
)

// StockCoordinator is the single entry point that turns a decrement request
// into a consistent mutation under one of three strategies. Strategies are
// selected per product; mixing them concurrently for one product is outside
// the contract.
type StockCoordinator struct {
	store  port.StockStore
	engine port.CacheCounter
	ledger port.Ledger

	breaker *gobreaker.CircuitBreaker

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// CoordinatorOption overrides retry bounds, mainly for tests.
type CoordinatorOption func(*StockCoordinator)

func WithRetryBounds(maxAttempts int, base, max time.Duration) CoordinatorOption {
	return func(c *StockCoordinator) {
		c.maxAttempts = maxAttempts
		c.baseBackoff = base
		c.maxBackoff = max
	}
}

func NewStockCoordinator(store port.StockStore, engine port.CacheCounter, ledger port.Ledger, opts ...CoordinatorOption) *StockCoordinator {
	c := &StockCoordinator{
		store:       store,
		engine:      engine,
		ledger:      ledger,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "stock-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Business rejections are healthy responses, not store faults.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrInsufficientStock) ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, domain.ErrConflictRetry)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).
				Msg("circuit breaker state changed")
		},
	})

	return c
}

// Reduce applies one stock decrement for an order. A request whose
// deduplication key was already processed resolves silently to the prior
// success without mutating again.
func (c *StockCoordinator) Reduce(ctx context.Context, orderID, productKey string, quantity int, strategy domain.Strategy) (int, error) {
	req := domain.DecrementRequest{
		OrderID:    orderID,
		ProductKey: productKey,
		Quantity:   quantity,
	}

	if remaining, ok := c.replayed(ctx, req); ok {
		obs.DecrementsTotal.WithLabelValues(string(strategy), "replayed").Inc()
		return remaining, nil
	}

	var (
		remaining int
		err       error
	)
	switch strategy {
	case domain.StrategyDirect:
		remaining, err = c.reduceDirect(ctx, req)
	case domain.StrategyOptimistic:
		remaining, err = c.reduceOptimistic(ctx, req)
	case domain.StrategyQueued:
		remaining, err = c.reduceAtomic(ctx, req)
	default:
		return 0, fmt.Errorf("unknown strategy %q", strategy)
	}

	obs.DecrementsTotal.WithLabelValues(string(strategy), outcome(err)).Inc()
	if err != nil {
		return 0, err
	}

	if recErr := c.ledger.Record(ctx, req.DeduplicationID(), remaining); recErr != nil {
		if strategy == domain.StrategyQueued {
			// Without the record a redelivery would decrement again. Put the
			// quantity back and fail transiently so the redelivered message
			// runs the whole decrement fresh.
			if restErr := c.engine.Restore(ctx, req.ProductKey, req.Quantity); restErr != nil {
				log.Error().Err(restErr).Str("product_key", req.ProductKey).
					Msg("failed to restore shadow counter")
			}
			return 0, fmt.Errorf("%w: record decrement: %v", domain.ErrStoreUnavailable, recErr)
		}
		// Synchronous strategies mint a fresh order per call, so a lost
		// record cannot cause a double decrement.
		log.Warn().Err(recErr).Str("dedup_id", req.DeduplicationID()).
			Msg("failed to record processed decrement")
	}

	log.Info().
		Str("order_id", req.OrderID).
		Str("product_key", req.ProductKey).
		Int("quantity", req.Quantity).
		Int("remaining", remaining).
		Str("strategy", string(strategy)).
		Msg("stock reduced")

	return remaining, nil
}

// HandleMessage is the consumer side of the queued strategy. The sequencer
// acknowledges unless the returned error is transient.
func (c *StockCoordinator) HandleMessage(ctx context.Context, msg domain.Message) error {
	req := msg.Request
	_, err := c.Reduce(ctx, req.OrderID, req.ProductKey, req.Quantity, domain.StrategyQueued)
	if err != nil {
		log.Error().Err(err).
			Str("order_id", req.OrderID).
			Str("product_key", req.ProductKey).
			Msg("queued decrement failed")
	}
	return err
}

func (c *StockCoordinator) replayed(ctx context.Context, req domain.DecrementRequest) (int, bool) {
	remaining, ok, err := c.ledger.Result(ctx, req.DeduplicationID())
	if err != nil {
		log.Warn().Err(err).Str("dedup_id", req.DeduplicationID()).Msg("ledger lookup failed")
		return 0, false
	}
	return remaining, ok
}

func (c *StockCoordinator) reduceDirect(ctx context.Context, req domain.DecrementRequest) (int, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.store.DecrementExclusive(ctx, req.ProductKey, req.Quantity)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrNotFound):
			return 0, err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return 0, domain.ErrStoreUnavailable
		default:
			return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return result.(int), nil
}

func (c *StockCoordinator) reduceOptimistic(ctx context.Context, req domain.DecrementRequest) (int, error) {
	backoff := c.baseBackoff

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		stock, err := c.store.GetVersioned(ctx, req.ProductKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}

		if stock.Quantity < req.Quantity {
			return 0, domain.ErrInsufficientStock
		}

		remaining, err := c.store.DecrementVersioned(ctx, stock, req.Quantity)
		if err == nil {
			return remaining, nil
		}
		if !errors.Is(err, domain.ErrConflictRetry) {
			return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}

		obs.OptimisticRetries.Inc()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	return 0, domain.ErrExhausted
}

func (c *StockCoordinator) reduceAtomic(ctx context.Context, req domain.DecrementRequest) (int, error) {
	loader := func(ctx context.Context) (int, error) {
		return c.store.Get(ctx, req.ProductKey)
	}

	if err := c.engine.EnsurePopulated(ctx, req.ProductKey, loader); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	remaining, err := c.engine.DecrementAtomic(ctx, req.ProductKey, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return remaining, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
