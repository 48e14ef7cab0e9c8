package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/obs"
	"github.com/rl1809/stock-reserve/internal/port"
)

var ErrSequencerClosed = errors.New("sequencer closed")

const (
	defaultVisibility  = 3 * time.Second
	defaultDedupWindow = 24 * time.Hour
	defaultDeliverTTL  = 5 * time.Second
)

// MemorySequencer is an in-process, key-partitioned FIFO channel. Each
// partition is drained by one goroutine, so messages sharing a partition key
// are handled strictly in enqueue order while partitions run in parallel.
//
// Delivery is at least once: a message stays at the head of its partition
// until the handler acknowledges it, and an unacknowledged delivery becomes
// visible again after the visibility timeout.
type MemorySequencer struct {
	handler    port.MessageHandler
	visibility time.Duration
	window     time.Duration
	deliverTTL time.Duration

	mu         sync.Mutex
	partitions map[string]*partition
	dedup      map[string]time.Time
	closed     bool

	done chan struct{}
	wg   sync.WaitGroup
}

type partition struct {
	mu      sync.Mutex
	backlog []domain.Message
	notify  chan struct{}
}

type MemoryOption func(*MemorySequencer)

func WithVisibilityTimeout(d time.Duration) MemoryOption {
	return func(s *MemorySequencer) { s.visibility = d }
}

func WithDedupWindow(d time.Duration) MemoryOption {
	return func(s *MemorySequencer) { s.window = d }
}

func WithDeliveryTimeout(d time.Duration) MemoryOption {
	return func(s *MemorySequencer) { s.deliverTTL = d }
}

func NewMemorySequencer(handler port.MessageHandler, opts ...MemoryOption) *MemorySequencer {
	s := &MemorySequencer{
		handler:    handler,
		visibility: defaultVisibility,
		window:     defaultDedupWindow,
		deliverTTL: defaultDeliverTTL,
		partitions: make(map[string]*partition),
		dedup:      make(map[string]time.Time),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends to the tail of the message's partition. A message whose
// deduplication ID was already seen inside the window is discarded, not
// re-enqueued.
func (s *MemorySequencer) Enqueue(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSequencerClosed
	}

	now := time.Now()
	for key, seen := range s.dedup {
		if now.Sub(seen) > s.window {
			delete(s.dedup, key)
		}
	}
	if _, seen := s.dedup[msg.DeduplicationID]; seen {
		s.mu.Unlock()
		log.Debug().Str("dedup_id", msg.DeduplicationID).Msg("duplicate message discarded")
		return nil
	}
	s.dedup[msg.DeduplicationID] = now

	p := s.partitions[msg.PartitionKey]
	if p == nil {
		p = &partition{notify: make(chan struct{}, 1)}
		s.partitions[msg.PartitionKey] = p
		s.wg.Add(1)
		go s.runPartition(msg.PartitionKey, p)
	}
	// Push before releasing the intake lock: Close sets closed under the
	// same lock, so a message accepted here is in the backlog before any
	// worker can observe the shutdown.
	p.push(msg)
	s.mu.Unlock()

	obs.SequencerBacklog.Inc()
	return nil
}

// Close stops intake, drains the remaining backlog, and waits for the
// partition workers to finish.
func (s *MemorySequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

func (s *MemorySequencer) runPartition(key string, p *partition) {
	defer s.wg.Done()

	for {
		msg, ok := p.head()
		if !ok {
			select {
			case <-p.notify:
			case <-s.done:
				// After done closes no push can still be in flight, so an
				// empty recheck means this partition is drained.
				if _, ok := p.head(); !ok {
					return
				}
			}
			continue
		}

		err := s.deliver(msg)
		if err != nil && errors.Is(err, domain.ErrStoreUnavailable) {
			// Unacknowledged: the head stays put and becomes visible again
			// after the timeout, keeping its place in the partition order.
			select {
			case <-time.After(s.visibility):
				continue
			case <-s.done:
				log.Warn().Str("partition", key).Str("dedup_id", msg.DeduplicationID).
					Msg("dropping unacknowledged message on shutdown")
				return
			}
		}

		p.pop()
		obs.SequencerBacklog.Dec()
	}
}

func (s *MemorySequencer) deliver(msg domain.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.deliverTTL)
	defer cancel()
	return s.handler(ctx, msg)
}

func (p *partition) push(msg domain.Message) {
	p.mu.Lock()
	p.backlog = append(p.backlog, msg)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *partition) head() (domain.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.backlog) == 0 {
		return domain.Message{}, false
	}
	return p.backlog[0], true
}

func (p *partition) pop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.backlog) > 0 {
		p.backlog = p.backlog[1:]
	}
}
