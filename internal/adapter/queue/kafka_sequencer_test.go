package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

type reserveLedger struct {
	mu       sync.Mutex
	reserved map[string]bool
	reserves int
	releases int
}

func newReserveLedger() *reserveLedger {
	return &reserveLedger{reserved: make(map[string]bool)}
}

func (l *reserveLedger) Result(ctx context.Context, key string) (int, bool, error) {
	return 0, false, nil
}

func (l *reserveLedger) Record(ctx context.Context, key string, remaining int) error {
	return nil
}

func (l *reserveLedger) Reserve(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserves++
	if l.reserved[key] {
		return false, nil
	}
	l.reserved[key] = true
	return true, nil
}

func (l *reserveLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	delete(l.reserved, key)
	return nil
}

// A failed broker write must give the dedup key back, so retrying the same
// request reserves again instead of being discarded as a duplicate.
func TestKafkaSequencer_FailedWriteReleasesDedupKey(t *testing.T) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP("127.0.0.1:1"),
		Topic:        "stock-decrements",
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  1,
	}
	defer writer.Close()

	ledger := newReserveLedger()
	seq := NewKafkaSequencer(writer, ledger)
	msg := domain.NewMessage(domain.DecrementRequest{
		OrderID:    "order-1",
		ProductKey: "item-1",
		Quantity:   1,
	})

	if err := seq.Enqueue(context.Background(), msg); err == nil {
		t.Fatal("expected write failure against unreachable broker")
	}

	ledger.mu.Lock()
	stillReserved := ledger.reserved[msg.DeduplicationID]
	releases := ledger.releases
	ledger.mu.Unlock()
	if stillReserved {
		t.Error("dedup key must not stay reserved after a failed write")
	}
	if releases != 1 {
		t.Errorf("expected 1 release, got %d", releases)
	}

	// The retry is a fresh attempt, not a silently dropped duplicate.
	if err := seq.Enqueue(context.Background(), msg); err == nil {
		t.Fatal("expected write failure against unreachable broker")
	}

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if ledger.reserves != 2 {
		t.Errorf("expected retry to reserve again, got %d reserves", ledger.reserves)
	}
}
