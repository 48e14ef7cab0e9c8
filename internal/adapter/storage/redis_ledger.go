package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	processedKeyPrefix = "processed:"
	dedupKeyPrefix     = "dedup:"

	// ledgerTTL bounds the idempotency window. It is far above any plausible
	// redelivery delay, which keeps the ledger from growing without bound.
	ledgerTTL = 24 * time.Hour
)

// RedisLedger records processed decrements and enqueue-side dedup marks.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Result(ctx context.Context, key string) (int, bool, error) {
	remaining, err := l.client.Get(ctx, processedKeyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read ledger: %w", err)
	}
	return remaining, true, nil
}

func (l *RedisLedger) Record(ctx context.Context, key string, remaining int) error {
	return l.client.Set(ctx, processedKeyPrefix+key, remaining, ledgerTTL).Err()
}

func (l *RedisLedger) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, dedupKeyPrefix+key, 1, ledgerTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve dedup key: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, dedupKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release dedup key: %w", err)
	}
	return nil
}
