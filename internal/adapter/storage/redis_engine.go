package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/stock-reserve/internal/core/domain"
)

const stockKeyPrefix = "stock:"

// Script return codes below zero are failure sentinels; any non-negative
// value is the authoritative post-decrement quantity.
const (
	resultInsufficient = -1
	resultMissingKey   = -2
)

var decrementScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -2
end

current = tonumber(current)
if quantity > current then
	return -1
end

return redis.call('DECRBY', key, quantity)
`)

// RedisEngine runs check-and-decrement as one Lua script against a shadow
// counter, populated lazily from the durable store.
type RedisEngine struct {
	client *redis.Client
	group  singleflight.Group
}

func NewRedisEngine(client *redis.Client) *RedisEngine {
	return &RedisEngine{client: client}
}

func (e *RedisEngine) EnsurePopulated(ctx context.Context, productKey string, loader func(context.Context) (int, error)) error {
	key := stockKeyPrefix + productKey

	exists, err := e.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("probe shadow counter: %w", err)
	}
	if exists == 1 {
		return nil
	}

	// singleflight collapses concurrent loader calls for the same key into
	// one durable-store read; SETNX makes the first write win so late
	// populators observe it instead of overwriting.
	_, err, _ = e.group.Do(productKey, func() (interface{}, error) {
		quantity, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.client.SetNX(ctx, key, quantity, 0).Err(); err != nil {
			return nil, fmt.Errorf("populate shadow counter: %w", err)
		}
		return quantity, nil
	})
	return err
}

func (e *RedisEngine) DecrementAtomic(ctx context.Context, productKey string, quantity int) (int, error) {
	key := stockKeyPrefix + productKey

	remaining, err := decrementScript.Run(ctx, e.client, []string{key}, quantity).Int()
	if err != nil {
		return 0, fmt.Errorf("decrement script: %w", err)
	}

	switch {
	case remaining == resultMissingKey:
		return 0, domain.ErrNotFound
	case remaining <= resultInsufficient:
		return 0, domain.ErrInsufficientStock
	}

	return remaining, nil
}

func (e *RedisEngine) Restore(ctx context.Context, productKey string, quantity int) error {
	return e.client.IncrBy(ctx, stockKeyPrefix+productKey, int64(quantity)).Err()
}
