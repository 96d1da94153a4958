package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// QuoteCache stores filtered quotes keyed by (destination, weight) for a
// short TTL so repeated recalculations don't hammer the rate provider.
type QuoteCache interface {
	Get(ctx context.Context, destinationID string, weightGrams int) ([]Courier, error)
	Set(ctx context.Context, destinationID string, weightGrams int, couriers []Courier) error
}

type RedisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisQuoteCache(client *redis.Client, ttl time.Duration) *RedisQuoteCache {
	return &RedisQuoteCache{client: client, ttl: ttl}
}

func (r *RedisQuoteCache) Get(ctx context.Context, destinationID string, weightGrams int) ([]Courier, error) {
	data, err := r.client.Get(ctx, quoteKey(destinationID, weightGrams)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var couriers []Courier
	if err2 := json.Unmarshal(data, &couriers); err2 != nil {
		return nil, fmt.Errorf("unmarshal quote failed: %w", err2)
	}
	return couriers, nil
}

func (r *RedisQuoteCache) Set(ctx context.Context, destinationID string, weightGrams int, couriers []Courier) error {
	data, err := json.Marshal(couriers)
	if err != nil {
		return fmt.Errorf("marshal quote failed: %w", err)
	}
	if err := r.client.Set(ctx, quoteKey(destinationID, weightGrams), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func quoteKey(destinationID string, weightGrams int) string {
	return fmt.Sprintf("shipquote:%s:%d", destinationID, weightGrams)
}
