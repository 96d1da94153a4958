package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

// MethodCache stores the catalog keyed by amount bucket. Fees change rarely
// within a tier, so the TTL is long relative to the shipping quote cache.
type MethodCache interface {
	Get(ctx context.Context, bucket int64) ([]Method, error)
	Set(ctx context.Context, bucket int64, methods []Method) error
}

type RedisMethodCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMethodCache(client *redis.Client, ttl time.Duration) *RedisMethodCache {
	return &RedisMethodCache{client: client, ttl: ttl}
}

func (r *RedisMethodCache) Get(ctx context.Context, bucket int64) ([]Method, error) {
	data, err := r.client.Get(ctx, methodKey(bucket)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var methods []Method
	if err2 := json.Unmarshal(data, &methods); err2 != nil {
		return nil, fmt.Errorf("unmarshal methods failed: %w", err2)
	}
	return methods, nil
}

func (r *RedisMethodCache) Set(ctx context.Context, bucket int64, methods []Method) error {
	data, err := json.Marshal(methods)
	if err != nil {
		return fmt.Errorf("marshal methods failed: %w", err)
	}
	if err := r.client.Set(ctx, methodKey(bucket), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func methodKey(bucket int64) string {
	return fmt.Sprintf("payfee:%d", bucket)
}

// Service resolves the method catalog for a payable amount, bucketing the
// amount so near-identical totals share a gateway call.
type Service struct {
	client MethodClient
	cache  MethodCache
	bucket int64
	sfg    singleflight.Group
}

func NewService(client MethodClient, cache MethodCache, bucketSize int64) *Service {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	return &Service{client: client, cache: cache, bucket: bucketSize}
}

// Bucket rounds the amount up to the bucket size.
func (s *Service) Bucket(amount int64) int64 {
	if amount <= 0 {
		return s.bucket
	}
	return ((amount + s.bucket - 1) / s.bucket) * s.bucket
}

// Methods returns the grouped catalog for the amount, COD always included
// last. The gateway sees the bucketed amount, never the raw one.
func (s *Service) Methods(ctx context.Context, amount int64) ([]Method, error) {
	bucket := s.Bucket(amount)

	v, err, _ := s.sfg.Do(methodKey(bucket), func() (interface{}, error) {
		cached, errCache := s.cache.Get(ctx, bucket)
		if errCache == nil {
			return cached, nil
		}
		if !errors.Is(errCache, ErrCacheMiss) {
			log.Printf("method cache get error: %v", errCache)
		}

		methods, errFetch := s.client.Methods(ctx, bucket)
		if errFetch != nil {
			return nil, fmt.Errorf("fetch payment methods: %w", errFetch)
		}

		if errSet := s.cache.Set(ctx, bucket, methods); errSet != nil {
			log.Printf("method cache set error: %v", errSet)
		}
		return methods, nil
	})
	if err != nil {
		return nil, err
	}

	methods := v.([]Method)
	out := make([]Method, 0, len(methods)+1)
	out = append(out, methods...)
	out = append(out, CashOnDelivery())
	return out, nil
}

// Fee looks up a method's fee in the catalog for the amount. COD is always
// zero-fee.
func (s *Service) Fee(ctx context.Context, amount int64, code string) (int64, error) {
	if code == CODCode {
		return 0, nil
	}
	methods, err := s.Methods(ctx, amount)
	if err != nil {
		return 0, err
	}
	for _, m := range methods {
		if m.Code == code {
			return m.Fee, nil
		}
	}
	return 0, fmt.Errorf("payment method %q not offered for this amount", code)
}
