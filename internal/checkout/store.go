package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoSelection = errors.New("no checkout selection stored")

// SelectionStore keeps the cart-item ids the shopper picked for checkout
// between the cart page and the checkout flow. It is transient by design:
// TTL-bound, cleared on successful order submission.
type SelectionStore interface {
	Save(ctx context.Context, token string, itemIDs []string) error
	Load(ctx context.Context, token string) ([]string, error)
	Clear(ctx context.Context, token string) error
}

type RedisSelectionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSelectionStore(client *redis.Client, ttl time.Duration) *RedisSelectionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSelectionStore{client: client, ttl: ttl}
}

func (r *RedisSelectionStore) Save(ctx context.Context, token string, itemIDs []string) error {
	data, err := json.Marshal(itemIDs)
	if err != nil {
		return fmt.Errorf("marshal selection failed: %w", err)
	}
	if err := r.client.Set(ctx, selectionKey(token), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSelectionStore) Load(ctx context.Context, token string) ([]string, error) {
	data, err := r.client.Get(ctx, selectionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSelection
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var itemIDs []string
	if err2 := json.Unmarshal(data, &itemIDs); err2 != nil {
		return nil, fmt.Errorf("unmarshal selection failed: %w", err2)
	}
	if len(itemIDs) == 0 {
		return nil, ErrNoSelection
	}
	return itemIDs, nil
}

func (r *RedisSelectionStore) Clear(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, selectionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// The raw bearer token never lands in redis keys.
func selectionKey(token string) string {
	return "checkout:sel:" + userRef(token)
}

// userRef derives the pseudonymous user identifier from the token. It also
// keys the order-placed event payload.
func userRef(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
