package shipping

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCouriers() []Courier {
	return []Courier{
		{Code: "jne", Name: "JNE", Services: []Service{
			{Code: "REG", Name: "Regular", Cost: 20000, ETD: "2-3"},
			{Code: "YES", Name: "Express", Cost: 35000, ETD: "1"},
		}},
		{Code: "pos", Name: "POS Indonesia", Services: []Service{
			{Code: "KILAT", Name: "Kilat", Cost: 18000, ETD: "2-4"},
		}},
	}
}

func TestFilterCouriers_DropsNonPositiveCost(t *testing.T) {
	couriers := []Courier{
		{Code: "jne", Services: []Service{
			{Code: "REG", Cost: 20000},
			{Code: "BROKEN", Cost: 0},
			{Code: "NEGATIVE", Cost: -5},
		}},
		{Code: "empty", Services: []Service{
			{Code: "ZERO", Cost: 0},
		}},
	}

	filtered := filterCouriers(couriers)
	require.Len(t, filtered, 1)
	assert.Equal(t, "jne", filtered[0].Code)
	require.Len(t, filtered[0].Services, 1)
	assert.Equal(t, "REG", filtered[0].Services[0].Code)
}

func setupCache(t *testing.T, ttl time.Duration) (*RedisQuoteCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQuoteCache(client, ttl), mr
}

func TestRedisQuoteCache_RoundTrip(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "dest-1", 1200)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "dest-1", 1200, sampleCouriers()))

	got, err := cache.Get(ctx, "dest-1", 1200)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(20000), got[0].Services[0].Cost)
}

func TestRedisQuoteCache_TTLExpiry(t *testing.T) {
	cache, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "dest-1", 500, sampleCouriers()))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "dest-1", 500)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

type mockRateClient struct {
	m        sync.Mutex
	couriers []Courier
	err      error
	calls    int
}

func (m *mockRateClient) SearchDestinations(context.Context, string, int, int) ([]Destination, error) {
	return nil, nil
}

func (m *mockRateClient) Rates(context.Context, string, int) ([]Courier, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.couriers, nil
}

func TestQuote_CachesProviderResponse(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	client := &mockRateClient{couriers: sampleCouriers()}
	svc := NewQuoteService(client, cache)
	ctx := context.Background()

	first, err := svc.Quote(ctx, "dest-1", 1200)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.Quote(ctx, "dest-1", 1200)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls, "second quote within TTL must not hit the provider")

	// Different weight is a different cache key.
	_, err = svc.Quote(ctx, "dest-1", 900)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestQuote_FiltersBeforeCaching(t *testing.T) {
	cache, _ := setupCache(t, time.Minute)
	client := &mockRateClient{couriers: []Courier{
		{Code: "jne", Services: []Service{{Code: "REG", Cost: 20000}, {Code: "FREE", Cost: 0}}},
	}}
	svc := NewQuoteService(client, cache)

	got, err := svc.Quote(context.Background(), "dest-1", 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Services, 1)

	cached, err := cache.Get(context.Background(), "dest-1", 100)
	require.NoError(t, err)
	assert.Len(t, cached[0].Services, 1)
}

func TestFindService(t *testing.T) {
	couriers := sampleCouriers()

	svc, ok := FindService(couriers, "jne", "YES")
	require.True(t, ok)
	assert.Equal(t, int64(35000), svc.Cost)

	_, ok = FindService(couriers, "jne", "NOPE")
	assert.False(t, ok)

	_, ok = FindService(couriers, "tiki", "REG")
	assert.False(t, ok)
}
