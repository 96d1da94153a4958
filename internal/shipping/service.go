package shipping

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"
)

// QuoteService answers "what does it cost to ship this weight to this
// destination" with a cache in front of the provider.
type QuoteService struct {
	client RateClient
	cache  QuoteCache
	sfg    singleflight.Group
}

func NewQuoteService(client RateClient, cache QuoteCache) *QuoteService {
	return &QuoteService{client: client, cache: cache}
}

func (s *QuoteService) Quote(ctx context.Context, destinationID string, weightGrams int) ([]Courier, error) {
	key := quoteKey(destinationID, weightGrams)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cached, errCache := s.cache.Get(ctx, destinationID, weightGrams)
		if errCache == nil {
			return cached, nil
		}
		if !errors.Is(errCache, ErrCacheMiss) {
			log.Printf("quote cache get error: %v", errCache)
		}

		couriers, errRates := s.client.Rates(ctx, destinationID, weightGrams)
		if errRates != nil {
			return nil, fmt.Errorf("fetch rates: %w", errRates)
		}

		filtered := filterCouriers(couriers)
		if errSet := s.cache.Set(ctx, destinationID, weightGrams, filtered); errSet != nil {
			log.Printf("quote cache set error: %v", errSet)
		}
		return filtered, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Courier), nil
}

func (s *QuoteService) SearchDestinations(ctx context.Context, query string, limit, offset int) ([]Destination, error) {
	return s.client.SearchDestinations(ctx, query, limit, offset)
}

// FindService locates a courier service in a quoted option set.
func FindService(couriers []Courier, courierCode, serviceCode string) (*Service, bool) {
	for _, courier := range couriers {
		if courier.Code != courierCode {
			continue
		}
		for _, svc := range courier.Services {
			if svc.Code == serviceCode {
				return &svc, true
			}
		}
	}
	return nil, false
}
