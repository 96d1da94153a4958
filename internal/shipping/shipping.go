// Package shipping talks to the third-party rate provider: destination
// search for the address form and weight-based cost quotes for checkout.
package shipping

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FikFikk/luminastore/internal/backend"
)

type Destination struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}

type Service struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
	ETD  string `json:"etd"`
}

type Courier struct {
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Services []Service `json:"services"`
}

// RateClient is what the quote service needs from the provider.
type RateClient interface {
	SearchDestinations(ctx context.Context, query string, limit, offset int) ([]Destination, error)
	Rates(ctx context.Context, destinationID string, weightGrams int) ([]Courier, error)
}

// HTTPRateClient calls the rate provider with its static API key.
type HTTPRateClient struct {
	hc      *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPRateClient(baseURL, apiKey string, timeout time.Duration) *HTTPRateClient {
	return &HTTPRateClient{
		hc:      &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *HTTPRateClient) SearchDestinations(ctx context.Context, query string, limit, offset int) ([]Destination, error) {
	values := url.Values{}
	values.Set("search", query)
	values.Set("limit", strconv.Itoa(limit))
	values.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/destination/search?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build destination search request: %w", err)
	}
	req.Header.Set("key", c.apiKey)

	var destinations []Destination
	if err := backend.Fetch(c.hc, req, &destinations); err != nil {
		return nil, err
	}
	return destinations, nil
}

func (c *HTTPRateClient) Rates(ctx context.Context, destinationID string, weightGrams int) ([]Courier, error) {
	values := url.Values{}
	values.Set("destination_id", destinationID)
	values.Set("weight", strconv.Itoa(weightGrams))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rates?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("key", c.apiKey)

	var couriers []Courier
	if err := backend.Fetch(c.hc, req, &couriers); err != nil {
		return nil, err
	}
	return couriers, nil
}

// filterCouriers drops services with non-positive cost and couriers left
// with no services.
func filterCouriers(couriers []Courier) []Courier {
	out := make([]Courier, 0, len(couriers))
	for _, courier := range couriers {
		kept := make([]Service, 0, len(courier.Services))
		for _, svc := range courier.Services {
			if svc.Cost > 0 {
				kept = append(kept, svc)
			}
		}
		if len(kept) == 0 {
			continue
		}
		courier.Services = kept
		out = append(out, courier)
	}
	return out
}
