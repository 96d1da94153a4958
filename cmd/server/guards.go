package main

import (
	"context"

	"github.com/FikFikk/luminastore/internal/payment"
	"github.com/FikFikk/luminastore/internal/shipping"
)

type destinationSearcher interface {
	SearchDestinations(ctx context.Context, query string, limit, offset int) ([]shipping.Destination, error)
}

// unavailableShipping stands in when the rate provider credentials are not
// configured: the affected routes answer with the config error instead of
// the whole binary refusing to start.
type unavailableShipping struct {
	err error
}

func (u unavailableShipping) Quote(context.Context, string, int) ([]shipping.Courier, error) {
	return nil, u.err
}

func (u unavailableShipping) SearchDestinations(context.Context, string, int, int) ([]shipping.Destination, error) {
	return nil, u.err
}

type unavailablePayment struct {
	err error
}

func (u unavailablePayment) Methods(context.Context, int64) ([]payment.Method, error) {
	return nil, u.err
}

func (u unavailablePayment) Fee(context.Context, int64, string) (int64, error) {
	return 0, u.err
}
