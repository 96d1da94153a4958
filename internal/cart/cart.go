// Package cart builds the cart view-model. The backend owns the cart; every
// mutation here is forward-then-refetch, so the view always reflects the
// last successful write and nothing more.
package cart

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/FikFikk/luminastore/internal/backend"
)

// API is the slice of the backend client the cart service needs.
type API interface {
	Cart(ctx context.Context, token string) ([]backend.CartItem, error)
	AddCartItem(ctx context.Context, token string, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, token, itemID string, quantity int) error
	RemoveCartItem(ctx context.Context, token, itemID string) error
	ClearCart(ctx context.Context, token string) error
}

type Line struct {
	ItemID      string `json:"item_id"`
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Subtotal    int64  `json:"subtotal"`
	WeightGrams int    `json:"weight_grams"`
	InStock     bool   `json:"in_stock"`
}

type Summary struct {
	ItemCount        int   `json:"item_count"`
	TotalPrice       int64 `json:"total_price"`
	TotalWeightGrams int   `json:"total_weight_grams"`
}

type View struct {
	Lines   []Line  `json:"lines"`
	Summary Summary `json:"summary"`
}

type Service struct {
	api API
	sfg singleflight.Group // dedupes concurrent refetches per user
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// Get fetches the cart and projects it into the view-model. Concurrent
// calls for the same token share one backend round trip.
func (s *Service) Get(ctx context.Context, token string) (*View, error) {
	v, err, _ := s.sfg.Do(token, func() (interface{}, error) {
		items, errGet := s.api.Cart(ctx, token)
		if errGet != nil {
			return nil, fmt.Errorf("fetch cart: %w", errGet)
		}
		return project(items), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

func (s *Service) AddItem(ctx context.Context, token string, productID int64, quantity int) (*View, error) {
	if err := s.api.AddCartItem(ctx, token, productID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, token)
}

func (s *Service) UpdateQuantity(ctx context.Context, token, itemID string, quantity int) (*View, error) {
	if err := s.api.UpdateCartItem(ctx, token, itemID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, token)
}

func (s *Service) RemoveItem(ctx context.Context, token, itemID string) (*View, error) {
	if err := s.api.RemoveCartItem(ctx, token, itemID); err != nil {
		return nil, err
	}
	return s.Get(ctx, token)
}

func (s *Service) Clear(ctx context.Context, token string) (*View, error) {
	if err := s.api.ClearCart(ctx, token); err != nil {
		return nil, err
	}
	return s.Get(ctx, token)
}

func project(items []backend.CartItem) *View {
	view := &View{Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		line := Line{
			ItemID:      item.ID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.UnitPrice * int64(item.Quantity),
			WeightGrams: item.WeightGrams * item.Quantity,
			InStock:     item.Stock >= item.Quantity,
		}
		view.Lines = append(view.Lines, line)
		view.Summary.ItemCount += item.Quantity
		view.Summary.TotalPrice += line.Subtotal
		view.Summary.TotalWeightGrams += line.WeightGrams
	}
	return view
}
