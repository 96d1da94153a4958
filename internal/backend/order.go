package backend

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) CreateOrder(ctx context.Context, token string, req OrderRequest) (*OrderResult, error) {
	var result OrderResult
	if err := c.do(ctx, http.MethodPost, "/orders", token, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Orders(ctx context.Context, token string) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders", token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, token, id string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/cancel", token, nil, nil)
}
