package backend

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) Cart(ctx context.Context, token string) ([]CartItem, error) {
	var items []CartItem
	if err := c.do(ctx, http.MethodGet, "/cart", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddCartItem(ctx context.Context, token string, productID int64, quantity int) error {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	return c.do(ctx, http.MethodPost, "/cart/items", token, body, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, token, itemID string, quantity int) error {
	body := map[string]any{"quantity": quantity}
	return c.do(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(itemID), token, body, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, token, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), token, nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/cart", token, nil, nil)
}
