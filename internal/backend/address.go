package backend

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) Addresses(ctx context.Context, token string) ([]Address, error) {
	var addresses []Address
	if err := c.do(ctx, http.MethodGet, "/addresses", token, nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (c *Client) CreateAddress(ctx context.Context, token string, address Address) (*Address, error) {
	var created Address
	if err := c.do(ctx, http.MethodPost, "/addresses", token, address, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateAddress(ctx context.Context, token string, address Address) (*Address, error) {
	var updated Address
	path := "/addresses/" + url.PathEscape(address.ID)
	if err := c.do(ctx, http.MethodPut, path, token, address, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteAddress(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/addresses/"+url.PathEscape(id), token, nil, nil)
}
