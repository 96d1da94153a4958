// Package backend is the JSON client for the owning REST API. All business
// rules and durable data live behind it; this side only shapes requests
// (API key, bearer token, timeout) and classifies failures.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FikFikk/luminastore/internal/apperr"
)

var errUpstream5xx = errors.New("upstream returned 5xx")

type reply struct {
	status      int
	contentType string
	retryAfter  string
	body        []byte
}

type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	breaker *gobreaker.CircuitBreaker[*reply]
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:    "backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		breaker: gobreaker.NewCircuitBreaker[*reply](settings),
	}
}

// do performs one backend call. Network errors and 5xx count against the
// circuit breaker; 4xx responses are normal traffic and do not.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rep, err := c.breaker.Execute(func() (*reply, error) {
		resp, errDo := c.hc.Do(req)
		if errDo != nil {
			return nil, errDo
		}
		defer resp.Body.Close()

		body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if errRead != nil {
			return nil, errRead
		}

		r := &reply{
			status:      resp.StatusCode,
			contentType: resp.Header.Get("Content-Type"),
			retryAfter:  resp.Header.Get("Retry-After"),
			body:        body,
		}
		if resp.StatusCode >= 500 {
			return r, errUpstream5xx
		}
		return r, nil
	})
	if err != nil && !errors.Is(err, errUpstream5xx) {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperr.Upstream("cannot reach the server right now, please try again later", err)
		}
		return classifyTransport(ctx, err)
	}

	return decodeReply(rep, out)
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout(err)
	}
	return apperr.Upstream("cannot reach the server", err)
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeReply(rep *reply, out any) error {
	if rep.status >= 500 {
		return apperr.Upstream("the server is under maintenance, please try again later", errUpstream5xx)
	}

	if !strings.Contains(rep.contentType, "application/json") {
		return apperr.Parse(fmt.Errorf("unexpected content type %q", rep.contentType))
	}

	var env envelope
	if err := json.Unmarshal(rep.body, &env); err != nil {
		return apperr.Parse(err)
	}

	switch {
	case rep.status == http.StatusUnauthorized:
		return apperr.Session("")
	case rep.status == http.StatusTooManyRequests:
		msg := "too many requests, please wait a moment and try again"
		if rep.retryAfter != "" {
			msg = fmt.Sprintf("too many requests, please retry after %s seconds", rep.retryAfter)
		}
		return apperr.RateLimited(msg)
	case rep.status >= 400:
		return apperr.UpstreamValidation(localize(env.Message))
	}

	if out == nil {
		return nil
	}

	raw := env.Data
	if len(raw) == 0 {
		// Some endpoints respond with a bare object instead of the
		// data envelope.
		raw = rep.body
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Parse(err)
	}
	return nil
}

// Known backend validation messages remapped to friendlier wording. The
// backend message passes through untouched when unrecognized.
var localized = map[string]string{
	"EMAIL_ALREADY_REGISTERED": "that email address is already registered",
	"INVALID_CREDENTIALS":      "email or password is incorrect",
	"INSUFFICIENT_STOCK":       "one of the items in your cart is out of stock",
	"CART_ITEM_NOT_FOUND":      "that item is no longer in your cart",
}

func localize(message string) string {
	if message == "" {
		return "the request was rejected, please check your input"
	}
	if friendly, ok := localized[message]; ok {
		return friendly
	}
	return message
}
