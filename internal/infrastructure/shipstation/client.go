package shipstation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from ShipStation (10MB)
const maxResponseSize = 10 * 1024 * 1024

// createOrdersPath creates or updates a list of orders in one call
const createOrdersPath = "/orders/createorders"

// Client implements fulfillment.Gateway over the ShipStation REST API
type Client struct {
	config       *Config
	httpClient   *http.Client
	limiter      *rate.Limiter
	baseURL      *url.URL
	allowedHosts map[string]struct{}
}

// NewClient creates a new ShipStation client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalidBaseURL, err)
	}

	allowed := make(map[string]struct{}, len(config.AllowedHosts)+1)
	allowed[strings.ToLower(base.Host)] = struct{}{}
	for _, host := range config.AllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			allowed[host] = struct{}{}
		}
	}

	interval := time.Minute / time.Duration(config.RateLimitPerMinute)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:      rate.NewLimiter(rate.Every(interval), config.RateLimitBurst),
		baseURL:      base,
		allowedHosts: allowed,
	}, nil
}

// compile-time check
var _ fulfillment.Gateway = (*Client)(nil)

// ---------------------------------------------------------------------------
// Gateway Operations
// ---------------------------------------------------------------------------

// FetchResource retrieves the orders referenced by a webhook resource URL
func (c *Client) FetchResource(ctx context.Context, resourceURL string) (*fulfillment.ResourceBatch, error) {
	target, err := c.checkResourceURL(resourceURL)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	var resp ListOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrGatewayInvalidResponse, err)
	}

	batch := &fulfillment.ResourceBatch{
		Orders: make([]*fulfillment.Order, 0, len(resp.Orders)),
		Total:  resp.Total,
		Page:   resp.Page,
		Pages:  resp.Pages,
	}
	for i, raw := range resp.Orders {
		if isNullJSON(raw) {
			continue
		}
		order, err := decodeOrder(raw)
		if err != nil {
			batch.Rejected = append(batch.Rejected, fulfillment.RejectedOrder{
				Position:    i,
				OrderNumber: peekOrderNumber(raw),
				Err:         err,
			})
			continue
		}
		batch.Orders = append(batch.Orders, order)
	}

	return batch, nil
}

// SubmitOrders creates or updates the given records in one createorders call
func (c *Client) SubmitOrders(ctx context.Context, records []*fulfillment.Order) (*fulfillment.SubmitResult, error) {
	if len(records) == 0 {
		return &fulfillment.SubmitResult{Results: make([]fulfillment.SubmitOutcome, 0)}, nil
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("shipstation: failed to encode orders: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.baseURL.String()+createOrdersPath, payload)
	if err != nil {
		return nil, err
	}

	var resp CreateOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrGatewayInvalidResponse, err)
	}

	return resp.toDomain(), nil
}

// ---------------------------------------------------------------------------
// Helper Methods
// ---------------------------------------------------------------------------

// checkResourceURL only lets requests (and credentials) go to known hosts
func (c *Client) checkResourceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", fulfillment.ErrResourceNotAllowed, raw)
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && c.baseURL.Scheme == "http") {
		return nil, fmt.Errorf("%w: scheme %s", fulfillment.ErrResourceNotAllowed, u.Scheme)
	}
	if _, ok := c.allowedHosts[strings.ToLower(u.Host)]; !ok {
		return nil, fmt.Errorf("%w: host %s", fulfillment.ErrResourceNotAllowed, u.Host)
	}
	return u, nil
}

// doRequest performs an authenticated request and returns the response body
func (c *Client) doRequest(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrGatewayRateLimited, err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("shipstation: failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.config.AuthHeader())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shipstation: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp, body)
	}

	return body, nil
}

// decodeOrder decodes one entry of a resource response. Every failure wraps
// fulfillment.ErrMalformedOrder.
func decodeOrder(raw json.RawMessage) (*fulfillment.Order, error) {
	var order fulfillment.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		if errors.Is(err, fulfillment.ErrMalformedOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", fulfillment.ErrMalformedOrder, err)
	}
	return &order, nil
}

// peekOrderNumber reads orderNumber from an entry that failed to decode
func peekOrderNumber(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	number, ok := fields["orderNumber"]
	if !ok || isNullJSON(number) {
		return ""
	}
	var s string
	if json.Unmarshal(number, &s) == nil {
		return s
	}
	return string(number)
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// statusError maps a failed HTTP response to a domain error
func statusError(resp *http.Response, body []byte) error {
	detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
	var apiErr ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		detail = fmt.Sprintf("%s: %s", detail, apiErr.Message)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", fulfillment.ErrGatewayAuthFailed, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		if reset := resp.Header.Get("X-Rate-Limit-Reset"); reset != "" {
			detail = fmt.Sprintf("%s (reset in %ss)", detail, reset)
		}
		return fmt.Errorf("%w: %s", fulfillment.ErrGatewayRateLimited, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", fulfillment.ErrGatewayUnavailable, detail)
	default:
		return fmt.Errorf("%w: %s", fulfillment.ErrGatewayRequestFailed, detail)
	}
}
