// Package coinbase adapts the exchange's REST and websocket APIs to the
// application ports. Request signing is out of scope here; the client talks
// to the sandbox by default.
package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

const (
	baseURLProduction = "https://api.exchange.coinbase.com"
	baseURLSandbox    = "https://api-public.sandbox.exchange.coinbase.com"
)

// Client implements ports.ExchangeClient against the Coinbase Exchange REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Coinbase client adapter.
type Config struct {
	UseSandbox bool
	BaseURL    string       // optional override of the API endpoint
	HTTPClient *http.Client // optional; defaults to a 15s-timeout client
	Logger     ports.Logger
}

// New creates a new Coinbase client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Coinbase client")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := baseURLProduction
	if cfg.UseSandbox {
		baseURL = baseURLSandbox
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	cfg.Logger.Info(context.Background(), "Coinbase client configured", map[string]interface{}{
		"baseURL": baseURL,
		"sandbox": cfg.UseSandbox,
	})
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}, nil
}

// handleError translates transport and HTTP failures into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, statusCode int, operation string) error {
	fields := map[string]interface{}{"operation": operation}
	if err != nil {
		fields["originalError"] = err.Error()
	}
	if statusCode != 0 {
		fields["statusCode"] = statusCode
	}

	var mappedErr error
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case err != nil && errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case err != nil:
		mappedErr = ports.ErrConnectionFailed
	case statusCode == http.StatusTooManyRequests:
		mappedErr = ports.ErrRateLimited
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		mappedErr = ports.ErrAuthenticationFailed
	case statusCode == http.StatusNotFound:
		mappedErr = ports.ErrOrderNotFound
	case statusCode == http.StatusBadRequest:
		mappedErr = ports.ErrInvalidRequest
	case statusCode >= 500:
		mappedErr = ports.ErrExchangeUnavailable
	default:
		mappedErr = ports.ErrUnknown
	}

	finalErr := fmt.Errorf("%s failed: %w", operation, mappedErr)
	if err != nil {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}
	c.logger.Error(ctx, finalErr, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// HistoricRates fetches closed candles for a product. The API returns fixed
// tuples (unixTime, low, high, open, close, volume), most recent first; they
// are mapped positionally and reversed to oldest-first order.
func (c *Client) HistoricRates(ctx context.Context, productID string, granularity time.Duration) ([]domain.Candle, error) {
	op := "HistoricRates"
	url := fmt.Sprintf("%s/products/%s/candles?granularity=%d", c.baseURL, productID, int(granularity.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(ctx, nil, resp.StatusCode, op)
	}

	var tuples [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&tuples); err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("decoding rates: %w", err), 0, op)
	}

	candles := make([]domain.Candle, 0, len(tuples))
	for i := len(tuples) - 1; i >= 0; i-- {
		t := tuples[i]
		if len(t) < 6 {
			return nil, c.handleError(ctx, fmt.Errorf("rate tuple has %d fields, want 6", len(t)), 0, op)
		}
		candles = append(candles, domain.Candle{
			Time:        time.Unix(int64(t[0]), 0).UTC(),
			Granularity: granularity,
			ProductID:   productID,
			Low:         t[1],
			High:        t[2],
			Open:        t[3],
			Close:       t[4],
			Volume:      t[5],
		})
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"product": productID, "candles": len(candles)})
	return candles, nil
}

type orderRequest struct {
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	ProductID   string `json:"product_id"`
	PostOnly    bool   `json:"post_only"`
	ClientOrder string `json:"client_oid,omitempty"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	ProductID string    `json:"product_id"`
	Side      string    `json:"side"`
	Status    string    `json:"status"`
	Settled   bool      `json:"settled"`
	CreatedAt time.Time `json:"created_at"`
}

// PlaceLimitOrder submits one post-only limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, spec domain.OrderSpec, clientOrderID string) (*ports.OrderRef, error) {
	op := "PlaceLimitOrder"
	body, err := json.Marshal(orderRequest{
		Side:        string(spec.Side),
		Price:       spec.Price.String(),
		Size:        spec.Size.String(),
		ProductID:   spec.ProductID,
		PostOnly:    spec.PostOnly,
		ClientOrder: clientOrderID,
	})
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(ctx, nil, resp.StatusCode, op)
	}

	var or orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("decoding order response: %w", err), 0, op)
	}

	ref := &ports.OrderRef{
		ID:            or.ID,
		ClientOrderID: clientOrderID,
		ProductID:     or.ProductID,
		Side:          or.Side,
		Price:         or.Price,
		Size:          or.Size,
		Status:        or.Status,
		CreatedAt:     or.CreatedAt,
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"orderID": ref.ID,
		"side":    ref.Side,
		"price":   ref.Price,
		"size":    ref.Size,
	})
	return ref, nil
}

// GetOrder queries an order's current status by exchange id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*ports.OrderStatus, error) {
	op := "GetOrder"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleError(ctx, err, 0, op)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(ctx, nil, resp.StatusCode, op)
	}

	var or orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("decoding order status: %w", err), 0, op)
	}
	return &ports.OrderStatus{ID: or.ID, Status: or.Status, Settled: or.Settled}, nil
}

// parseFloat converts the API's string numerics, tolerating empty fields.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
