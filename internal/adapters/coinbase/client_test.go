package coinbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

type noopLogger struct{}

func (l *noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (l *noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL, Logger: &noopLogger{}})
	require.NoError(t, err)
	return client
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHistoricRates(t *testing.T) {
	// Tuples arrive most recent first: (unixTime, low, high, open, close, volume).
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/candles", r.URL.Path)
		assert.Equal(t, "300", r.URL.Query().Get("granularity"))
		_ = json.NewEncoder(w).Encode([][]float64{
			{1709287500, 99, 105, 100, 104, 7.5},
			{1709287200, 95, 101, 96, 100, 3.25},
		})
	})

	candles, err := client.HistoricRates(context.Background(), "BTC-USD", 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// Oldest first after the reversal.
	first := candles[0]
	assert.Equal(t, time.Unix(1709287200, 0).UTC(), first.Time)
	assert.Equal(t, 95.0, first.Low)
	assert.Equal(t, 101.0, first.High)
	assert.Equal(t, 96.0, first.Open)
	assert.Equal(t, 100.0, first.Close)
	assert.Equal(t, 3.25, first.Volume)
	assert.Equal(t, "BTC-USD", first.ProductID)
	assert.Equal(t, 5*time.Minute, first.Granularity)

	assert.True(t, candles[1].Time.After(first.Time))
}

func TestHistoricRates_ShortTuple(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float64{{1709287200, 95}})
	})

	_, err := client.HistoricRates(context.Background(), "BTC-USD", 5*time.Minute)
	assert.Error(t, err)
}

func TestHistoricRates_ErrorMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusTooManyRequests, ports.ErrRateLimited},
		{http.StatusUnauthorized, ports.ErrAuthenticationFailed},
		{http.StatusNotFound, ports.ErrOrderNotFound},
		{http.StatusBadRequest, ports.ErrInvalidRequest},
		{http.StatusInternalServerError, ports.ErrExchangeUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.HistoricRates(context.Background(), "BTC-USD", 5*time.Minute)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlaceLimitOrder(t *testing.T) {
	var received orderRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(orderResponse{
			ID:        "abc-123",
			Price:     received.Price,
			Size:      received.Size,
			ProductID: received.ProductID,
			Side:      received.Side,
			Status:    "pending",
			CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		})
	})

	spec := domain.OrderSpec{
		Side:      domain.Buy,
		ProductID: "BTC-USD",
		Price:     decimal.RequireFromString("100.50"),
		Size:      decimal.RequireFromString("0.25"),
		PostOnly:  true,
	}
	ref, err := client.PlaceLimitOrder(context.Background(), spec, "client-1")
	require.NoError(t, err)

	assert.Equal(t, "buy", received.Side)
	assert.Equal(t, spec.Price.String(), received.Price)
	assert.Equal(t, spec.Size.String(), received.Size)
	assert.Equal(t, "BTC-USD", received.ProductID)
	assert.True(t, received.PostOnly)
	assert.Equal(t, "client-1", received.ClientOrder)

	assert.Equal(t, "abc-123", ref.ID)
	assert.Equal(t, "client-1", ref.ClientOrderID)
	assert.Equal(t, "pending", ref.Status)
}

func TestGetOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/abc-123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(orderResponse{
			ID:      "abc-123",
			Status:  "done",
			Settled: true,
		})
	})

	status, err := client.GetOrder(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", status.ID)
	assert.True(t, status.Settled)
	assert.False(t, status.Rejected())
}

func TestGetOrder_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(orderResponse{ID: "abc-123", Status: "rejected"})
	})

	status, err := client.GetOrder(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.True(t, status.Rejected())
}

func TestHandleError_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.HistoricRates(ctx, "BTC-USD", 5*time.Minute)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
