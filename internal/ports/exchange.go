package ports

import (
	"context"
	"time"

	"trademon/internal/domain"
)

// OrderRef is the essential detail returned after submitting an order: the
// opaque exchange identifier plus the echoed request fields.
type OrderRef struct {
	ID            string    // Exchange's order id
	ClientOrderID string    // Client-generated id attached to the submission
	ProductID     string    // Echoed product
	Side          string    // Echoed side
	Price         string    // Echoed limit price
	Size          string    // Echoed size
	Status        string    // Initial status reported by the exchange
	CreatedAt     time.Time // Time the order was accepted
}

// OrderStatus is the result of querying an order by id.
type OrderStatus struct {
	ID      string
	Status  string // "rejected" is the only negative status this system consults
	Settled bool   // Fully executed, no further state change expected
}

// Rejected reports whether the exchange rejected the order outright.
func (s OrderStatus) Rejected() bool {
	return s.Status == "rejected"
}

// ExchangeClient defines the interface for the exchange gateway collaborator.
// This abstraction decouples the core components from the concrete REST client.
type ExchangeClient interface {
	// HistoricRates fetches closed candles for a product at the given
	// granularity, ordered oldest first.
	HistoricRates(ctx context.Context, productID string, granularity time.Duration) ([]domain.Candle, error)

	// PlaceLimitOrder submits one limit order and returns its reference.
	// The clientOrderID is attached so a de-duplicating gateway can detect
	// retried submissions.
	PlaceLimitOrder(ctx context.Context, spec domain.OrderSpec, clientOrderID string) (*OrderRef, error)

	// GetOrder queries the current status of an order by its exchange id.
	GetOrder(ctx context.Context, orderID string) (*OrderStatus, error)
}
