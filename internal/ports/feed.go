package ports

import (
	"context"

	"trademon/internal/domain"
)

// FeedConn is one live connection to the exchange feed for one product.
// ReadMessage blocks until the next message arrives or the connection fails;
// a non-nil error means the connection is dead and must be redialed.
type FeedConn interface {
	ReadMessage() (domain.FeedMessage, error)
	Close() error
}

// FeedDialer opens feed connections. The supervisor owns the lifetime of the
// resulting connection and redials through this interface on closure.
type FeedDialer interface {
	Dial(ctx context.Context, productID string) (FeedConn, error)
}
