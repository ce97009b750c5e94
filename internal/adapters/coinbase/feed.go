package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

const (
	wsURLProduction = "wss://ws-feed.exchange.coinbase.com"
	wsURLSandbox    = "wss://ws-feed-public.sandbox.exchange.coinbase.com"
)

// FeedDialer implements ports.FeedDialer over the exchange websocket feed.
type FeedDialer struct {
	wsURL  string
	logger ports.Logger
}

// FeedConfig holds configuration for the websocket feed adapter.
type FeedConfig struct {
	UseSandbox bool
	URL        string // optional override of the feed endpoint
	Logger     ports.Logger
}

// NewFeedDialer creates a websocket feed dialer.
func NewFeedDialer(cfg FeedConfig) (*FeedDialer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for feed dialer")
	}
	wsURL := wsURLProduction
	if cfg.UseSandbox {
		wsURL = wsURLSandbox
	}
	if cfg.URL != "" {
		wsURL = cfg.URL
	}
	return &FeedDialer{wsURL: wsURL, logger: cfg.Logger}, nil
}

// Dial opens one connection subscribed to the ticker and matches channels for
// the product.
func (d *FeedDialer) Dial(ctx context.Context, productID string) (ports.FeedConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
	}

	sub := map[string]interface{}{
		"type":        "subscribe",
		"product_ids": []string{productID},
		"channels":    []string{"ticker", "matches"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing: %w", ports.ErrConnectionFailed, err)
	}

	d.logger.Info(ctx, "Subscribed to feed", map[string]interface{}{
		"product":  productID,
		"channels": "ticker,matches",
	})
	return &feedConn{conn: conn, logger: d.logger}, nil
}

type feedConn struct {
	conn   *websocket.Conn
	logger ports.Logger
}

// wsMessage covers the fields this system reads from ticker and match
// messages; everything else on the wire is carried by Type alone.
type wsMessage struct {
	Type      string    `json:"type"`
	ProductID string    `json:"product_id"`
	Price     string    `json:"price"`
	Size      string    `json:"size"`
	Time      time.Time `json:"time"`
}

// ReadMessage returns the next parsed feed message. Messages that fail to
// parse are skipped, not surfaced as errors: consumers discriminate on Type
// and ignore shapes they do not know.
func (f *feedConn) ReadMessage() (domain.FeedMessage, error) {
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			return domain.FeedMessage{}, fmt.Errorf("%w: %w", ports.ErrFeedClosed, err)
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug(context.Background(), "Ignoring unparseable feed message", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		ts := msg.Time
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		return domain.FeedMessage{
			Type:      msg.Type,
			ProductID: msg.ProductID,
			Price:     parseFloat(msg.Price),
			Size:      parseFloat(msg.Size),
			Time:      ts,
		}, nil
	}
}

func (f *feedConn) Close() error {
	return f.conn.Close()
}
