package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademon/internal/domain"
	"trademon/internal/feed"
	"trademon/internal/trading"
)

func tickerAt(price float64) domain.FeedMessage {
	return domain.FeedMessage{Type: domain.MsgTicker, ProductID: "BTC-USD", Price: price, Time: time.Now()}
}

func TestNewTwoLegService_Validation(t *testing.T) {
	_, err := NewTwoLegService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTwoLegService_CompletesPair(t *testing.T) {
	exchange := &mockExchange{}
	renderer := &mockRenderer{}
	log := &mockLogger{}

	pair := domain.NewOrderPair(
		domain.OrderSpec{
			Side:      domain.Buy,
			ProductID: "BTC-USD",
			Price:     decimal.RequireFromString("100"),
			Size:      decimal.RequireFromString("0.5"),
			PostOnly:  true,
		},
		domain.OrderSpec{
			Side:      domain.Sell,
			ProductID: "BTC-USD",
			Price:     decimal.RequireFromString("105"),
			Size:      decimal.RequireFromString("0.5"),
			PostOnly:  true,
		},
	)

	machine, err := trading.New(trading.Config{Exchange: exchange, Renderer: renderer, Logger: log})
	require.NoError(t, err)
	machine.Register([]*domain.OrderPair{pair})

	// Tickers repeat until the pair walks through submit, query, submit, query.
	dialer := &scriptedDialer{msgs: []domain.FeedMessage{tickerAt(100), tickerAt(101)}, loop: true}

	supervisor, err := feed.New(feed.Config{
		ProductID: "BTC-USD",
		Dialer:    dialer,
		Policy:    feed.FixedInterval{Every: time.Millisecond},
		Logger:    log,
	})
	require.NoError(t, err)

	svc, err := NewTwoLegService(testConfig(), log, machine, supervisor)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	// The summary renders on the first tick and the completion report once
	// the sell settles.
	require.Eventually(t, func() bool { return renderer.callCount() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}

	assert.Equal(t, domain.SellSettled, pair.State)
	assert.Equal(t, "order-2", pair.SellOrderID)
}
