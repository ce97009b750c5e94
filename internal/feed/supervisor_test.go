package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

// mockLogger records warn messages for assertions.
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (l *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (l *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func (l *mockLogger) warnsMatching(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, w := range l.warns {
		if w == msg {
			n++
		}
	}
	return n
}

// scriptedConn delivers the scripted messages in order, then fails. With
// hang set it blocks after the last message until Close, keeping the
// supervisor attached instead of cycling through redials.
type scriptedConn struct {
	mu        sync.Mutex
	msgs      []domain.FeedMessage
	next      int
	hang      chan struct{}
	closeOnce sync.Once
}

func (c *scriptedConn) ReadMessage() (domain.FeedMessage, error) {
	c.mu.Lock()
	exhausted := c.next >= len(c.msgs)
	var msg domain.FeedMessage
	if !exhausted {
		msg = c.msgs[c.next]
		c.next++
	}
	hang := c.hang
	c.mu.Unlock()

	if !exhausted {
		return msg, nil
	}
	if hang != nil {
		<-hang
	}
	return domain.FeedMessage{}, fmt.Errorf("read failed: %w", ports.ErrFeedClosed)
}

func (c *scriptedConn) Close() error {
	if c.hang != nil {
		c.closeOnce.Do(func() { close(c.hang) })
	}
	return nil
}

// mockDialer fails a configured number of times before handing out conns.
type mockDialer struct {
	mu        sync.Mutex
	failFirst int
	dials     int
	conns     []*scriptedConn
}

func (d *mockDialer) Dial(ctx context.Context, productID string) (ports.FeedConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("dial refused")
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no more connections scripted")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *mockDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func tickerMsg(price float64) domain.FeedMessage {
	return domain.FeedMessage{
		Type:      domain.MsgTicker,
		ProductID: "BTC-USD",
		Price:     price,
		Time:      time.Now(),
	}
}

func newTestSupervisor(t *testing.T, dialer *mockDialer, logger *mockLogger, diagEvery int) *Supervisor {
	t.Helper()
	s, err := New(Config{
		ProductID:       "BTC-USD",
		Dialer:          dialer,
		Policy:          FixedInterval{Every: time.Millisecond},
		Logger:          logger,
		DiagnosticEvery: diagEvery,
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	logger := &mockLogger{}
	dialer := &mockDialer{}

	_, err := New(Config{Dialer: dialer, Logger: logger})
	assert.Error(t, err, "missing product")

	_, err = New(Config{ProductID: "BTC-USD", Logger: logger})
	assert.Error(t, err, "missing dialer")
}

func TestRun_ForwardsMessagesInOrder(t *testing.T) {
	dialer := &mockDialer{
		conns: []*scriptedConn{
			{msgs: []domain.FeedMessage{tickerMsg(1), tickerMsg(2), tickerMsg(3)}, hang: make(chan struct{})},
		},
	}
	logger := &mockLogger{}
	s := newTestSupervisor(t, dialer, logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	for i, want := range []float64{1, 2, 3} {
		select {
		case msg := <-s.Messages():
			assert.Equal(t, want, msg.Price, "message %d", i)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestRun_RetriesUntilDialSucceeds(t *testing.T) {
	dialer := &mockDialer{
		failFirst: 5,
		conns: []*scriptedConn{
			{msgs: []domain.FeedMessage{tickerMsg(42)}, hang: make(chan struct{})},
		},
	}
	logger := &mockLogger{}
	s := newTestSupervisor(t, dialer, logger, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case msg := <-s.Messages():
		assert.Equal(t, 42.0, msg.Price)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}

	assert.GreaterOrEqual(t, dialer.dialCount(), 6)
	// Diagnostics fire on every second failed attempt: 2 and 4.
	assert.Equal(t, 2, logger.warnsMatching("Still attempting to reconnect feed"))

	cancel()
	<-errCh
}

func TestRun_ReconnectsAfterConnectionLoss(t *testing.T) {
	dialer := &mockDialer{
		conns: []*scriptedConn{
			{msgs: []domain.FeedMessage{tickerMsg(1)}},
			{msgs: []domain.FeedMessage{tickerMsg(2)}, hang: make(chan struct{})},
		},
	}
	logger := &mockLogger{}
	s := newTestSupervisor(t, dialer, logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	msg := <-s.Messages()
	assert.Equal(t, 1.0, msg.Price)

	// First conn fails after its message; the supervisor redials and the
	// second conn's message arrives without caller involvement.
	select {
	case msg = <-s.Messages():
		assert.Equal(t, 2.0, msg.Price)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not reconnect")
	}

	assert.GreaterOrEqual(t, logger.warnsMatching("Feed connection lost, reconnecting"), 1)

	cancel()
	<-errCh
}

func TestRun_ClosesMessagesOnReturn(t *testing.T) {
	dialer := &mockDialer{failFirst: 1 << 30}
	logger := &mockLogger{}
	s := newTestSupervisor(t, dialer, logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	cancel()
	<-errCh

	_, ok := <-s.Messages()
	assert.False(t, ok)
}

func TestState_Reporting(t *testing.T) {
	dialer := &mockDialer{
		conns: []*scriptedConn{
			{msgs: []domain.FeedMessage{tickerMsg(1)}, hang: make(chan struct{})},
		},
	}
	logger := &mockLogger{}
	s := newTestSupervisor(t, dialer, logger, 0)

	assert.Equal(t, StateDisconnected, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	<-s.Messages()
	assert.Equal(t, StateConnected, s.State())

	cancel()
	<-errCh
}
