// Package feed owns the lifetime of one live-feed subscription and restarts
// it on unexpected closure.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

// State of the supervised subscription.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

const defaultDiagnosticEvery = 30 // attempts between elapsed-time diagnostics

// Config holds parameters for the supervisor.
type Config struct {
	ProductID       string
	Dialer          ports.FeedDialer
	Policy          ReconnectPolicy // defaults to FixedInterval{30s}
	Logger          ports.Logger
	DiagnosticEvery int // defaults to 30
}

// Supervisor maintains one logical subscription for one product. On closure
// not requested by the caller it attempts one immediate reconnect, then
// retries on the policy's cadence indefinitely; every Nth attempt it emits a
// diagnostic noting how long the feed has been down. Messages received while
// connected are forwarded verbatim, in arrival order, on Messages().
type Supervisor struct {
	productID string
	dialer    ports.FeedDialer
	policy    ReconnectPolicy
	logger    ports.Logger
	diagEvery int

	msgCh chan domain.FeedMessage

	mu    sync.Mutex
	state State
}

// New creates a supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Dialer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for feed supervisor")
	}
	if cfg.ProductID == "" {
		return nil, fmt.Errorf("product id is required for feed supervisor")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = FixedInterval{Every: 30 * time.Second}
	}
	diagEvery := cfg.DiagnosticEvery
	if diagEvery <= 0 {
		diagEvery = defaultDiagnosticEvery
	}
	return &Supervisor{
		productID: cfg.ProductID,
		dialer:    cfg.Dialer,
		policy:    policy,
		logger:    cfg.Logger,
		diagEvery: diagEvery,
		msgCh:     make(chan domain.FeedMessage),
		state:     StateDisconnected,
	}, nil
}

// Messages returns the channel of forwarded feed messages. The channel is
// unbuffered, so handling of one message completes before the next is
// delivered. It is closed when Run returns.
func (s *Supervisor) Messages() <-chan domain.FeedMessage {
	return s.msgCh
}

// State reports the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run connects and forwards messages until the context is cancelled. It only
// returns on cancellation: there is no maximum retry count, reconnection is
// attempted until success or shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.msgCh)

	attempt := 0
	lostAt := time.Time{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateConnecting)
		conn, err := s.dialer.Dial(ctx, s.productID)
		if err != nil {
			attempt++
			wait := s.policy.Interval(attempt)
			if attempt%s.diagEvery == 0 {
				s.logger.Warn(ctx, "Still attempting to reconnect feed", map[string]interface{}{
					"product":      s.productID,
					"attempt":      attempt,
					"disconnected": (wait * time.Duration(attempt)).String(),
					"since":        lostAt,
				})
			}
			s.logger.Debug(ctx, "Feed dial failed", map[string]interface{}{
				"product": s.productID,
				"attempt": attempt,
				"error":   err.Error(),
			})
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s.setState(StateConnected)
		attempt = 0
		s.logger.Info(ctx, "Feed connected", map[string]interface{}{"product": s.productID})

		// Close the conn on cancellation so a blocked read returns.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = s.forward(ctx, conn)
		stop()
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Unrequested closure: loop re-dials immediately, which is the one
		// prompt reconnect before the policy cadence takes over.
		s.setState(StateDisconnected)
		lostAt = time.Now()
		s.logger.Warn(ctx, "Feed connection lost, reconnecting", map[string]interface{}{
			"product": s.productID,
			"error":   fmt.Sprintf("%v", err),
		})
	}
}

// forward reads messages from conn and delivers them in arrival order until
// the connection fails or the context is cancelled.
func (s *Supervisor) forward(ctx context.Context, conn ports.FeedConn) error {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case s.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
