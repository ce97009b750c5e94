// Package trading advances buy/sell order pairs through their execution
// lifecycle, driven by live ticker messages.
package trading

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

// op identifies which network call a Result completes.
type op string

const (
	opBuySubmit  op = "buy_submit"
	opBuyQuery   op = "buy_query"
	opSellSubmit op = "sell_submit"
	opSellQuery  op = "sell_query"
)

// Result is the completion of one in-flight exchange call for one pair. The
// dispatch loop applies results between ticks so pair mutation stays inside a
// single scheduling domain.
type Result struct {
	pair   *domain.OrderPair
	op     op
	ref    *ports.OrderRef
	status *ports.OrderStatus
	err    error
}

// Config holds parameters for the pair state machine.
type Config struct {
	Exchange ports.ExchangeClient
	Renderer ports.Renderer
	Logger   ports.Logger
}

// Machine tracks registered order pairs and advances each one per tick, in
// registration order. Network calls are issued asynchronously: the tick
// handler returns before they resolve, and their outcomes arrive on
// Results() to be applied by the same dispatch loop. Each pair's in-flight
// flag prevents a second call while the first one is pending, so a burst of
// ticks cannot produce duplicate submissions.
type Machine struct {
	exchange ports.ExchangeClient
	renderer ports.Renderer
	logger   ports.Logger

	pairs       []*domain.OrderPair
	resultCh    chan Result
	summaryDone bool
}

// New creates a pair state machine.
func New(cfg Config) (*Machine, error) {
	if cfg.Exchange == nil || cfg.Renderer == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for pair machine")
	}
	return &Machine{
		exchange: cfg.Exchange,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
	}, nil
}

// Register installs the pairs to track. Must be called before the first tick.
func (m *Machine) Register(pairs []*domain.OrderPair) {
	m.pairs = pairs
	m.resultCh = make(chan Result, len(pairs)+1)
}

// Results returns the channel of completed exchange calls. The owner of the
// dispatch loop must drain it through Apply.
func (m *Machine) Results() <-chan Result {
	return m.resultCh
}

// Pairs returns the tracked pairs in registration order.
func (m *Machine) Pairs() []*domain.OrderPair {
	return m.pairs
}

// Done reports whether every pair has reached a terminal state with no call
// in flight.
func (m *Machine) Done() bool {
	for _, p := range m.pairs {
		if !p.State.Terminal() || p.InFlight {
			return false
		}
	}
	return len(m.pairs) > 0
}

// HandleTick re-evaluates every tracked pair against its lifecycle, in
// registration order. The first processed tick also emits a one-time summary
// of all pairs ordered by profit, independent of pair states. The tick's
// price is not consulted: it is only the scheduling trigger for submissions
// and status queries.
func (m *Machine) HandleTick(ctx context.Context, msg domain.FeedMessage) {
	if msg.Type != domain.MsgTicker {
		return
	}

	if !m.summaryDone {
		m.renderSummary(ctx)
		m.summaryDone = true
	}

	// Transform a snapshot and replace the collection, so no partial-pair
	// interleaving is visible between ticks.
	updated := make([]*domain.OrderPair, 0, len(m.pairs))
	for _, p := range m.pairs {
		m.advance(ctx, p)
		updated = append(updated, p)
	}
	m.pairs = updated
}

// advance issues at most one asynchronous exchange call for the pair,
// according to its state. Pairs with a call already in flight are no-ops.
func (m *Machine) advance(ctx context.Context, p *domain.OrderPair) {
	if p.InFlight || p.State.Terminal() {
		return
	}

	switch p.State {
	case domain.AwaitingBuySubmission:
		p.InFlight = true
		spec := p.Buy
		clientID := uuid.NewString()
		go func() {
			ref, err := m.exchange.PlaceLimitOrder(ctx, spec, clientID)
			m.resultCh <- Result{pair: p, op: opBuySubmit, ref: ref, err: err}
		}()

	case domain.BuyPending:
		p.InFlight = true
		orderID := p.BuyOrderID
		go func() {
			status, err := m.exchange.GetOrder(ctx, orderID)
			m.resultCh <- Result{pair: p, op: opBuyQuery, status: status, err: err}
		}()

	case domain.AwaitingSellSubmission:
		p.InFlight = true
		spec := p.Sell
		clientID := uuid.NewString()
		go func() {
			ref, err := m.exchange.PlaceLimitOrder(ctx, spec, clientID)
			m.resultCh <- Result{pair: p, op: opSellSubmit, ref: ref, err: err}
		}()

	case domain.SellPending:
		p.InFlight = true
		orderID := p.SellOrderID
		go func() {
			status, err := m.exchange.GetOrder(ctx, orderID)
			m.resultCh <- Result{pair: p, op: opSellQuery, status: status, err: err}
		}()
	}
}

// Apply folds one completed exchange call back into its pair and clears the
// in-flight flag. A transport error leaves the state unchanged so the next
// tick retries the same transition; the gateway's client-order-id
// de-duplication is what keeps that retry from doubling an order.
func (m *Machine) Apply(ctx context.Context, res Result) {
	p := res.pair
	p.InFlight = false

	if res.err != nil {
		m.logger.Warn(ctx, "Exchange call failed, will retry on next tick", map[string]interface{}{
			"op":    string(res.op),
			"state": string(p.State),
			"error": res.err.Error(),
		})
		return
	}

	switch res.op {
	case opBuySubmit:
		p.BuyOrderID = res.ref.ID
		p.State = domain.BuyPending
		m.logger.Info(ctx, "Buy order submitted", map[string]interface{}{
			"orderID": p.BuyOrderID,
			"price":   p.Buy.Price.String(),
			"size":    p.Buy.Size.String(),
		})

	case opBuyQuery:
		if res.status.Rejected() {
			p.State = domain.BuyRejected
			m.logger.Warn(ctx, "Buy order rejected, pair abandoned", map[string]interface{}{
				"orderID": p.BuyOrderID,
				"price":   p.Buy.Price.String(),
			})
			return
		}
		if res.status.Settled {
			p.State = domain.AwaitingSellSubmission
			m.logger.Info(ctx, "Buy order settled", map[string]interface{}{"orderID": p.BuyOrderID})
		}

	case opSellSubmit:
		p.SellOrderID = res.ref.ID
		p.State = domain.SellPending
		m.logger.Info(ctx, "Sell order submitted", map[string]interface{}{
			"orderID": p.SellOrderID,
			"price":   p.Sell.Price.String(),
			"size":    p.Sell.Size.String(),
		})

	case opSellQuery:
		if res.status.Rejected() {
			// Sell rejection retries: back to submission on the next tick.
			p.SellOrderID = ""
			p.State = domain.AwaitingSellSubmission
			m.logger.Warn(ctx, "Sell order rejected, resubmitting", map[string]interface{}{
				"price": p.Sell.Price.String(),
			})
			return
		}
		if res.status.Settled {
			p.State = domain.SellSettled
			m.logger.Info(ctx, "Pair complete", map[string]interface{}{
				"sellOrderID": p.SellOrderID,
				"profit":      p.Profit().String(),
			})
			m.renderCompletion(ctx, p)
		}
	}
}

func (m *Machine) renderSummary(ctx context.Context) {
	ordered := make([]*domain.OrderPair, len(m.pairs))
	copy(ordered, m.pairs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Profit().GreaterThan(ordered[j].Profit())
	})

	columns := []string{"buy_price", "buy_size", "sell_price", "sell_size", "state", "profit"}
	rows := make([][]interface{}, 0, len(ordered))
	for _, p := range ordered {
		rows = append(rows, []interface{}{
			p.Buy.Price.String(),
			p.Buy.Size.String(),
			p.Sell.Price.String(),
			p.Sell.Size.String(),
			string(p.State),
			p.Profit().InexactFloat64(),
		})
	}
	if err := m.renderer.Render(columns, rows, "profit"); err != nil {
		m.logger.Error(ctx, err, "Failed to render pair summary")
	}
}

func (m *Machine) renderCompletion(ctx context.Context, p *domain.OrderPair) {
	columns := []string{"sell_order_id", "buy_price", "sell_price", "size", "profit"}
	rows := [][]interface{}{{
		p.SellOrderID,
		p.Buy.Price.String(),
		p.Sell.Price.String(),
		p.Sell.Size.String(),
		p.Profit().InexactFloat64(),
	}}
	if err := m.renderer.Render(columns, rows, ""); err != nil {
		m.logger.Error(ctx, err, "Failed to render pair completion")
	}
}
