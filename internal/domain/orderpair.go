package domain

import "github.com/shopspring/decimal"

// OrderSide represents the side of an order (buy or sell).
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// PairState is the lifecycle state of one order pair. Transitions are
// monotonic except for the sell-rejection retry edge.
type PairState string

const (
	AwaitingBuySubmission  PairState = "awaiting_buy_submission"
	BuyPending             PairState = "buy_pending"
	BuyRejected            PairState = "buy_rejected" // absorbing; no retry for the buy leg
	AwaitingSellSubmission PairState = "awaiting_sell_submission"
	SellPending            PairState = "sell_pending"
	SellSettled            PairState = "sell_settled" // terminal
)

// Terminal reports whether no further transitions are possible from s.
func (s PairState) Terminal() bool {
	return s == BuyRejected || s == SellSettled
}

// OrderSpec describes one limit order to be submitted to the exchange.
type OrderSpec struct {
	Side      OrderSide
	ProductID string
	Price     decimal.Decimal // Limit price in quote currency
	Size      decimal.Decimal // Size in base currency
	PostOnly  bool
}

// Cost returns price * size.
func (o OrderSpec) Cost() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// OrderPair is one coupled buy-then-sell trading intent. It is owned
// exclusively by the pair state machine: created once per ladder entry and
// mutated only inside the machine's tick handler.
type OrderPair struct {
	Buy  OrderSpec
	Sell OrderSpec

	BuyOrderID  string // Exchange id of the submitted buy order, once known
	SellOrderID string // Exchange id of the submitted sell order, once known

	State PairState

	// InFlight guards against re-entrant network operations: set before a
	// submission or query is issued, cleared only when its result is applied.
	// Ticks arriving during the window are no-ops for this pair.
	InFlight bool

	profit    decimal.Decimal
	profitSet bool
}

// NewOrderPair creates a pair in its initial state.
func NewOrderPair(buy, sell OrderSpec) *OrderPair {
	return &OrderPair{Buy: buy, Sell: sell, State: AwaitingBuySubmission}
}

// Profit returns the pair's expected profit, computed exactly once from the
// initial specs and memoized. The specs never change after construction.
func (p *OrderPair) Profit() decimal.Decimal {
	if !p.profitSet {
		p.profit = p.Sell.Cost().Sub(p.Buy.Cost())
		p.profitSet = true
	}
	return p.profit
}
