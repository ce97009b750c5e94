package domain

import "time"

// Feed message types consumed by this system. Messages of any other type are
// ignored by the consumers, never raised as errors.
const (
	MsgTicker = "ticker" // price updates; drives the pair state machine
	MsgMatch  = "match"  // executed trades; drives candle aggregation
)

// FeedMessage is one inbound message from the live feed, already parsed.
type FeedMessage struct {
	Type      string
	ProductID string
	Price     float64
	Size      float64 // zero for ticker messages
	Time      time.Time
}

// Tick converts a match message into the aggregator's tick shape.
func (m FeedMessage) Tick() Tick {
	return Tick{ProductID: m.ProductID, Price: m.Price, Size: m.Size, Time: m.Time}
}
