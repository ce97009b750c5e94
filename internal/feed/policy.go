package feed

import (
	"time"

	"github.com/jpillora/backoff"
)

// ReconnectPolicy decides how long to wait before reconnect attempt n
// (1-based, counted since the connection was lost). Isolating the cadence
// behind this interface lets a backoff policy replace the fixed interval
// without touching the supervisor's consumers.
type ReconnectPolicy interface {
	Interval(attempt int) time.Duration
}

// FixedInterval retries at a constant cadence forever. This is the default:
// one immediate reconnect on closure, then a fixed wait between attempts,
// with no cap on the number of retries.
type FixedInterval struct {
	Every time.Duration
}

// Interval returns the fixed wait regardless of attempt number.
func (p FixedInterval) Interval(int) time.Duration {
	return p.Every
}

// ExponentialBackoff grows the wait between attempts up to a ceiling.
type ExponentialBackoff struct {
	Min time.Duration
	Max time.Duration
}

// Interval returns the backoff wait for the given attempt.
func (p ExponentialBackoff) Interval(attempt int) time.Duration {
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: 2, Jitter: true}
	return b.ForAttempt(float64(attempt - 1))
}
