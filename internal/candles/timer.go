package candles

import (
	"context"
	"time"
)

// InitialBoundaryDelay computes the wait from now until the next wall-clock
// boundary for the given granularity.
func InitialBoundaryDelay(now time.Time, granularity time.Duration) time.Duration {
	return now.UTC().Truncate(granularity).Add(granularity).Sub(now.UTC())
}

// StartBoundaryTimer emits the boundary instant on the returned channel at
// the next granularity edge and then exactly every granularity thereafter,
// until the context is cancelled. Firing times are aligned to the boundary
// regardless of jitter in message delivery.
func StartBoundaryTimer(ctx context.Context, granularity time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		defer close(ch)

		first := time.NewTimer(InitialBoundaryDelay(time.Now(), granularity))
		defer first.Stop()
		select {
		case <-ctx.Done():
			return
		case t := <-first.C:
			select {
			case ch <- t:
			case <-ctx.Done():
				return
			}
		}

		ticker := time.NewTicker(granularity)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				select {
				case ch <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
