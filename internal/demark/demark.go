// Package demark derives Demark-style sequential trend annotations from an
// ordered candle sequence (most-recent last). All functions are pure: they
// never mutate their input and recomputation is the source of truth.
package demark

import (
	"fmt"

	"trademon/internal/domain"
)

const (
	// lookback is the fixed distance of the close comparison.
	lookback = 4

	// DefaultMaxCount is the traditional setup-count saturation point.
	DefaultMaxCount = 9
)

// Config holds parameters for the count engine.
type Config struct {
	MaxCount int // Setup-count cap; defaults to DefaultMaxCount when zero
}

// Engine computes trend annotations over candle sequences.
type Engine struct {
	maxCount int
}

// New creates a count engine.
func New(cfg Config) (*Engine, error) {
	maxCount := cfg.MaxCount
	if maxCount == 0 {
		maxCount = DefaultMaxCount
	}
	if maxCount < 1 {
		return nil, fmt.Errorf("max count must be positive, got %d", maxCount)
	}
	return &Engine{maxCount: maxCount}, nil
}

// BiasAt classifies the candle at index i against the candle four positions
// earlier. It returns BiasNone when fewer than four prior candles exist or
// the closes are equal.
func (e *Engine) BiasAt(history []domain.Candle, i int) domain.Bias {
	if i < lookback || i >= len(history) {
		return domain.BiasNone
	}
	switch {
	case history[i].Close > history[i-lookback].Close:
		return domain.BiasBullish
	case history[i].Close < history[i-lookback].Close:
		return domain.BiasBearish
	default:
		return domain.BiasNone
	}
}

// Annotate produces one TrendAnnotation per candle, scanning left to right.
// A flip is declared whenever the bias differs from the last determinate
// bias; BiasNone neither flips nor continues a run. The count resets to 1 on
// a flip, increments on each later candle sharing the bias, and saturates at
// the configured maximum. With fewer than lookback+1 candles the result is
// empty: there is not enough context for a 4-back comparison.
func (e *Engine) Annotate(history []domain.Candle) []domain.AnnotatedCandle {
	if len(history) <= lookback {
		return nil
	}

	out := make([]domain.AnnotatedCandle, len(history))
	lastBias := domain.BiasNone
	lastCount := 0
	for i, c := range history {
		ann := domain.TrendAnnotation{Bias: e.BiasAt(history, i)}
		if ann.Bias != domain.BiasNone {
			if ann.Bias != lastBias {
				ann.IsFlip = true
				ann.Count = 1
			} else if lastCount < e.maxCount {
				ann.Count = lastCount + 1
			} else {
				ann.Count = e.maxCount
			}
			lastBias = ann.Bias
			lastCount = ann.Count
		}
		out[i] = domain.AnnotatedCandle{Candle: c, Annotation: ann}
	}
	return out
}

// SinceLastBullishFlip returns the annotated suffix from the most recent flip
// into a bullish bias through the end of history; empty if none occurred.
func (e *Engine) SinceLastBullishFlip(history []domain.Candle) []domain.AnnotatedCandle {
	return e.sinceLastFlip(history, domain.BiasBullish)
}

// SinceLastBearishFlip returns the annotated suffix from the most recent flip
// into a bearish bias through the end of history; empty if none occurred.
func (e *Engine) SinceLastBearishFlip(history []domain.Candle) []domain.AnnotatedCandle {
	return e.sinceLastFlip(history, domain.BiasBearish)
}

func (e *Engine) sinceLastFlip(history []domain.Candle, bias domain.Bias) []domain.AnnotatedCandle {
	annotated := e.Annotate(history)
	for i := len(annotated) - 1; i >= 0; i-- {
		if annotated[i].Annotation.IsFlip && annotated[i].Annotation.Bias == bias {
			return annotated[i:]
		}
	}
	return nil
}

// CombinedRecent merges both interpretations into one record per candle,
// starting at the earlier of the two most recent flips. Each record carries
// the candle's annotation on the side matching its bias; the other side is
// zero-valued.
func (e *Engine) CombinedRecent(history []domain.Candle) []domain.CombinedCandle {
	annotated := e.Annotate(history)
	if len(annotated) == 0 {
		return nil
	}

	lastBull := e.lastFlipIndex(annotated, domain.BiasBullish)
	lastBear := e.lastFlipIndex(annotated, domain.BiasBearish)
	start := 0
	switch {
	case lastBull >= 0 && lastBear >= 0:
		start = min(lastBull, lastBear)
	case lastBull >= 0:
		start = lastBull
	case lastBear >= 0:
		start = lastBear
	}

	out := make([]domain.CombinedCandle, 0, len(annotated)-start)
	for _, ac := range annotated[start:] {
		cc := domain.CombinedCandle{Candle: ac.Candle}
		switch ac.Annotation.Bias {
		case domain.BiasBullish:
			cc.Bullish = ac.Annotation
		case domain.BiasBearish:
			cc.Bearish = ac.Annotation
		}
		out = append(out, cc)
	}
	return out
}

func (e *Engine) lastFlipIndex(annotated []domain.AnnotatedCandle, bias domain.Bias) int {
	for i := len(annotated) - 1; i >= 0; i-- {
		if annotated[i].Annotation.IsFlip && annotated[i].Annotation.Bias == bias {
			return i
		}
	}
	return -1
}
