package domain

// Bias classifies a candle's close against the close four candles earlier.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	// BiasNone is the zero value: fewer than four prior candles, or equal
	// closes. A zero TrendAnnotation therefore means "no determinate bias".
	BiasNone Bias = ""
)

// TrendAnnotation is the sequential-count annotation derived for one candle.
// It is recomputed from the candle sequence, never persisted on its own.
type TrendAnnotation struct {
	Bias   Bias // Direction of the 4-back comparison
	Count  int  // Candles since the last flip into this bias, capped; 0 when Bias is none
	IsFlip bool // True on the candle where the bias changed
}

// AnnotatedCandle pairs a candle with its trend annotation.
type AnnotatedCandle struct {
	Candle
	Annotation TrendAnnotation
}

// CombinedCandle carries both interpretations of one candle so a consolidated
// view can be rendered regardless of which bias is currently active. The
// annotation for the inactive side is zero-valued.
type CombinedCandle struct {
	Candle
	Bullish TrendAnnotation
	Bearish TrendAnnotation
}
