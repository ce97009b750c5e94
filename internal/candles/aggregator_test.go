package candles

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

// mockLogger records messages by level for assertions.
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

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestAggregator(t *testing.T) (*Aggregator, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	agg, err := New(Config{
		ProductID:   "BTC-USD",
		Granularity: 5 * time.Minute,
		Logger:      logger,
	})
	require.NoError(t, err)
	return agg, logger
}

func seedCandle(bucket time.Time, close float64) domain.Candle {
	return domain.Candle{
		Time:        bucket,
		Granularity: 5 * time.Minute,
		ProductID:   "BTC-USD",
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      1,
	}
}

func tick(at time.Time, price, size float64) domain.Tick {
	return domain.Tick{ProductID: "BTC-USD", Price: price, Size: size, Time: at}
}

func TestNew_Validation(t *testing.T) {
	logger := &mockLogger{}

	_, err := New(Config{ProductID: "BTC-USD", Granularity: time.Minute})
	assert.Error(t, err, "missing logger")

	_, err = New(Config{Granularity: time.Minute, Logger: logger})
	assert.Error(t, err, "missing product")

	_, err = New(Config{ProductID: "BTC-USD", Logger: logger})
	assert.Error(t, err, "missing granularity")
}

func TestIngest_RequiresSeed(t *testing.T) {
	agg, _ := newTestAggregator(t)

	err := agg.Ingest(tick(base, 100, 1))
	assert.ErrorIs(t, err, ports.ErrNotSeeded)
}

func TestSeed_OnlyOnce(t *testing.T) {
	agg, _ := newTestAggregator(t)

	require.NoError(t, agg.Seed(nil))
	assert.Error(t, agg.Seed(nil))
}

func TestIngest_BuildsCandle(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	require.NoError(t, agg.Ingest(tick(base.Add(10*time.Second), 101, 0.5)))
	require.NoError(t, agg.Ingest(tick(base.Add(30*time.Second), 105, 0.25)))
	require.NoError(t, agg.Ingest(tick(base.Add(90*time.Second), 99, 1)))
	require.NoError(t, agg.Ingest(tick(base.Add(2*time.Minute), 102, 0.5)))

	// Next bucket closes the current one.
	var closed []domain.Candle
	agg.OnClose(func(c domain.Candle) { closed = append(closed, c) })
	require.NoError(t, agg.Ingest(tick(base.Add(5*time.Minute), 103, 1)))

	require.Len(t, closed, 1)
	c := closed[0]
	assert.Equal(t, base, c.Time)
	assert.Equal(t, 101.0, c.Open)
	assert.Equal(t, 105.0, c.High)
	assert.Equal(t, 99.0, c.Low)
	assert.Equal(t, 102.0, c.Close)
	assert.Equal(t, 2.25, c.Volume)
	assert.True(t, c.Low <= c.Open && c.Open <= c.High)
	assert.True(t, c.Low <= c.Close && c.Close <= c.High)
}

func TestIngest_CarriesForwardSkippedBuckets(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	require.NoError(t, agg.Ingest(tick(base.Add(time.Minute), 110, 1)))
	// Jump three buckets ahead: the two in between close with zero volume.
	require.NoError(t, agg.Ingest(tick(base.Add(15*time.Minute+time.Second), 120, 1)))

	history := agg.History()
	require.Len(t, history, 4) // seed + real close + two carried

	assert.Equal(t, 110.0, history[1].Close)
	for _, c := range history[2:] {
		assert.Equal(t, 0.0, c.Volume)
		assert.Equal(t, 110.0, c.Open)
		assert.Equal(t, 110.0, c.High)
		assert.Equal(t, 110.0, c.Low)
		assert.Equal(t, 110.0, c.Close)
	}
	assert.Equal(t, base.Add(5*time.Minute), history[2].Time)
	assert.Equal(t, base.Add(10*time.Minute), history[3].Time)
}

func TestIngest_DropsLateTick(t *testing.T) {
	agg, logger := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	require.NoError(t, agg.Ingest(tick(base.Add(6*time.Minute), 110, 1)))
	require.NoError(t, agg.Ingest(tick(base.Add(time.Minute), 50, 1)))

	assert.Equal(t, 1, logger.warnCount())
	// The open bucket is untouched by the late tick.
	require.NoError(t, agg.Ingest(tick(base.Add(10*time.Minute), 111, 1)))
	history := agg.History()
	last := history[len(history)-1]
	assert.Equal(t, 110.0, last.Low)
}

func TestIngest_DropsLateTickAfterFlush(t *testing.T) {
	agg, logger := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	require.NoError(t, agg.Ingest(tick(base.Add(time.Minute), 110, 1)))
	agg.Flush(base.Add(5 * time.Minute))

	// A straggler from the flushed bucket must not reopen it.
	require.NoError(t, agg.Ingest(tick(base.Add(4*time.Minute+59*time.Second), 50, 1)))
	assert.Equal(t, 1, logger.warnCount())

	require.NoError(t, agg.Ingest(tick(base.Add(5*time.Minute+time.Second), 112, 1)))
	agg.Flush(base.Add(10 * time.Minute))

	history := agg.History()
	require.Len(t, history, 3)
	// Each bucket appears exactly once, oldest first.
	assert.Equal(t, base.Add(-5*time.Minute), history[0].Time)
	assert.Equal(t, base, history[1].Time)
	assert.Equal(t, base.Add(5*time.Minute), history[2].Time)
	assert.Equal(t, 110.0, history[1].Close)
	assert.Equal(t, 112.0, history[2].Close)
}

func TestFlush_ClosesQuietBucket(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	require.NoError(t, agg.Ingest(tick(base.Add(time.Minute), 110, 1)))
	agg.Flush(base.Add(5 * time.Minute))

	history := agg.History()
	require.Len(t, history, 2)
	assert.Equal(t, 110.0, history[1].Close)
	assert.Equal(t, base, history[1].Time)
}

func TestFlush_NoTicksCarriesForward(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base.Add(-5*time.Minute), 100)}))

	// Two boundaries pass without any tick.
	agg.Flush(base.Add(5 * time.Minute))
	agg.Flush(base.Add(10 * time.Minute))

	history := agg.History()
	require.Len(t, history, 3)
	for _, c := range history[1:] {
		assert.Equal(t, 0.0, c.Volume)
		assert.Equal(t, 100.0, c.Close)
	}
}

func TestFlush_Unseeded(t *testing.T) {
	agg, _ := newTestAggregator(t)
	agg.Flush(base) // no panic, no candles
	assert.Empty(t, agg.History())
}

func TestHistory_ReturnsCopy(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Seed([]domain.Candle{seedCandle(base, 100)}))

	history := agg.History()
	history[0].Close = 999

	assert.Equal(t, 100.0, agg.History()[0].Close)
}

func TestHistory_Bounded(t *testing.T) {
	agg, _ := newTestAggregator(t)

	seed := make([]domain.Candle, maxHistorySize+50)
	for i := range seed {
		seed[i] = seedCandle(base.Add(time.Duration(i)*5*time.Minute), float64(i))
	}
	require.NoError(t, agg.Seed(seed))

	history := agg.History()
	assert.Len(t, history, maxHistorySize)
	assert.Equal(t, seed[len(seed)-1].Time, history[len(history)-1].Time)
}
