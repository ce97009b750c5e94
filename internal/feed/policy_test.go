package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedInterval(t *testing.T) {
	p := FixedInterval{Every: 30 * time.Second}

	for _, attempt := range []int{1, 2, 100, 10000} {
		assert.Equal(t, 30*time.Second, p.Interval(attempt))
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff{Min: 100 * time.Millisecond, Max: 10 * time.Second}

	first := p.Interval(1)
	assert.GreaterOrEqual(t, first, time.Duration(0))
	assert.LessOrEqual(t, first, 100*time.Millisecond)

	// The wait never exceeds the ceiling, however many attempts pass.
	for attempt := 1; attempt <= 20; attempt++ {
		assert.LessOrEqual(t, p.Interval(attempt), 10*time.Second)
	}
}
