package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualTimeProvider(t *testing.T) {
	fixedTime := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualTimeProvider(fixedTime)

	assert.Equal(t, fixedTime, clock.Now())

	clock.Advance(90 * time.Minute)
	assert.Equal(t, fixedTime.Add(90*time.Minute), clock.Now())
	assert.Equal(t, 90*time.Minute, clock.Since(fixedTime))

	clock.Set(fixedTime)
	assert.Equal(t, fixedTime, clock.Now())
}

func TestRealTimeProvider(t *testing.T) {
	provider := NewRealTimeProvider()

	now := provider.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.GreaterOrEqual(t, provider.Since(now), time.Duration(0))
}
