package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.False(t, b.Open())
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.True(t, b.Open())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	require.True(t, b.Open())

	// Probe is admitted once the recovery timeout elapses.
	clock = clock.Add(31 * time.Second)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.False(t, b.Open())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return clock }

	require.Error(t, b.Do(func() error { return errors.New("boom") }))
	clock = clock.Add(31 * time.Second)
	require.Error(t, b.Do(func() error { return errors.New("boom again") }))

	assert.True(t, b.Open(), "failed probe reopens immediately")
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	clock := time.Now()
	r := NewRateLimiter(time.Minute)
	r.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		d := r.Allow("user_1", 3)
		assert.True(t, d.Allowed)
	}
	d := r.Allow("user_1", 3)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// Other keys are unaffected.
	assert.True(t, r.Allow("user_2", 3).Allowed)

	// Window slides: the oldest event expires and frees a slot.
	clock = clock.Add(61 * time.Second)
	assert.True(t, r.Allow("user_1", 3).Allowed)
}

func TestRateLimiterZeroLimitMeansUnlimited(t *testing.T) {
	r := NewRateLimiter(time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, r.Allow("k", 0).Allowed)
	}
}
