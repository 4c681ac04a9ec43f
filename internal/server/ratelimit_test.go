package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock(hour, minute, second int) *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 20, hour, minute, second, 0, time.UTC)}
}

func limiterWithClock(rl *RateLimiter, c *fakeClock) *RateLimiter {
	rl.now = c.now
	return rl
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 100, 1000, 1024*1024)

	assert.Equal(t, 10, rl.requestsPerMinute)
	assert.Equal(t, 100, rl.requestsPerHour)
	assert.Equal(t, 1000, rl.maxRequestsPerDay)
	assert.Equal(t, int64(1024*1024), rl.maxDataPerDay)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiterNoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)
	for range 50 {
		require.NoError(t, rl.CheckRateLimit("10.0.0.1", 100))
	}
	u := rl.Usage("10.0.0.1")
	assert.Equal(t, 50, u.Day.Count)
	assert.Equal(t, int64(5000), u.DataToday)
	assert.Equal(t, ClientUsage{}, rl.Usage("unknown"))
}

func TestRateLimiterPerMinute(t *testing.T) {
	clock := newClock(10, 0, 15)
	rl := limiterWithClock(NewRateLimiter(2, 0, 0, 0), clock)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "minute", rlErr.Type)
	assert.Equal(t, 2, rlErr.Limit)
	assert.Equal(t, 45*time.Second, rlErr.RetryAfter)

	// other clients are independent
	require.NoError(t, rl.CheckRateLimit("b", 0))

	clock.advance(45 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiterPerHour(t *testing.T) {
	clock := newClock(10, 59, 0)
	rl := limiterWithClock(NewRateLimiter(0, 3, 0, 0), clock)

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clock.advance(10 * time.Second)
	}
	err := rl.CheckRateLimit("a", 0)
	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "hour", rlErr.Type)
	assert.Equal(t, 30*time.Second, rlErr.RetryAfter)

	clock.advance(30 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiterDailyQuotas(t *testing.T) {
	clock := newClock(23, 0, 0)
	rl := limiterWithClock(NewRateLimiter(0, 0, 2, 0), clock)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var q *QuotaExceededError
	require.ErrorAs(t, err, &q)
	assert.Equal(t, "requests", q.Type)
	assert.Equal(t, int64(2), q.Limit)
	assert.Equal(t, int64(2), q.Used)
	assert.Equal(t, time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC), q.Resets)

	clock.advance(time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiterDataQuota(t *testing.T) {
	clock := newClock(8, 0, 0)
	rl := limiterWithClock(NewRateLimiter(0, 0, 0, 1000), clock)

	require.NoError(t, rl.CheckRateLimit("a", 600))
	err := rl.CheckRateLimit("a", 500)
	var q *QuotaExceededError
	require.ErrorAs(t, err, &q)
	assert.Equal(t, "data", q.Type)
	assert.Equal(t, int64(600), q.Used)

	// rejected requests are not counted
	require.NoError(t, rl.CheckRateLimit("a", 400))
	assert.Equal(t, int64(1000), rl.Usage("a").DataToday)

	clock.advance(16 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("a", 900))
	assert.Equal(t, int64(900), rl.Usage("a").DataToday)
}

func TestRateLimitErrorMessages(t *testing.T) {
	rlErr := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", rlErr.Error())

	q := &QuotaExceededError{Type: "data", Limit: 10, Used: 12, Resets: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 12, limit: 10, resets: 2026-01-02T00:00:00Z)", q.Error())
}
