package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limits RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limits)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{})

	for range 100 {
		require.NoError(t, rl.Allow("client", 100))
	}
	u := rl.Usage("client")
	assert.Equal(t, 100, u.Day)
	assert.Equal(t, int64(10000), u.BytesDay)
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, rl.Allow("client", 0))
	clock.Advance(10 * time.Second)
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "minute", rateErr.Type)
	assert.Equal(t, 2, rateErr.Limit)
	assert.Equal(t, 50*time.Second, rateErr.RetryAfter)

	// Steady traffic must not keep the window open forever.
	clock.Advance(50 * time.Second)
	require.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerHour: 3})

	for range 3 {
		require.NoError(t, rl.Allow("client", 0))
		clock.Advance(5 * time.Minute)
	}
	err := rl.Allow("client", 0)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "hour", rateErr.Type)
	assert.Equal(t, 45*time.Minute, rateErr.RetryAfter)

	clock.Advance(45 * time.Minute)
	require.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{RequestsPerDay: 2, BytesPerDay: 1000})

	require.NoError(t, rl.Allow("client", 500))
	err := rl.Allow("client", 600)
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "data", quotaErr.Type)
	assert.Equal(t, int64(500), quotaErr.Used)

	require.NoError(t, rl.Allow("client", 400))
	err = rl.Allow("client", 0)
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "requests", quotaErr.Type)
	assert.Equal(t, int64(2), quotaErr.Used)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), quotaErr.Resets)

	clock.Advance(14 * time.Hour)
	require.NoError(t, rl.Allow("client", 900))
}

func TestRateLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{RequestsPerMinute: 1})

	require.NoError(t, rl.Allow("client", 0))
	for range 5 {
		require.Error(t, rl.Allow("client", 0))
	}
	assert.Equal(t, 1, rl.Usage("client").Minute)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{RequestsPerMinute: 1})

	require.NoError(t, rl.Allow("a", 0))
	require.Error(t, rl.Allow("a", 0))
	require.NoError(t, rl.Allow("b", 0))
	assert.Equal(t, ClientUsage{}, rl.Usage("unknown"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{})

	require.NoError(t, rl.Allow("old", 0))
	clock.Advance(2 * time.Hour)
	require.NoError(t, rl.Allow("new", 0))

	assert.Equal(t, 1, rl.Prune(time.Hour))
	assert.Zero(t, rl.Usage("old").Day)
	assert.Equal(t, 1, rl.Usage("new").Day)
}

func TestRateLimitErrors(t *testing.T) {
	err := error(&RateLimitError{Type: "minute", Limit: 10, RetryAfter: 5 * time.Minute})
	assert.Equal(t, "rate limit exceeded for minute (limit: 10, retry after: 5m0s)", err.Error())

	quota := &QuotaExceededError{Type: "data", Limit: 1000, Used: 950, Resets: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 950, limit: 1000, resets: 2024-01-02T00:00:00Z)", quota.Error())

	wrapped := errors.Join(errors.New("context"), err)
	var rateErr *RateLimitError
	assert.ErrorAs(t, wrapped, &rateErr)
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1 << 30, RequestsPerHour: 1 << 30})
	for range b.N {
		_ = rl.Allow("bench", 100)
	}
}
