package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client request limits. A zero limit is unlimited.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	BytesPerDay       int64
}

// RateLimiter tracks requests and uploaded bytes per client in fixed
// minute, hour and day windows.
type RateLimiter struct {
	mu sync.Mutex

	limits  RateLimitConfig
	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage of one client within the current windows.
type ClientUsage struct {
	Minute    int
	Hour      int
	Day       int
	BytesDay  int64
	LastSeen  time.Time
	minuteEnd time.Time
	hourEnd   time.Time
	dayEnd    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(limits RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		clients: make(map[string]*ClientUsage),
		now:     time.Now,
	}
}

// Allow records one request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.clients[client]
	if u == nil {
		u = &ClientUsage{}
		rl.clients[client] = u
	}
	rl.roll(u, now)

	if err := rl.check(u, size, now); err != nil {
		return err
	}

	u.Minute++
	u.Hour++
	u.Day++
	u.BytesDay += size
	u.LastSeen = now
	return nil
}

// roll starts new windows for every window that has ended.
func (rl *RateLimiter) roll(u *ClientUsage, now time.Time) {
	if !now.Before(u.minuteEnd) {
		u.Minute = 0
		u.minuteEnd = now.Add(time.Minute)
	}
	if !now.Before(u.hourEnd) {
		u.Hour = 0
		u.hourEnd = now.Add(time.Hour)
	}
	if !now.Before(u.dayEnd) {
		u.Day = 0
		u.BytesDay = 0
		u.dayEnd = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	}
}

func (rl *RateLimiter) check(u *ClientUsage, size int64, now time.Time) error {
	if rl.limits.RequestsPerMinute > 0 && u.Minute >= rl.limits.RequestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.limits.RequestsPerMinute, RetryAfter: u.minuteEnd.Sub(now)}
	}
	if rl.limits.RequestsPerHour > 0 && u.Hour >= rl.limits.RequestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.limits.RequestsPerHour, RetryAfter: u.hourEnd.Sub(now)}
	}
	if rl.limits.RequestsPerDay > 0 && u.Day >= rl.limits.RequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.limits.RequestsPerDay),
			Used:   int64(u.Day),
			Resets: u.dayEnd,
		}
	}
	if rl.limits.BytesPerDay > 0 && u.BytesDay+size > rl.limits.BytesPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.limits.BytesPerDay, Used: u.BytesDay, Resets: u.dayEnd}
	}
	return nil
}

// Usage returns a copy of the usage recorded for client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// Prune forgets clients not seen for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for id, u := range rl.clients {
		if u.LastSeen.Before(cutoff) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// RateLimitError is returned when a client exceeds a request rate.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError is returned when a client exhausts a daily quota.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
