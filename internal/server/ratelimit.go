package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas using
// fixed minute, hour and UTC-day windows. A zero limit disables that check.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage of one client in the current windows.
type ClientUsage struct {
	Minute      Window
	Hour        Window
	Day         Window
	DataToday   int64
	LastRequest time.Time
}

// Window counts requests since Start.
type Window struct {
	Start time.Time
	Count int
}

// roll restarts w when t has left the window that began at w.Start.
func (w *Window) roll(t time.Time, size time.Duration) bool {
	start := t.Truncate(size)
	if w.Start.Equal(start) {
		return false
	}
	w.Start, w.Count = start, 0
	return true
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits one request of dataSize bytes from client, or
// returns a *RateLimitError or *QuotaExceededError. Rejected requests are
// not counted.
func (rl *RateLimiter) CheckRateLimit(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now().UTC()
	u, ok := rl.clients[client]
	if !ok {
		u = &ClientUsage{}
		rl.clients[client] = u
	}
	u.Minute.roll(now, time.Minute)
	u.Hour.roll(now, time.Hour)
	if u.Day.roll(now, 24*time.Hour) {
		u.DataToday = 0
	}

	if rl.requestsPerMinute > 0 && u.Minute.Count >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.Minute.Start.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.Hour.Count >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.Hour.Start.Add(time.Hour).Sub(now)}
	}

	resets := u.Day.Start.Add(24 * time.Hour)
	if rl.maxRequestsPerDay > 0 && u.Day.Count >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.Day.Count), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.DataToday, Resets: resets}
	}

	u.Minute.Count++
	u.Hour.Count++
	u.Day.Count++
	u.DataToday += dataSize
	u.LastRequest = now
	return nil
}

// Usage returns a copy of client's usage, or the zero value for unknown
// clients.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
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
