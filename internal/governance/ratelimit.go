package governance

import (
	"sync"
	"time"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// SlidingWindowLimiter enforces a per-key (typically per-tenant) limit on
// the number of requests within a trailing time window, using a deque of
// monotonic timestamps pruned on every check — distinct from a token
// bucket: a sliding window never lets a burst borrow capacity from the
// next window, which is the stricter behavior tenant-facing governance
// limits need.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	events map[string][]time.Time
}

// NewSlidingWindowLimiter constructs a limiter allowing at most limit
// requests per key within window.
func NewSlidingWindowLimiter(window time.Duration, limit int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{window: window, limit: limit, events: make(map[string][]time.Time)}
}

// Allow records a request attempt for key at now, pruning events outside
// the window first. Returns a RateLimited ServiceError carrying the
// precise retry-after duration (time until the oldest in-window event
// ages out) when the window is already at limit.
func (l *SlidingWindowLimiter) Allow(key string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.prune(l.events[key], now)
	if len(events) >= l.limit {
		retryAfter := events[0].Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.events[key] = events
		return ironerrors.RateLimited(int(retryAfter.Seconds() + 0.999))
	}

	events = append(events, now)
	l.events[key] = events
	return nil
}

func (l *SlidingWindowLimiter) prune(events []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append([]time.Time(nil), events[i:]...)
}

// loginBackoffSchedule is the fixed escalation applied after each
// additional failure past the threshold: 30s, 60s, 120s, 240s, 900s.
var loginBackoffSchedule = []time.Duration{
	30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second, 900 * time.Second,
}

// LoginBackoff tracks consecutive authentication failures per (email, IP)
// pair, escalating the required wait after a fixed threshold of failures
// and resetting entirely on a successful login.
type LoginBackoff struct {
	mu        sync.Mutex
	threshold int
	state     map[string]*loginState
}

type loginState struct {
	failures  int
	blockedUntil time.Time
}

// NewLoginBackoff constructs a LoginBackoff that starts escalating after
// threshold consecutive failures.
func NewLoginBackoff(threshold int) *LoginBackoff {
	if threshold <= 0 {
		threshold = 5
	}
	return &LoginBackoff{threshold: threshold, state: make(map[string]*loginState)}
}

func backoffKey(email, ip string) string {
	return email + "|" + ip
}

// CheckAllowed returns a RateLimited error with retry-after seconds if key
// (email, ip) is currently within its backoff window.
func (b *LoginBackoff) CheckAllowed(email, ip string, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[backoffKey(email, ip)]
	if !ok {
		return nil
	}
	if now.Before(s.blockedUntil) {
		retryAfter := s.blockedUntil.Sub(now)
		return ironerrors.RateLimited(int(retryAfter.Seconds() + 0.999))
	}
	return nil
}

// RecordFailure registers a failed login attempt, escalating the block
// window once failures exceed the configured threshold.
func (b *LoginBackoff) RecordFailure(email, ip string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := backoffKey(email, ip)
	s, ok := b.state[key]
	if !ok {
		s = &loginState{}
		b.state[key] = s
	}
	s.failures++

	if s.failures > b.threshold {
		idx := s.failures - b.threshold - 1
		if idx >= len(loginBackoffSchedule) {
			idx = len(loginBackoffSchedule) - 1
		}
		s.blockedUntil = now.Add(loginBackoffSchedule[idx])
	}
}

// RecordSuccess clears all tracked failures for (email, ip).
func (b *LoginBackoff) RecordSuccess(email, ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, backoffKey(email, ip))
}
