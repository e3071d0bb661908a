package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"placefinder/internal/adapters/observability"
	"placefinder/internal/domain"
)

const sweepAbove = 10_000

// Memory is a per-key token bucket for single-instance deployments. limit requests
// refill evenly over window.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   int
	every   time.Duration
	now     func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 1
	}
	every := window / time.Duration(limit)
	if every <= 0 {
		every = time.Second
	}
	return &Memory{buckets: map[string]*rate.Limiter{}, limit: limit, every: every, now: time.Now}
}

func (m *Memory) Allow(ctx context.Context, key string) (domain.RateDecision, error) {
	now := m.now()

	m.mu.Lock()
	lim, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= sweepAbove {
			m.sweep(now)
		}
		lim = rate.NewLimiter(rate.Every(m.every), m.limit)
		m.buckets[key] = lim
	}
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	m.mu.Unlock()

	if tokens < 0 {
		tokens = 0
	}
	missing := float64(m.limit) - tokens
	d := domain.RateDecision{
		Allowed:   allowed,
		Limit:     m.limit,
		Remaining: int(math.Floor(tokens)),
		Reset:     now.Add(time.Duration(missing * float64(m.every))),
	}
	observability.ObserveRateLimit("memory", allowed)
	return d, nil
}

// sweep drops buckets that have refilled completely; they carry no state.
func (m *Memory) sweep(now time.Time) {
	for k, lim := range m.buckets {
		if lim.TokensAt(now) >= float64(m.limit) {
			delete(m.buckets, k)
		}
	}
}

// SetClock is for tests.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }
