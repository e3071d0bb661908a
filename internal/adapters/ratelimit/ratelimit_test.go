package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"placefinder/internal/adapters/ratelimit"
	"placefinder/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)} }

func allow(t *testing.T, l domain.RateLimiter, key string) domain.RateDecision {
	t.Helper()
	d, err := l.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	return d
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*ratelimit.Redis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })

	l := ratelimit.NewRedisWithClient(c, limit, window)
	clk := newClock()
	l.SetClock(clk.now)
	return l, clk
}

func TestRedis_SlidingWindow(t *testing.T) {
	l, clk := newRedisLimiter(t, 3, 15*time.Second)

	for i, wantRemaining := range []int{2, 1, 0} {
		d := allow(t, l, "1.2.3.4")
		if !d.Allowed || d.Remaining != wantRemaining || d.Limit != 3 {
			t.Fatalf("request %d: unexpected decision %+v", i+1, d)
		}
		clk.advance(time.Second)
	}

	d := allow(t, l, "1.2.3.4")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("4th request must be denied: %+v", d)
	}
	// oldest admitted request was at t0, so the window frees up at t0+15s
	if want := newClock().t.Add(15 * time.Second); !d.Reset.Equal(want) {
		t.Fatalf("reset = %v, want %v", d.Reset, want)
	}

	// other clients are unaffected
	if d := allow(t, l, "5.6.7.8"); !d.Allowed {
		t.Fatalf("separate key must be admitted: %+v", d)
	}

	clk.advance(12 * time.Second) // t0+15s: first request slides out
	if d := allow(t, l, "1.2.3.4"); !d.Allowed {
		t.Fatalf("request after the window slid must be admitted: %+v", d)
	}
}

func TestRedis_ErrorWhenUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer c.Close()
	l := ratelimit.NewRedisWithClient(c, 3, time.Second)
	mr.Close()

	if _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected error with redis down")
	}
}

func TestMemory_TokenBucket(t *testing.T) {
	l := ratelimit.NewMemory(3, 15*time.Second)
	clk := newClock()
	l.SetClock(clk.now)

	for i, wantRemaining := range []int{2, 1, 0} {
		d := allow(t, l, "ip")
		if !d.Allowed || d.Remaining != wantRemaining {
			t.Fatalf("request %d: unexpected decision %+v", i+1, d)
		}
	}
	d := allow(t, l, "ip")
	if d.Allowed || d.Remaining != 0 || d.Limit != 3 {
		t.Fatalf("4th request must be denied: %+v", d)
	}
	if !d.Reset.After(clk.t) {
		t.Fatalf("reset must be in the future: %v", d.Reset)
	}

	if d := allow(t, l, "other-ip"); !d.Allowed {
		t.Fatalf("separate key must be admitted")
	}

	clk.advance(6 * time.Second) // one token refills every 5s
	if d := allow(t, l, "ip"); !d.Allowed {
		t.Fatalf("refilled token must admit: %+v", d)
	}
}
