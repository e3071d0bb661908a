//go:build integration

package ratelimit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"

	"placefinder/internal/adapters/ratelimit"
)

func TestRedis_RealServer(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7.2-alpine",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run redis: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	addr := fmt.Sprintf("127.0.0.1:%s", resource.GetPort("6379/tcp"))
	c := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })
	if err := pool.Retry(func() error { return c.Ping(context.Background()).Err() }); err != nil {
		t.Fatalf("connect redis: %v", err)
	}

	l := ratelimit.NewRedisWithClient(c, 2, time.Minute)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "it")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: %+v, %v", i+1, d, err)
		}
	}
	d, err := l.Allow(ctx, "it")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 || time.Until(d.Reset) <= 0 {
		t.Fatalf("third request must be denied with a future reset: %+v", d)
	}
}
