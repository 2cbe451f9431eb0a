// ABOUTME: This file implements a per-host limiter for outbound vendor calls
// ABOUTME: Each vendor host gets its own token bucket so sources never starve each other

package utils

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter spaces outbound requests per destination host. Buckets are
// created lazily on first use; with a handful of vendor hosts a single mutex
// around the map is plenty.
type HostRateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	buckets  map[string]*rate.Limiter
}

// NewHostRateLimiter creates a limiter allowing one request per interval per
// host, with a burst of one.
func NewHostRateLimiter(interval time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		interval: interval,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// WaitForHost blocks until the host of rawURL may be called again, or ctx is
// done.
func (l *HostRateLimiter) WaitForHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("rate limit %q: no host in URL", rawURL)
	}
	return l.bucketFor(u.Host).Wait(ctx)
}

func (l *HostRateLimiter) bucketFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.interval), 1)
		l.buckets[host] = b
	}
	return b
}
