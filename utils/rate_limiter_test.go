package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForHost_FirstCallImmediate(t *testing.T) {
	h := NewHostRateLimiter(time.Second)

	start := time.Now()
	err := h.WaitForHost(context.Background(), "https://api.example.com/v1/foo")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitForHost_DistinctHostsIndependent(t *testing.T) {
	h := NewHostRateLimiter(time.Hour)

	require.NoError(t, h.WaitForHost(context.Background(), "https://a.example.com/x"))

	// A different host is not throttled by a.example.com's bucket.
	start := time.Now()
	require.NoError(t, h.WaitForHost(context.Background(), "https://b.example.com/x"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitForHost_SecondCallThrottled(t *testing.T) {
	h := NewHostRateLimiter(time.Hour)

	require.NoError(t, h.WaitForHost(context.Background(), "https://a.example.com/x"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.WaitForHost(ctx, "https://a.example.com/y")
	assert.Error(t, err)
}

func TestWaitForHost_ConcurrentSameHostSingleBucket(t *testing.T) {
	h := NewHostRateLimiter(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.WaitForHost(context.Background(), "https://a.example.com/x"))
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.buckets, 1)
}

func TestWaitForHost_MissingHost(t *testing.T) {
	h := NewHostRateLimiter(time.Second)
	assert.Error(t, h.WaitForHost(context.Background(), "/relative/path"))
}
