package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnel-dashboard/cache"
	"funnel-dashboard/driver"
)

type stubTokenFetcher struct {
	calls atomic.Int32
	err   error
}

func (s *stubTokenFetcher) FetchToken(ctx context.Context) (*driver.CourseTokenResponse, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &driver.CourseTokenResponse{
		AccessToken: "tok-" + string(rune('0'+n)),
		ExpiresIn:   3600,
	}, nil
}

func TestTokenService_CachesToken(t *testing.T) {
	fetcher := &stubTokenFetcher{}
	svc := NewTokenService(fetcher, cache.New(nil), 0, nil)

	first, err := svc.Token(context.Background())
	require.NoError(t, err)

	second, err := svc.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestTokenService_ExpiredTokenRefetched(t *testing.T) {
	fetcher := &stubTokenFetcher{}
	store := cache.New(nil)
	svc := NewTokenService(fetcher, store, time.Minute, nil)

	base := time.Now()
	store.SetClock(func() time.Time { return base })

	_, err := svc.Token(context.Background())
	require.NoError(t, err)

	store.SetClock(func() time.Time { return base.Add(2 * time.Minute) })

	_, err = svc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestTokenService_FetchFailurePropagates(t *testing.T) {
	fetcher := &stubTokenFetcher{err: errors.New("credentials rejected")}
	svc := NewTokenService(fetcher, cache.New(nil), 0, nil)

	_, err := svc.Token(context.Background())
	assert.ErrorContains(t, err, "token refresh failed")

	// Errors are not cached: the next call retries.
	_, _ = svc.Token(context.Background())
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestTokenService_ConcurrentCallersShareOneFetch(t *testing.T) {
	fetcher := &stubTokenFetcher{}
	svc := NewTokenService(fetcher, cache.New(nil), 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Singleflight collapses the stampede; allow a little slack for callers
	// that miss the cache just after the flight completes.
	assert.LessOrEqual(t, fetcher.calls.Load(), int32(3))
}
