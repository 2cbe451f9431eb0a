// ABOUTME: This file manages the course-platform access token lifecycle
// ABOUTME: Tokens are cached below their advertised lifetime and refreshed via singleflight

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"funnel-dashboard/cache"
	"funnel-dashboard/driver"
)

// DefaultTokenTTL keeps cached tokens comfortably under the platform's
// 60-minute advertised lifetime so a token handed to an in-flight request
// never expires mid-use.
const DefaultTokenTTL = 58 * time.Minute

type tokenFetcher interface {
	FetchToken(ctx context.Context) (*driver.CourseTokenResponse, error)
}

// TokenService hands out a valid course-platform bearer token, refreshing it
// through the credentials grant when the cached one ages out.
type TokenService struct {
	fetcher tokenFetcher
	cache   *cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
}

// NewTokenService creates a token service. ttl <= 0 selects DefaultTokenTTL.
func NewTokenService(fetcher tokenFetcher, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

// Token returns a cached access token, refreshing it when stale. Concurrent
// callers during a refresh share a single upstream request.
func (s *TokenService) Token(ctx context.Context) (string, error) {
	key := cache.Key{Op: "course:token", Args: "singleton"}

	return cache.Lookup(s.cache, key, s.ttl, func() (string, error) {
		v, err, shared := s.group.Do(key.String(), func() (any, error) {
			resp, err := s.fetcher.FetchToken(ctx)
			if err != nil {
				return nil, fmt.Errorf("token refresh failed: %w", err)
			}
			s.logger.Info("course platform token refreshed",
				"expires_in_seconds", resp.ExpiresIn)
			return resp.AccessToken, nil
		})
		if err != nil {
			return "", err
		}
		if shared {
			s.logger.Debug("token refresh deduplicated by singleflight")
		}
		return v.(string), nil
	})
}
