// ABOUTME: This file pre-populates the cache so first page loads are instant
// ABOUTME: Warms every current-month panel plus the realtime counter

package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"funnel-dashboard/models"
)

// warmupConcurrency bounds concurrent warm-up fetches.
const warmupConcurrency = 10

type panelProvider interface {
	Discover(ctx context.Context, offset int) (models.DiscoverPanel, error)
	Buy(ctx context.Context, offset int) (models.BuyPanel, error)
	Use(ctx context.Context, offset int) (models.UsePanel, error)
	Renew(ctx context.Context, offset int) (models.RenewPanel, error)
	ContentCalendar(ctx context.Context, offset int) (models.CalendarPanel, error)
	ActiveUsers(ctx context.Context) (int, error)
}

// WarmupService fills the cache with the current month's panels ahead of
// user traffic. Failures are logged and ignored: a cold cache is a
// performance problem, not a correctness one.
type WarmupService struct {
	panels panelProvider
	logger *slog.Logger
}

// NewWarmupService creates a cache warm-up service.
func NewWarmupService(panels panelProvider, logger *slog.Logger) *WarmupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmupService{panels: panels, logger: logger}
}

// Warm fetches every current-month panel once, concurrently.
func (s *WarmupService) Warm(ctx context.Context) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)

	warm := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				s.logger.Warn("warm-up fetch failed", "fetch", name, "error", err)
			}
			return nil
		})
	}

	warm("discover", func(ctx context.Context) error {
		_, err := s.panels.Discover(ctx, 0)
		return err
	})
	warm("buy", func(ctx context.Context) error {
		_, err := s.panels.Buy(ctx, 0)
		return err
	})
	warm("use", func(ctx context.Context) error {
		_, err := s.panels.Use(ctx, 0)
		return err
	})
	warm("renew", func(ctx context.Context) error {
		_, err := s.panels.Renew(ctx, 0)
		return err
	})
	warm("calendar", func(ctx context.Context) error {
		_, err := s.panels.ContentCalendar(ctx, 0)
		return err
	})
	warm("active_users", func(ctx context.Context) error {
		_, err := s.panels.ActiveUsers(ctx)
		return err
	})

	g.Wait()
	s.logger.Info("cache warm-up completed", "duration", time.Since(start).String())
}
