// ABOUTME: This file is the entrypoint wiring config, clients, services and HTTP
// ABOUTME: Starts the echo server plus the cache warm-up job, stops both gracefully

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"funnel-dashboard/cache"
	"funnel-dashboard/config"
	"funnel-dashboard/driver"
	"funnel-dashboard/handler"
	"funnel-dashboard/job"
	"funnel-dashboard/service"
	"funnel-dashboard/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("funnel dashboard starting",
		"service", cfg.ServiceName,
		"port", cfg.HTTPPort,
		"timezone", cfg.ReportTimezone,
		"analytics_configured", cfg.Analytics.Configured(),
		"crm_configured", cfg.CRM.Configured(),
		"course_configured", cfg.Course.Configured())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	store := cache.New(logger)
	limiter := utils.NewHostRateLimiter(cfg.APIRateInterval)

	analyticsClient := driver.NewAnalyticsClient(
		cfg.Analytics.BaseURL, cfg.Analytics.PropertyID, cfg.Analytics.APIToken,
		cfg.RequestTimeout, limiter, logger)
	crmClient := driver.NewCRMClient(
		cfg.CRM.BaseURL, cfg.CRM.Token,
		cfg.RequestTimeout, limiter, logger)
	courseClient := driver.NewCourseClient(
		cfg.Course.BaseURL, cfg.Course.ClientID, cfg.Course.ClientSecret,
		cfg.RequestTimeout, limiter, logger)
	sheetClient := driver.NewSheetClient(cfg.RequestTimeout, limiter, logger)

	tokens := service.NewTokenService(courseClient, store, cfg.Course.TokenTTL, logger)
	discover := service.NewDiscoverService(analyticsClient, store, logger)
	deals := service.NewDealService(crmClient, store, cfg.CRM.ExcludedOwners, cfg.MaxPages, logger)
	courses := service.NewCourseService(courseClient, tokens, store, cfg.MaxPages, logger)
	renewals := service.NewRenewalService(sheetClient, cfg.Sheets.RenewalsURL, store, loc, logger)
	calendar := service.NewCalendarService(sheetClient, cfg.Sheets.CalendarURL, store, loc, logger)
	panels := service.NewPanelService(discover, deals, courses, renewals, calendar, store, loc, logger)

	scheduler := job.NewScheduler(logger)
	if cfg.Warmup.Enabled {
		warmup := service.NewWarmupService(panels, logger)
		scheduler.Start(ctx, job.Job{
			Name:     "cache-warmup",
			Delay:    cfg.Warmup.Delay,
			Interval: cfg.Warmup.Interval,
			Timeout:  cfg.Warmup.Interval,
			Fn:       warmup.Warm,
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(handler.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))

	handler.NewPanelHandler(panels, store, cfg.AdminToken, logger).Register(e)

	go func() {
		logger.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	scheduler.Wait()
	logger.Info("funnel dashboard stopped")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
