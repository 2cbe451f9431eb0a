// ABOUTME: This file fetches Discover-stage metrics from the web-analytics API
// ABOUTME: New users, daily trends, channel breakdown and the realtime counter

package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"funnel-dashboard/cache"
	"funnel-dashboard/driver"
	"funnel-dashboard/metrics"
	"funnel-dashboard/models"
)

// topChannelLimit bounds the traffic-source breakdown to the channels that
// fit the panel.
const topChannelLimit = 8

// analyticsDateFormat is the dimension value format of the reporting API
// (yyyymmdd, no separators).
const analyticsDateFormat = "20060102"

type analyticsAPI interface {
	RunReport(ctx context.Context, req driver.ReportRequest) ([]driver.ReportRow, error)
	RunRealtimeReport(ctx context.Context, metrics []string) ([]driver.ReportRow, error)
}

// DiscoverService aggregates web-analytics data for the Discover funnel
// stage.
type DiscoverService struct {
	api    analyticsAPI
	cache  *cache.Cache
	logger *slog.Logger
}

// NewDiscoverService creates an analytics aggregation service.
func NewDiscoverService(api analyticsAPI, c *cache.Cache, logger *slog.Logger) *DiscoverService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoverService{api: api, cache: c, logger: logger}
}

// NewUsers returns the total new-user count inside the window.
func (s *DiscoverService) NewUsers(ctx context.Context, w models.DateWindow) (int, error) {
	key := cache.Key{Op: "analytics:new_users", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (int, error) {
		start := time.Now()
		rows, err := s.api.RunReport(ctx, driver.ReportRequest{
			DateRanges: []driver.ReportDateRange{windowRange(w)},
			Metrics:    []driver.ReportName{{Name: "newUsers"}},
		})
		metrics.ObserveFetch("analytics", "new_users", start, err != nil)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 || len(rows[0].MetricValues) == 0 {
			return 0, nil
		}
		return atoiSafe(rows[0].MetricValues[0].Value), nil
	})
}

// DailyNewUsers returns per-day new-user counts inside the window, keyed by
// models.DateFormat dates. Days without traffic are absent from the map.
func (s *DiscoverService) DailyNewUsers(ctx context.Context, w models.DateWindow) (map[string]int, error) {
	key := cache.Key{Op: "analytics:daily_new_users", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (map[string]int, error) {
		start := time.Now()
		rows, err := s.api.RunReport(ctx, driver.ReportRequest{
			DateRanges: []driver.ReportDateRange{windowRange(w)},
			Metrics:    []driver.ReportName{{Name: "newUsers"}},
			Dimensions: []driver.ReportName{{Name: "date"}},
			OrderBys:   []driver.ReportOrderBy{{Dimension: &driver.ReportName{Name: "date"}}},
		})
		metrics.ObserveFetch("analytics", "daily_new_users", start, err != nil)
		if err != nil {
			return nil, err
		}

		counts := make(map[string]int, len(rows))
		for _, row := range rows {
			if len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
				continue
			}
			day, err := time.Parse(analyticsDateFormat, row.DimensionValues[0].Value)
			if err != nil {
				s.logger.Warn("skipping report row with unparsable date",
					"value", row.DimensionValues[0].Value)
				continue
			}
			counts[day.Format(models.DateFormat)] = atoiSafe(row.MetricValues[0].Value)
		}
		return counts, nil
	})
}

// TrafficSources returns the top acquisition channels by new users inside
// the window, largest first.
func (s *DiscoverService) TrafficSources(ctx context.Context, w models.DateWindow) ([]models.ChannelCount, error) {
	key := cache.Key{Op: "analytics:traffic_sources", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() ([]models.ChannelCount, error) {
		start := time.Now()
		rows, err := s.api.RunReport(ctx, driver.ReportRequest{
			DateRanges: []driver.ReportDateRange{windowRange(w)},
			Metrics:    []driver.ReportName{{Name: "newUsers"}},
			Dimensions: []driver.ReportName{{Name: "sessionDefaultChannelGroup"}},
			OrderBys:   []driver.ReportOrderBy{{Metric: &driver.ReportName{Name: "newUsers"}, Desc: true}},
			Limit:      topChannelLimit,
		})
		metrics.ObserveFetch("analytics", "traffic_sources", start, err != nil)
		if err != nil {
			return nil, err
		}

		var channels []models.ChannelCount
		for _, row := range rows {
			if len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
				continue
			}
			channels = append(channels, models.ChannelCount{
				Channel:  row.DimensionValues[0].Value,
				NewUsers: atoiSafe(row.MetricValues[0].Value),
			})
		}
		return channels, nil
	})
}

// ActiveUsers returns the realtime active-user count.
func (s *DiscoverService) ActiveUsers(ctx context.Context) (int, error) {
	key := cache.Key{Op: "analytics:active_users", Args: "realtime"}
	return cache.Lookup(s.cache, key, ttlRealtime, func() (int, error) {
		start := time.Now()
		rows, err := s.api.RunRealtimeReport(ctx, []string{"activeUsers"})
		metrics.ObserveFetch("analytics", "active_users", start, err != nil)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 || len(rows[0].MetricValues) == 0 {
			return 0, nil
		}
		return atoiSafe(rows[0].MetricValues[0].Value), nil
	})
}

func windowRange(w models.DateWindow) driver.ReportDateRange {
	return driver.ReportDateRange{
		StartDate: w.Start.Format(models.DateFormat),
		EndDate:   w.End.Format(models.DateFormat),
	}
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
