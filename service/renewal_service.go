// ABOUTME: This file fetches Renew-stage metrics from the renewals spreadsheet feed
// ABOUTME: Rows are parsed leniently; malformed rows are skipped, never fatal

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"funnel-dashboard/cache"
	"funnel-dashboard/metrics"
	"funnel-dashboard/models"
)

// recentRenewalLimit caps the "recent renewals" list on the panel.
const recentRenewalLimit = 10

type sheetAPI interface {
	FetchRows(ctx context.Context, url string) ([]map[string]any, error)
}

// RenewalService aggregates the renewals spreadsheet for the Renew funnel
// stage.
type RenewalService struct {
	api     sheetAPI
	feedURL string
	cache   *cache.Cache
	loc     *time.Location
	logger  *slog.Logger
}

// NewRenewalService creates a renewals aggregation service. loc is the
// reporting timezone the feed's UTC payment timestamps are converted into
// before date comparison.
func NewRenewalService(api sheetAPI, feedURL string, c *cache.Cache, loc *time.Location, logger *slog.Logger) *RenewalService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RenewalService{api: api, feedURL: feedURL, cache: c, loc: loc, logger: logger}
}

// RenewalsInWindow aggregates the renewals whose payment date falls inside
// the window. Rows come back newest first; course and package breakdowns are
// sorted by count.
func (s *RenewalService) RenewalsInWindow(ctx context.Context, w models.DateWindow) (models.RenewalWindowStats, error) {
	key := cache.Key{Op: "renewals:window", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (models.RenewalWindowStats, error) {
		rows, err := s.rows(ctx)
		if err != nil {
			return models.RenewalWindowStats{}, err
		}

		stats := models.RenewalWindowStats{}
		courses := make(map[string]int)
		packages := make(map[string]int)
		for _, raw := range rows {
			paid, ok := s.parsePaymentDate(stringField(raw, "Payment Date"))
			if !ok || !w.Contains(paid) {
				continue
			}
			row := models.RenewalRow{
				StudentName: stringField(raw, "Student Name"),
				Course:      normalizeLabel(stringField(raw, "Course")),
				Package:     normalizeLabel(stringField(raw, "Package")),
				LeadOwner:   stringField(raw, "Lead Owner"),
				FeeAmount:   parseFee(raw["Fee Amount"]),
				PaidDate:    paid.Format(models.DateFormat),
			}
			stats.Count++
			stats.Revenue += row.FeeAmount
			stats.Rows = append(stats.Rows, row)
			if row.Course != "" {
				courses[row.Course]++
			}
			if row.Package != "" {
				packages[row.Package]++
			}
		}

		sort.Slice(stats.Rows, func(i, j int) bool { return stats.Rows[i].PaidDate > stats.Rows[j].PaidDate })
		if len(stats.Rows) > recentRenewalLimit {
			stats.Rows = stats.Rows[:recentRenewalLimit]
		}
		stats.Courses = sortedBreakdown(courses)
		stats.Packages = sortedBreakdown(packages)
		return stats, nil
	})
}

// rows fetches and caches the full feed once per window TTL so the current
// and prior windows share a single download.
func (s *RenewalService) rows(ctx context.Context) ([]map[string]any, error) {
	key := cache.Key{Op: "renewals:rows", Args: s.feedURL}
	return cache.Lookup(s.cache, key, ttlWindow, func() ([]map[string]any, error) {
		start := time.Now()
		rows, err := s.api.FetchRows(ctx, s.feedURL)
		metrics.ObserveFetch("sheet", "renewals", start, err != nil)
		if err != nil {
			return nil, fmt.Errorf("renewals feed fetch failed: %w", err)
		}
		return rows, nil
	})
}

// parsePaymentDate converts the feed's UTC timestamp into a civil date in the
// reporting timezone. The sheet exports midnight-UTC timestamps for what are
// really local dates, so conversion must happen before truncation.
func (s *RenewalService) parsePaymentDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.000Z07:00",
		time.RFC3339,
		models.DateFormat,
		"02/01/2006",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.CivilDate(t.In(s.loc), s.loc), true
		}
	}
	s.logger.Debug("skipping renewal row with unparsable payment date", "value", raw)
	return time.Time{}, false
}

func stringField(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// parseFee accepts numbers or strings with thousands separators or currency
// prefixes.
func parseFee(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		cleaned := strings.TrimSpace(t)
		cleaned = strings.TrimPrefix(cleaned, "₹")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		f, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// normalizeLabel collapses the sheet's inconsistent casing so "Mentorship"
// and "MENTORSHIP " bucket together.
func normalizeLabel(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func sortedBreakdown(counts map[string]int) []models.BreakdownItem {
	items := make([]models.BreakdownItem, 0, len(counts))
	for name, n := range counts {
		items = append(items, models.BreakdownItem{Name: name, Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	return items
}
