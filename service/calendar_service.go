// ABOUTME: This file builds the content calendar view from the planning sheet feed
// ABOUTME: Free-form status, funnel and date columns are normalized per row

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"funnel-dashboard/cache"
	"funnel-dashboard/metrics"
	"funnel-dashboard/models"
)

// CalendarService aggregates the content planning sheet into a monthly view.
type CalendarService struct {
	api     sheetAPI
	feedURL string
	cache   *cache.Cache
	loc     *time.Location
	logger  *slog.Logger
}

// NewCalendarService creates a content calendar service.
func NewCalendarService(api sheetAPI, feedURL string, c *cache.Cache, loc *time.Location, logger *slog.Logger) *CalendarService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{api: api, feedURL: feedURL, cache: c, loc: loc, logger: logger}
}

// MonthView builds the calendar panel for the month window. A row's date is
// its published date when present, otherwise its scheduled date; rows with no
// usable date in the month are dropped.
func (s *CalendarService) MonthView(ctx context.Context, w models.DateWindow) (models.CalendarPanel, error) {
	key := cache.Key{Op: "calendar:month", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlCalendar, func() (models.CalendarPanel, error) {
		start := time.Now()
		raw, err := s.api.FetchRows(ctx, s.feedURL)
		metrics.ObserveFetch("sheet", "calendar", start, err != nil)
		if err != nil {
			return models.CalendarPanel{}, fmt.Errorf("calendar feed fetch failed: %w", err)
		}

		panel := models.CalendarPanel{}
		courses := make(map[string]*models.CalendarCourseSummary)
		funnel := make(map[string]int)

		for _, entry := range raw {
			date, ok := s.rowDate(entry)
			if !ok || !w.Contains(date) {
				continue
			}

			row := models.CalendarRow{
				Sheet:   stringField(entry, "Sheet"),
				Topic:   stringField(entry, "Topic"),
				Type:    stringField(entry, "Type"),
				Owner:   stringField(entry, "Owner"),
				Status:  normalizeStatus(stringField(entry, "Status")),
				Funnel:  normalizeFunnel(stringField(entry, "Funnel Stage")),
				Date:    date.Format(models.DateFormat),
				LinkYT:  stringField(entry, "YouTube Link"),
				LinkIG:  stringField(entry, "Instagram Link"),
				LinkFB:  stringField(entry, "Facebook Link"),
				Remarks: stringField(entry, "Remarks"),
			}
			panel.Rows = append(panel.Rows, row)
			panel.Total++

			switch row.Status {
			case models.CalendarStatusPublished:
				panel.Published++
			case models.CalendarStatusPending:
				panel.Pending++
			case models.CalendarStatusAssigned:
				panel.Assigned++
			}

			name := row.Sheet
			if name == "" {
				name = "General"
			}
			summary, ok := courses[name]
			if !ok {
				summary = &models.CalendarCourseSummary{Name: name}
				courses[name] = summary
			}
			summary.Total++
			switch row.Status {
			case models.CalendarStatusPublished:
				summary.Published++
			case models.CalendarStatusPending:
				summary.Pending++
			}

			if row.Funnel != "" {
				funnel[row.Funnel]++
			}
		}

		if panel.Total > 0 {
			panel.PublishRate = panel.Published * 100 / panel.Total
		}

		sort.Slice(panel.Rows, func(i, j int) bool { return panel.Rows[i].Date < panel.Rows[j].Date })

		for _, name := range sortedKeys(courses) {
			panel.Courses = append(panel.Courses, *courses[name])
		}
		for _, stage := range models.FunnelStages {
			if n := funnel[stage]; n > 0 {
				panel.Funnel = append(panel.Funnel, models.FunnelStageCount{Stage: stage, Count: n})
			}
		}
		return panel, nil
	})
}

// rowDate resolves a row's effective date: published beats scheduled.
func (s *CalendarService) rowDate(row map[string]any) (time.Time, bool) {
	if t, ok := s.parseSheetDate(stringField(row, "Published Date")); ok {
		return t, true
	}
	return s.parseSheetDate(stringField(row, "Scheduled Date"))
}

// parseSheetDate parses the sheet's day-first date forms alongside ISO.
func (s *CalendarService) parseSheetDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		"02/01/2006",
		"02-01-2006",
		"2 Jan 2006",
		"2-Jan-2006",
		models.DateFormat,
		"2006-01-02T15:04:05.000Z07:00",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.CivilDate(t.In(s.loc), s.loc), true
		}
	}
	s.logger.Debug("skipping calendar row with unparsable date", "value", raw)
	return time.Time{}, false
}

// normalizeStatus folds the sheet's free-form status values into the fixed
// set the panel displays.
func normalizeStatus(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "":
		return models.CalendarStatusUnset
	case strings.Contains(v, "publish"), strings.Contains(v, "live"), strings.Contains(v, "done"):
		return models.CalendarStatusPublished
	case strings.Contains(v, "assign"):
		return models.CalendarStatusAssigned
	default:
		return models.CalendarStatusPending
	}
}

// normalizeFunnel maps free-form stage names onto the canonical stages.
// Unrecognized values return empty and are left out of the stage counts.
func normalizeFunnel(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(v, "aware"), strings.Contains(v, "tofu"):
		return "Awareness"
	case strings.HasPrefix(v, "consider"), strings.Contains(v, "mofu"):
		return "Consideration"
	case strings.HasPrefix(v, "conver"), strings.Contains(v, "bofu"):
		return "Conversion"
	case strings.HasPrefix(v, "retain"), strings.HasPrefix(v, "retention"):
		return "Retention"
	default:
		return ""
	}
}

func sortedKeys(m map[string]*models.CalendarCourseSummary) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
