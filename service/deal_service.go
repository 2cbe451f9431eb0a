// ABOUTME: This file fetches Buy-stage metrics from the CRM deal search API
// ABOUTME: Resolves winning stages, maps owners and aggregates closed deals per window

package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"funnel-dashboard/cache"
	"funnel-dashboard/domain"
	"funnel-dashboard/driver"
	"funnel-dashboard/metrics"
	"funnel-dashboard/models"
)

// winningStageKeywords mark a pipeline stage label as "deal won" regardless
// of how the CRM admin named it.
var winningStageKeywords = []string{
	"admission confirmed",
	"confirmed",
	"closed won",
	"won",
	"customer",
}

// fallbackStageIDs are used when pipeline metadata yields no winning stage,
// e.g. because the pipelines endpoint is unreachable or stages were renamed
// out of recognition.
var fallbackStageIDs = []string{
	"closedwon",
	"1884422889",
	"2208152296",
	"1955461879",
	"contractsent",
}

type crmAPI interface {
	SearchDeals(ctx context.Context, q driver.DealSearchQuery) (driver.DealPage, error)
	ListOwners(ctx context.Context, after string) (driver.OwnerPage, error)
	ListPipelineStages(ctx context.Context) ([]models.PipelineStage, error)
}

// DealService aggregates CRM deal data for the Buy funnel stage.
type DealService struct {
	api            crmAPI
	cache          *cache.Cache
	excludedOwners map[string]bool // lowercased display names
	maxPages       int
	logger         *slog.Logger
}

// NewDealService creates a CRM aggregation service. excludedOwners lists
// owner display names whose deals are dropped from every aggregate (test
// accounts, internal transfers).
func NewDealService(api crmAPI, c *cache.Cache, excludedOwners []string, maxPages int, logger *slog.Logger) *DealService {
	if logger == nil {
		logger = slog.Default()
	}
	excluded := make(map[string]bool, len(excludedOwners))
	for _, name := range excludedOwners {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			excluded[trimmed] = true
		}
	}
	return &DealService{
		api:            api,
		cache:          c,
		excludedOwners: excluded,
		maxPages:       maxPages,
		logger:         logger,
	}
}

// StageIDs resolves the pipeline stage IDs that count as a won deal. A stage
// qualifies when its label matches a winning keyword or its close probability
// is at least 0.9. An empty resolution falls back to the known historical
// stage IDs rather than an empty filter.
func (s *DealService) StageIDs(ctx context.Context) ([]string, error) {
	key := cache.Key{Op: "crm:stage_ids", Args: "all"}
	return cache.Lookup(s.cache, key, ttlCatalog, func() ([]string, error) {
		start := time.Now()
		stages, err := s.api.ListPipelineStages(ctx)
		metrics.ObserveFetch("crm", "pipeline_stages", start, err != nil)
		if err != nil {
			s.logger.Warn("pipeline listing failed, using fallback stage ids", "error", err)
			return fallbackStageIDs, nil
		}

		var ids []string
		for _, stage := range stages {
			if isWinningStage(stage) {
				ids = append(ids, stage.ID)
			}
		}
		if len(ids) == 0 {
			s.logger.Warn("no winning stages resolved from pipelines, using fallback stage ids",
				"stages_seen", len(stages))
			return fallbackStageIDs, nil
		}
		return ids, nil
	})
}

func isWinningStage(stage models.PipelineStage) bool {
	label := strings.ToLower(stage.Label)
	for _, kw := range winningStageKeywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	if p, err := strconv.ParseFloat(stage.Probability, 64); err == nil && p >= 0.9 {
		return true
	}
	return false
}

// Owners returns the owner ID to display name map.
func (s *DealService) Owners(ctx context.Context) (map[string]string, error) {
	key := cache.Key{Op: "crm:owners", Args: "all"}
	return cache.Lookup(s.cache, key, ttlCatalog, func() (map[string]string, error) {
		start := time.Now()
		collected := domain.CollectAll(ctx, func(ctx context.Context, cursor string) (domain.Page[models.DealOwner], error) {
			page, err := s.api.ListOwners(ctx, cursor)
			if err != nil {
				return domain.Page[models.DealOwner]{}, err
			}
			return domain.Page[models.DealOwner]{Records: page.Owners, NextCursor: page.After}, nil
		}, s.maxPages, s.logger)
		metrics.ObserveFetch("crm", "owners", start, collected.Partial)

		owners := make(map[string]string, len(collected.Records))
		for _, o := range collected.Records {
			owners[o.ID] = o.DisplayName()
		}
		return owners, nil
	})
}

// DealsInWindow aggregates the won deals whose close date falls inside the
// window. The CRM filters the close-date range server-side, so the walk pages
// until the cursor runs out instead of early-exiting. Excluded owners'
// deals are dropped after the fetch.
func (s *DealService) DealsInWindow(ctx context.Context, w models.DateWindow) (models.DealWindowStats, error) {
	key := cache.Key{Op: "crm:deals", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (models.DealWindowStats, error) {
		stageIDs, err := s.StageIDs(ctx)
		if err != nil {
			return models.DealWindowStats{}, err
		}
		owners, err := s.Owners(ctx)
		if err != nil {
			return models.DealWindowStats{}, err
		}

		lo, hi := w.Bounds()
		query := driver.DealSearchQuery{
			StageIDs:    stageIDs,
			StartMillis: lo.UnixMilli(),
			EndMillis:   hi.UnixMilli(),
		}

		start := time.Now()
		collected := domain.CollectAll(ctx, func(ctx context.Context, cursor string) (domain.Page[models.Deal], error) {
			q := query
			q.After = cursor
			page, err := s.api.SearchDeals(ctx, q)
			if err != nil {
				return domain.Page[models.Deal]{}, err
			}
			return domain.Page[models.Deal]{Records: page.Deals, NextCursor: page.After, Total: page.Total}, nil
		}, s.maxPages, s.logger)
		metrics.ObserveFetch("crm", "deals", start, collected.Partial)

		stats := models.DealWindowStats{}
		counts := make(map[string]int)
		for _, deal := range collected.Records {
			if s.excludedOwners[strings.ToLower(owners[deal.OwnerID])] {
				continue
			}
			stats.Count++
			stats.Revenue += parseDealAmount(deal.Amount)
			if closed, ok := parseDealCloseDate(deal.CloseDate); ok {
				day := models.CivilDate(closed.In(w.Start.Location()), w.Start.Location())
				counts[day.Format(models.DateFormat)]++
			}
		}
		stats.Daily = domain.FillDaily(w, counts)
		return stats, nil
	})
}

// parseDealAmount tolerates thousands separators and blanks; a malformed
// amount contributes zero revenue rather than failing the aggregate.
func parseDealAmount(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseDealCloseDate accepts the CRM's timestamp forms: RFC 3339, a bare
// date, or epoch milliseconds.
func parseDealCloseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(models.DateFormat, raw); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
