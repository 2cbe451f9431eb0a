// ABOUTME: This file fetches Use-stage metrics from the course platform
// ABOUTME: Windowed customer/purchase walks plus product, offer and activity aggregates

package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"funnel-dashboard/cache"
	"funnel-dashboard/domain"
	"funnel-dashboard/driver"
	"funnel-dashboard/metrics"
	"funnel-dashboard/models"
)

type courseAPI interface {
	ListCustomers(ctx context.Context, accessToken, pageURL string) (driver.CustomerPage, error)
	ListPurchases(ctx context.Context, accessToken, pageURL string) (driver.PurchasePage, error)
	ListProducts(ctx context.Context, accessToken, pageURL string) (driver.ProductPage, error)
	ListOffers(ctx context.Context, accessToken, pageURL string) (driver.OfferPage, error)
}

type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// PurchaseWindowStats aggregates the purchases made inside one window.
type PurchaseWindowStats struct {
	Count   int
	Revenue float64
	Daily   []models.TrendPoint
}

// CourseService aggregates course-platform data for the Use funnel stage.
type CourseService struct {
	api      courseAPI
	tokens   tokenProvider
	cache    *cache.Cache
	maxPages int
	logger   *slog.Logger
}

// NewCourseService creates a course-platform aggregation service.
func NewCourseService(api courseAPI, tokens tokenProvider, c *cache.Cache, maxPages int, logger *slog.Logger) *CourseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseService{
		api:      api,
		tokens:   tokens,
		cache:    c,
		maxPages: maxPages,
		logger:   logger,
	}
}

// NewCustomers walks the customer listing newest-updated-first and keeps
// those created inside the window. The kept customers carry their offer IDs
// so callers can build enrollment breakdowns without a second walk.
func (s *CourseService) NewCustomers(ctx context.Context, w models.DateWindow) (models.CustomerWindowStats, error) {
	key := cache.Key{Op: "course:new_customers", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (models.CustomerWindowStats, error) {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return models.CustomerWindowStats{}, err
		}

		start := time.Now()
		collected := domain.CollectWindowed(ctx, w,
			func(ctx context.Context, cursor string) (domain.Page[models.Customer], error) {
				page, err := s.api.ListCustomers(ctx, token, cursor)
				if err != nil {
					return domain.Page[models.Customer]{}, err
				}
				return domain.Page[models.Customer]{Records: page.Customers, NextCursor: page.NextURL, Total: page.Total}, nil
			},
			func(c models.Customer) (time.Time, bool) { return parsePlatformTime(c.CreatedAt) },
			func(c models.Customer) (time.Time, bool) { return parsePlatformTime(c.UpdatedAt) },
			s.maxPages, s.logger)
		metrics.ObserveFetch("course", "new_customers", start, collected.Partial)

		stats := models.CustomerWindowStats{
			Count:     len(collected.Records),
			Total:     collected.Total,
			Customers: collected.Records,
		}
		counts := make(map[string]int)
		loc := w.Start.Location()
		for _, c := range collected.Records {
			if created, ok := parsePlatformTime(c.CreatedAt); ok {
				counts[models.CivilDate(created.In(loc), loc).Format(models.DateFormat)]++
			}
		}
		stats.Daily = domain.FillDaily(w, counts)
		return stats, nil
	})
}

// Sales walks the purchase listing newest-first and totals the purchases made
// inside the window.
func (s *CourseService) Sales(ctx context.Context, w models.DateWindow) (PurchaseWindowStats, error) {
	key := cache.Key{Op: "course:sales", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (PurchaseWindowStats, error) {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return PurchaseWindowStats{}, err
		}

		start := time.Now()
		created := func(p models.Purchase) (time.Time, bool) { return parsePlatformTime(p.CreatedAt) }
		collected := domain.CollectWindowed(ctx, w,
			func(ctx context.Context, cursor string) (domain.Page[models.Purchase], error) {
				page, err := s.api.ListPurchases(ctx, token, cursor)
				if err != nil {
					return domain.Page[models.Purchase]{}, err
				}
				return domain.Page[models.Purchase]{Records: page.Purchases, NextCursor: page.NextURL, Total: page.Total}, nil
			},
			created, created, s.maxPages, s.logger)
		metrics.ObserveFetch("course", "sales", start, collected.Partial)

		stats := PurchaseWindowStats{Count: len(collected.Records)}
		counts := make(map[string]int)
		loc := w.Start.Location()
		for _, p := range collected.Records {
			stats.Revenue += float64(p.AmountCents) / 100
			if ts, ok := parsePlatformTime(p.CreatedAt); ok {
				counts[models.CivilDate(ts.In(loc), loc).Format(models.DateFormat)]++
			}
		}
		stats.Daily = domain.FillDaily(w, counts)
		return stats, nil
	})
}

// ActiveCustomers counts customers whose last platform request falls inside
// the window. The listing is ordered by updated_at, which moves whenever
// last_request_at does, so the early-exit walk still terminates correctly.
func (s *CourseService) ActiveCustomers(ctx context.Context, w models.DateWindow) (int, error) {
	key := cache.Key{Op: "course:active_customers", Args: w.Key()}
	return cache.Lookup(s.cache, key, ttlWindow, func() (int, error) {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return 0, err
		}

		start := time.Now()
		collected := domain.CollectWindowed(ctx, w,
			func(ctx context.Context, cursor string) (domain.Page[models.Customer], error) {
				page, err := s.api.ListCustomers(ctx, token, cursor)
				if err != nil {
					return domain.Page[models.Customer]{}, err
				}
				return domain.Page[models.Customer]{Records: page.Customers, NextCursor: page.NextURL, Total: page.Total}, nil
			},
			func(c models.Customer) (time.Time, bool) { return parsePlatformTime(c.LastRequestAt) },
			func(c models.Customer) (time.Time, bool) { return parsePlatformTime(c.UpdatedAt) },
			s.maxPages, s.logger)
		metrics.ObserveFetch("course", "active_customers", start, collected.Partial)

		return len(collected.Records), nil
	})
}

// Products returns the product catalog sorted by member count, largest first.
func (s *CourseService) Products(ctx context.Context) ([]models.ProductStat, error) {
	key := cache.Key{Op: "course:products", Args: "all"}
	return cache.Lookup(s.cache, key, ttlCatalog, func() ([]models.ProductStat, error) {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		collected := domain.CollectAll(ctx, func(ctx context.Context, cursor string) (domain.Page[models.Product], error) {
			page, err := s.api.ListProducts(ctx, token, cursor)
			if err != nil {
				return domain.Page[models.Product]{}, err
			}
			return domain.Page[models.Product]{Records: page.Products, NextCursor: page.NextURL}, nil
		}, s.maxPages, s.logger)
		metrics.ObserveFetch("course", "products", start, collected.Partial)

		stats := make([]models.ProductStat, 0, len(collected.Records))
		for _, p := range collected.Records {
			stats = append(stats, models.ProductStat{Name: p.Title, Members: p.Members})
		}
		sort.SliceStable(stats, func(i, j int) bool { return stats[i].Members > stats[j].Members })
		return stats, nil
	})
}

// Offers returns the offer ID to title map.
func (s *CourseService) Offers(ctx context.Context) (map[string]string, error) {
	key := cache.Key{Op: "course:offers", Args: "all"}
	return cache.Lookup(s.cache, key, ttlCatalog, func() (map[string]string, error) {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		offers := make(map[string]string)
		limit := s.maxPages
		if limit <= 0 {
			limit = domain.DefaultMaxPages
		}
		cursor := ""
		for pages := 0; pages < limit; pages++ {
			page, err := s.api.ListOffers(ctx, token, cursor)
			if err != nil {
				s.logger.Warn("offer listing failed, returning partial map",
					"offers_collected", len(offers), "error", err)
				metrics.ObserveFetch("course", "offers", start, true)
				return offers, nil
			}
			for id, title := range page.Offers {
				offers[id] = title
			}
			if page.NextURL == "" || len(page.Offers) == 0 {
				break
			}
			cursor = page.NextURL
		}
		metrics.ObserveFetch("course", "offers", start, false)
		return offers, nil
	})
}

// EnrollmentBreakdown counts window customers per offer title, largest
// first. Offers missing from the map keep their raw ID so the row is still
// attributable.
func EnrollmentBreakdown(customers []models.Customer, offers map[string]string) []models.EnrollmentStat {
	counts := make(map[string]int)
	for _, c := range customers {
		for _, offerID := range c.OfferIDs {
			title := offers[offerID]
			if title == "" {
				title = offerID
			}
			counts[title]++
		}
	}

	stats := make([]models.EnrollmentStat, 0, len(counts))
	for course, n := range counts {
		stats = append(stats, models.EnrollmentStat{Course: course, Enrollments: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Enrollments != stats[j].Enrollments {
			return stats[i].Enrollments > stats[j].Enrollments
		}
		return stats[i].Course < stats[j].Course
	})
	return stats
}

// parsePlatformTime parses the platform's RFC 3339 timestamps, tolerating
// fractional seconds.
func parsePlatformTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000Z07:00", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
