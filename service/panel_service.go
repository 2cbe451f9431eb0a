// ABOUTME: This file orchestrates the four funnel panels from the source services
// ABOUTME: Sources are fetched concurrently; a failed source degrades to zeroes

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"funnel-dashboard/cache"
	"funnel-dashboard/domain"
	"funnel-dashboard/models"
)

// panelConcurrency bounds concurrent source fetches per panel build.
const panelConcurrency = 8

type discoverSource interface {
	NewUsers(ctx context.Context, w models.DateWindow) (int, error)
	DailyNewUsers(ctx context.Context, w models.DateWindow) (map[string]int, error)
	TrafficSources(ctx context.Context, w models.DateWindow) ([]models.ChannelCount, error)
	ActiveUsers(ctx context.Context) (int, error)
}

type dealSource interface {
	DealsInWindow(ctx context.Context, w models.DateWindow) (models.DealWindowStats, error)
}

type courseSource interface {
	NewCustomers(ctx context.Context, w models.DateWindow) (models.CustomerWindowStats, error)
	Sales(ctx context.Context, w models.DateWindow) (PurchaseWindowStats, error)
	ActiveCustomers(ctx context.Context, w models.DateWindow) (int, error)
	Products(ctx context.Context) ([]models.ProductStat, error)
	Offers(ctx context.Context) (map[string]string, error)
}

type renewalSource interface {
	RenewalsInWindow(ctx context.Context, w models.DateWindow) (models.RenewalWindowStats, error)
}

type calendarSource interface {
	MonthView(ctx context.Context, w models.DateWindow) (models.CalendarPanel, error)
}

// PanelService assembles funnel panels from the per-source services. Source
// failures degrade the affected metric to its zero value instead of failing
// the panel: the dashboard must render even when one upstream is down.
type PanelService struct {
	discover discoverSource
	deals    dealSource
	courses  courseSource
	renewals renewalSource
	calendar calendarSource
	cache    *cache.Cache
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewPanelService creates the panel orchestrator. loc is the reporting
// timezone all comparison windows are computed in.
func NewPanelService(
	discover discoverSource,
	deals dealSource,
	courses courseSource,
	renewals renewalSource,
	calendar calendarSource,
	c *cache.Cache,
	loc *time.Location,
	logger *slog.Logger,
) *PanelService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PanelService{
		discover: discover,
		deals:    deals,
		courses:  courses,
		renewals: renewals,
		calendar: calendar,
		cache:    c,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the service's time source. Tests only.
func (s *PanelService) SetClock(now func() time.Time) { s.now = now }

func (s *PanelService) windows(offset int) models.ComparisonWindows {
	now := s.now().In(s.loc)
	return domain.ComputeWindows(now, offset, now)
}

func panelMeta(offset int, win models.ComparisonWindows) models.WindowMeta {
	return models.WindowMeta{
		Offset:       offset,
		Month:        win.Current.Start.Format("January 2006"),
		CurrentStart: win.Current.Start.Format(models.DateFormat),
		CurrentEnd:   win.Current.End.Format(models.DateFormat),
		PriorStart:   win.Prior.Start.Format(models.DateFormat),
		PriorEnd:     win.Prior.End.Format(models.DateFormat),
	}
}

// fetch runs fn in the group and stores its result. On error the destination
// keeps its zero value and the failure is logged, not propagated.
func fetch[T any](g *errgroup.Group, logger *slog.Logger, name string, dst *T, fn func() (T, error)) {
	g.Go(func() error {
		v, err := fn()
		if err != nil {
			logger.Warn("source fetch failed, panel degrades to zero values",
				"fetch", name, "error", err)
			return nil
		}
		*dst = v
		return nil
	})
}

// Discover builds the web-analytics panel for the given month offset.
func (s *PanelService) Discover(ctx context.Context, offset int) (models.DiscoverPanel, error) {
	key := cache.Key{Op: "panel:discover", Args: fmt.Sprintf("offset=%d", offset)}
	return cache.Lookup(s.cache, key, ttlPanel, func() (models.DiscoverPanel, error) {
		win := s.windows(offset)
		priorMonth := win.PriorFullMonth()

		var (
			curUsers, priorUsers int
			curDaily, priorDaily map[string]int
			sources              []models.ChannelCount
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(panelConcurrency)
		fetch(g, s.logger, "new_users_current", &curUsers, func() (int, error) {
			return s.discover.NewUsers(gctx, win.Current)
		})
		fetch(g, s.logger, "new_users_prior", &priorUsers, func() (int, error) {
			return s.discover.NewUsers(gctx, win.Prior)
		})
		fetch(g, s.logger, "daily_new_users_current", &curDaily, func() (map[string]int, error) {
			return s.discover.DailyNewUsers(gctx, win.Current)
		})
		fetch(g, s.logger, "daily_new_users_prior", &priorDaily, func() (map[string]int, error) {
			return s.discover.DailyNewUsers(gctx, priorMonth)
		})
		fetch(g, s.logger, "traffic_sources", &sources, func() ([]models.ChannelCount, error) {
			return s.discover.TrafficSources(gctx, win.Current)
		})
		g.Wait()

		trend := domain.FillDaily(win.Current, curDaily)
		return models.DiscoverPanel{
			Meta:        panelMeta(offset, win),
			NewUsers:    models.NewComparison(float64(curUsers), float64(priorUsers)),
			Trend:       trend,
			WormCurrent: domain.Cumulative(trend),
			WormPrior:   domain.Cumulative(domain.FillDaily(priorMonth, priorDaily)),
			Sources:     sources,
		}, nil
	})
}

// Buy builds the CRM deals panel for the given month offset. The KPI pair
// compares elapsed-day-matched windows while the prior worm line spans the
// whole prior month, so the two lines diverge in length on purpose.
func (s *PanelService) Buy(ctx context.Context, offset int) (models.BuyPanel, error) {
	key := cache.Key{Op: "panel:buy", Args: fmt.Sprintf("offset=%d", offset)}
	return cache.Lookup(s.cache, key, ttlPanel, func() (models.BuyPanel, error) {
		win := s.windows(offset)

		var cur, prior, priorMonth models.DealWindowStats

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(panelConcurrency)
		fetch(g, s.logger, "deals_current", &cur, func() (models.DealWindowStats, error) {
			return s.deals.DealsInWindow(gctx, win.Current)
		})
		fetch(g, s.logger, "deals_prior", &prior, func() (models.DealWindowStats, error) {
			return s.deals.DealsInWindow(gctx, win.Prior)
		})
		fetch(g, s.logger, "deals_prior_month", &priorMonth, func() (models.DealWindowStats, error) {
			return s.deals.DealsInWindow(gctx, win.PriorFullMonth())
		})
		g.Wait()

		return models.BuyPanel{
			Meta:        panelMeta(offset, win),
			Deals:       models.NewComparison(float64(cur.Count), float64(prior.Count)),
			Revenue:     models.NewComparison(cur.Revenue, prior.Revenue),
			WormCurrent: domain.Cumulative(cur.Daily),
			WormPrior:   domain.Cumulative(priorMonth.Daily),
		}, nil
	})
}

// Use builds the course-platform panel for the given month offset.
func (s *PanelService) Use(ctx context.Context, offset int) (models.UsePanel, error) {
	key := cache.Key{Op: "panel:use", Args: fmt.Sprintf("offset=%d", offset)}
	return cache.Lookup(s.cache, key, ttlPanel, func() (models.UsePanel, error) {
		win := s.windows(offset)

		var (
			cur, prior, priorMonth models.CustomerWindowStats
			curSales, priorSales   PurchaseWindowStats
			active                 int
			products               []models.ProductStat
			offers                 map[string]string
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(panelConcurrency)
		fetch(g, s.logger, "new_customers_current", &cur, func() (models.CustomerWindowStats, error) {
			return s.courses.NewCustomers(gctx, win.Current)
		})
		fetch(g, s.logger, "new_customers_prior", &prior, func() (models.CustomerWindowStats, error) {
			return s.courses.NewCustomers(gctx, win.Prior)
		})
		fetch(g, s.logger, "new_customers_prior_month", &priorMonth, func() (models.CustomerWindowStats, error) {
			return s.courses.NewCustomers(gctx, win.PriorFullMonth())
		})
		fetch(g, s.logger, "sales_current", &curSales, func() (PurchaseWindowStats, error) {
			return s.courses.Sales(gctx, win.Current)
		})
		fetch(g, s.logger, "sales_prior", &priorSales, func() (PurchaseWindowStats, error) {
			return s.courses.Sales(gctx, win.Prior)
		})
		fetch(g, s.logger, "active_customers", &active, func() (int, error) {
			return s.courses.ActiveCustomers(gctx, win.Current)
		})
		fetch(g, s.logger, "products", &products, func() ([]models.ProductStat, error) {
			return s.courses.Products(gctx)
		})
		fetch(g, s.logger, "offers", &offers, func() (map[string]string, error) {
			return s.courses.Offers(gctx)
		})
		g.Wait()

		return models.UsePanel{
			Meta:           panelMeta(offset, win),
			TotalCustomers: cur.Total,
			NewCustomers:   models.NewComparison(float64(cur.Count), float64(prior.Count)),
			Revenue:        models.NewComparison(curSales.Revenue, priorSales.Revenue),
			ActiveLearners: active,
			Products:       products,
			Enrollments:    EnrollmentBreakdown(cur.Customers, offers),
			WormCurrent:    domain.Cumulative(cur.Daily),
			WormPrior:      domain.Cumulative(priorMonth.Daily),
		}, nil
	})
}

// Renew builds the renewals panel for the given month offset.
func (s *PanelService) Renew(ctx context.Context, offset int) (models.RenewPanel, error) {
	key := cache.Key{Op: "panel:renew", Args: fmt.Sprintf("offset=%d", offset)}
	return cache.Lookup(s.cache, key, ttlPanel, func() (models.RenewPanel, error) {
		win := s.windows(offset)

		var cur, prior models.RenewalWindowStats

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(panelConcurrency)
		fetch(g, s.logger, "renewals_current", &cur, func() (models.RenewalWindowStats, error) {
			return s.renewals.RenewalsInWindow(gctx, win.Current)
		})
		fetch(g, s.logger, "renewals_prior", &prior, func() (models.RenewalWindowStats, error) {
			return s.renewals.RenewalsInWindow(gctx, win.Prior)
		})
		g.Wait()

		return models.RenewPanel{
			Meta:     panelMeta(offset, win),
			Renewals: models.NewComparison(float64(cur.Count), float64(prior.Count)),
			Revenue:  models.NewComparison(cur.Revenue, prior.Revenue),
			Recent:   cur.Rows,
			CourseBreakdown: models.BreakdownPair{
				Current: cur.Courses,
				Prior:   prior.Courses,
			},
			PackageBreakdown: models.BreakdownPair{
				Current: cur.Packages,
				Prior:   prior.Packages,
			},
		}, nil
	})
}

// ContentCalendar builds the calendar view for the full base month of the
// given offset, not the elapsed-days window.
func (s *PanelService) ContentCalendar(ctx context.Context, offset int) (models.CalendarPanel, error) {
	win := s.windows(offset)
	month := models.DateWindow{
		Start: win.Current.Start,
		End:   win.Current.Start.AddDate(0, 1, -1),
	}

	panel, err := s.calendar.MonthView(ctx, month)
	if err != nil {
		s.logger.Warn("calendar fetch failed, returning empty panel", "error", err)
		panel = models.CalendarPanel{}
	}
	panel.Meta = panelMeta(offset, win)
	return panel, nil
}

// ActiveUsers reports the realtime web-analytics active-user count.
func (s *PanelService) ActiveUsers(ctx context.Context) (int, error) {
	return s.discover.ActiveUsers(ctx)
}
