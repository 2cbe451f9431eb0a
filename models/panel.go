// ABOUTME: This file defines the panel response DTOs returned by the HTTP layer
// ABOUTME: Each funnel stage (Discover/Buy/Use/Renew) aggregates into one panel

package models

// Comparison holds a current-vs-prior metric pair with its delta.
//
// DeltaPct is 0 when Prior is 0. That conflates "no prior data" with "no
// change", but it is the dashboard's long-standing display policy and is
// preserved deliberately.
type Comparison struct {
	Current  float64 `json:"current"`
	Prior    float64 `json:"prior"`
	Delta    float64 `json:"delta"`
	DeltaPct float64 `json:"delta_pct"`
}

// NewComparison computes the delta fields for a current/prior pair.
func NewComparison(current, prior float64) Comparison {
	c := Comparison{Current: current, Prior: prior, Delta: current - prior}
	if prior != 0 {
		c.DeltaPct = c.Delta / prior * 100
	}
	return c
}

// WindowMeta echoes the resolved comparison windows back to the caller.
type WindowMeta struct {
	Offset       int    `json:"offset"`
	Month        string `json:"month"`
	CurrentStart string `json:"current_start"`
	CurrentEnd   string `json:"current_end"`
	PriorStart   string `json:"prior_start"`
	PriorEnd     string `json:"prior_end"`
}

// ChannelCount is one acquisition channel's new-user count.
type ChannelCount struct {
	Channel  string `json:"channel"`
	NewUsers int    `json:"new_users"`
}

// DiscoverPanel is the web-analytics funnel stage.
type DiscoverPanel struct {
	Meta        WindowMeta        `json:"meta"`
	NewUsers    Comparison        `json:"new_users"`
	Trend       []TrendPoint      `json:"trend"`
	WormCurrent []CumulativePoint `json:"worm_current"`
	WormPrior   []CumulativePoint `json:"worm_prior"`
	Sources     []ChannelCount    `json:"sources"`
}

// BuyPanel is the CRM deals funnel stage.
type BuyPanel struct {
	Meta        WindowMeta        `json:"meta"`
	Deals       Comparison        `json:"deals"`
	Revenue     Comparison        `json:"revenue"`
	WormCurrent []CumulativePoint `json:"worm_current"`
	WormPrior   []CumulativePoint `json:"worm_prior"`
}

// ProductStat is a course product with its membership count.
type ProductStat struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// EnrollmentStat is the number of new customers attached to one offer.
type EnrollmentStat struct {
	Course      string `json:"course"`
	Enrollments int    `json:"enrollments"`
}

// UsePanel is the course-platform funnel stage.
type UsePanel struct {
	Meta           WindowMeta        `json:"meta"`
	TotalCustomers int               `json:"total_customers"`
	NewCustomers   Comparison        `json:"new_customers"`
	Revenue        Comparison        `json:"revenue"`
	ActiveLearners int               `json:"active_learners"`
	Products       []ProductStat     `json:"products"`
	Enrollments    []EnrollmentStat  `json:"mtd_enrollments"`
	WormCurrent    []CumulativePoint `json:"worm_current"`
	WormPrior      []CumulativePoint `json:"worm_prior"`
}

// BreakdownItem is one bucket of a categorical breakdown, e.g. renewals per
// course.
type BreakdownItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RenewPanel is the renewals funnel stage fed from the spreadsheet.
type RenewPanel struct {
	Meta             WindowMeta    `json:"meta"`
	Renewals         Comparison    `json:"renewals"`
	Revenue          Comparison    `json:"revenue"`
	Recent           []RenewalRow  `json:"recent_renewals"`
	CourseBreakdown  BreakdownPair `json:"course_breakdown"`
	PackageBreakdown BreakdownPair `json:"package_breakdown"`
}

// BreakdownPair holds a breakdown for both comparison windows.
type BreakdownPair struct {
	Current []BreakdownItem `json:"current"`
	Prior   []BreakdownItem `json:"prior"`
}
