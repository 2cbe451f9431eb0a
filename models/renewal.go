package models

// RenewalRow is a renewal record from the spreadsheet feed, reduced to the
// columns the dashboard displays.
type RenewalRow struct {
	StudentName string  `json:"student_name"`
	Course      string  `json:"course"`
	Package     string  `json:"package"`
	LeadOwner   string  `json:"lead_owner"`
	FeeAmount   float64 `json:"fee_amount"`
	PaidDate    string  `json:"paid_date"`
}

// RenewalWindowStats aggregates the renewals dated inside one window.
type RenewalWindowStats struct {
	Count    int
	Revenue  float64
	Rows     []RenewalRow
	Courses  []BreakdownItem
	Packages []BreakdownItem
}
