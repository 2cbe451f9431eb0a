package models

// TrendPoint is a single day's count within a window. Series produced by the
// fetch services cover every calendar day of their window with explicit
// zeroes for absent days.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// CumulativePoint is one step of a running-total ("worm") series. Cumulative
// is monotonically non-decreasing across a series.
type CumulativePoint struct {
	Date       string `json:"date"`
	Cumulative int    `json:"cumulative"`
}
