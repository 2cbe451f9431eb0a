// ABOUTME: This file builds zero-filled daily series and cumulative worm data
// ABOUTME: Pure transforms over per-day counts produced by the fetch services

package domain

import (
	"funnel-dashboard/models"
)

// FillDaily expands a sparse date→count map into one TrendPoint per calendar
// day of the window, ascending, with zeroes for absent dates. Map keys use
// models.DateFormat. This guarantees trend series have no gaps regardless of
// how sparse the source data is.
func FillDaily(w models.DateWindow, counts map[string]int) []models.TrendPoint {
	var series []models.TrendPoint
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		key := d.Format(models.DateFormat)
		series = append(series, models.TrendPoint{Date: key, Count: counts[key]})
	}
	return series
}

// Cumulative converts a daily series into its running total. The input must
// already be zero-filled and date-ordered (see FillDaily). Empty input yields
// an empty series, not an error.
func Cumulative(series []models.TrendPoint) []models.CumulativePoint {
	if len(series) == 0 {
		return nil
	}
	out := make([]models.CumulativePoint, 0, len(series))
	running := 0
	for _, p := range series {
		running += p.Count
		out = append(out, models.CumulativePoint{Date: p.Date, Cumulative: running})
	}
	return out
}
