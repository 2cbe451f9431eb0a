// ABOUTME: This file implements the month-to-date comparison window calculator
// ABOUTME: Pure date arithmetic; "today" is injected so tests are deterministic

package domain

import (
	"time"

	"funnel-dashboard/models"
)

// ComputeWindows resolves the month-to-date comparison windows for a
// reference instant shifted back by monthOffset approximate months.
//
// The offset steps back 30 days per month on purpose: the dashboard's month
// picker only needs to land somewhere inside the target month, and 30-day
// stepping is what the product has always done.
//
// The current window runs from the 1st of the base month through now (when
// the base month is the calendar month of now) or through the month's last
// day. The prior window covers the same number of elapsed days in the
// immediately preceding month, clamped to that month's last day — so in
// short months the two windows are deliberately not symmetric.
func ComputeWindows(ref time.Time, monthOffset int, now time.Time) models.ComparisonWindows {
	loc := ref.Location()

	base := ref
	if monthOffset > 0 {
		base = base.AddDate(0, 0, -30*monthOffset)
	}

	curStart := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, loc)

	var curEnd time.Time
	nowLocal := now.In(loc)
	if base.Year() == nowLocal.Year() && base.Month() == nowLocal.Month() {
		curEnd = models.CivilDate(nowLocal, loc)
	} else {
		curEnd = curStart.AddDate(0, 1, -1)
	}

	cur := models.DateWindow{Start: curStart, End: curEnd}
	daysPassed := cur.Days()

	lastOfPrior := curStart.AddDate(0, 0, -1)
	priorStart := time.Date(lastOfPrior.Year(), lastOfPrior.Month(), 1, 0, 0, 0, 0, loc)

	priorEnd := priorStart.AddDate(0, 0, daysPassed)
	if priorEnd.After(lastOfPrior) {
		priorEnd = lastOfPrior
	}

	return models.ComparisonWindows{
		Current:   cur,
		Prior:     models.DateWindow{Start: priorStart, End: priorEnd},
		Reference: base,
	}
}
