// ABOUTME: This file defines date window value types for month-to-date comparisons
// ABOUTME: Windows are inclusive civil-date ranges with timezone-aware bounds

package models

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates throughout the service.
const DateFormat = "2006-01-02"

// DateWindow is an inclusive range of calendar days. Start and End are
// normalized to midnight in the report timezone and Start never follows End.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateWindow builds a window from two instants, truncating both to
// calendar days in loc.
func NewDateWindow(start, end time.Time, loc *time.Location) DateWindow {
	return DateWindow{Start: CivilDate(start, loc), End: CivilDate(end, loc)}
}

// CivilDate truncates an instant to midnight of its calendar day in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	tl := t.In(loc)
	return time.Date(tl.Year(), tl.Month(), tl.Day(), 0, 0, 0, 0, loc)
}

// Days returns the number of whole days between Start and End. A one-day
// window yields 0, matching elapsed-days semantics of month-to-date math.
func (w DateWindow) Days() int {
	days := 0
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// Bounds returns the instant range covered by the window: midnight of the
// first day through the last nanosecond of the final day.
func (w DateWindow) Bounds() (time.Time, time.Time) {
	return w.Start, w.End.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Contains reports whether the instant t falls inside the window once
// converted to the window's timezone.
func (w DateWindow) Contains(t time.Time) bool {
	lo, hi := w.Bounds()
	tt := t.In(w.Start.Location())
	return !tt.Before(lo) && !tt.After(hi)
}

// Key renders the window as a stable cache-key fragment.
func (w DateWindow) Key() string {
	return fmt.Sprintf("%s:%s", w.Start.Format(DateFormat), w.End.Format(DateFormat))
}

// String implements fmt.Stringer for log output.
func (w DateWindow) String() string {
	return w.Start.Format(DateFormat) + ".." + w.End.Format(DateFormat)
}

// ComparisonWindows pairs a month-to-date window with its comparable slice of
// the prior calendar month. Prior may be shorter than Current when the prior
// month ran out of days; callers must not assume equal length.
type ComparisonWindows struct {
	Current   DateWindow `json:"current"`
	Prior     DateWindow `json:"prior"`
	Reference time.Time  `json:"reference"`
}

// PriorFullMonth returns the entire calendar month preceding the current
// window, used for prior-period trend charts so the worm line always spans
// the whole month regardless of the clamped KPI window.
func (c ComparisonWindows) PriorFullMonth() DateWindow {
	return DateWindow{
		Start: c.Prior.Start,
		End:   c.Current.Start.AddDate(0, 0, -1),
	}
}
