package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnel-dashboard/cache"
	"funnel-dashboard/models"
)

type stubSheet struct {
	rows  []map[string]any
	err   error
	calls int
}

func (s *stubSheet) FetchRows(ctx context.Context, url string) ([]map[string]any, error) {
	s.calls++
	return s.rows, s.err
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestRenewalService_RenewalsInWindow(t *testing.T) {
	api := &stubSheet{rows: []map[string]any{
		{
			"Student Name": "A Kumar",
			"Course":       " mentorship ",
			"Package":      "Annual",
			"Lead Owner":   "Priya",
			"Fee Amount":   "12,500",
			"Payment Date": "2026-08-04T00:00:00.000Z",
		},
		{
			"Student Name": "B Singh",
			"Course":       "MENTORSHIP",
			"Package":      "Quarterly",
			"Fee Amount":   float64(9000),
			"Payment Date": "2026-08-10T00:00:00.000Z",
		},
		{
			"Student Name": "C Rao",
			"Course":       "Options",
			"Fee Amount":   "5000",
			"Payment Date": "2026-07-20T00:00:00.000Z",
		},
		{
			"Student Name": "No Date",
			"Fee Amount":   "999",
			"Payment Date": "",
		},
	}}
	svc := NewRenewalService(api, "https://example.com/renewals.json", cache.New(nil), kolkata(t), nil)

	stats, err := svc.RenewalsInWindow(context.Background(), testWindow(t))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 21500.0, stats.Revenue, 0.01)

	// Rows are newest first.
	require.Len(t, stats.Rows, 2)
	assert.Equal(t, "B Singh", stats.Rows[0].StudentName)
	assert.Equal(t, "2026-08-10", stats.Rows[0].PaidDate)

	// Inconsistent casing buckets together.
	require.Len(t, stats.Courses, 1)
	assert.Equal(t, models.BreakdownItem{Name: "MENTORSHIP", Count: 2}, stats.Courses[0])
	assert.Len(t, stats.Packages, 2)
}

func TestRenewalService_SharedFeedFetch(t *testing.T) {
	api := &stubSheet{}
	svc := NewRenewalService(api, "https://example.com/renewals.json", cache.New(nil), kolkata(t), nil)
	w := testWindow(t)

	_, err := svc.RenewalsInWindow(context.Background(), w)
	require.NoError(t, err)

	prior := models.DateWindow{Start: w.Start.AddDate(0, -1, 0), End: w.End.AddDate(0, -1, 0)}
	_, err = svc.RenewalsInWindow(context.Background(), prior)
	require.NoError(t, err)

	assert.Equal(t, 1, api.calls, "both windows should share one download")
}

func TestRenewalService_FeedFailurePropagates(t *testing.T) {
	api := &stubSheet{err: errors.New("sheet gone")}
	svc := NewRenewalService(api, "https://example.com/renewals.json", cache.New(nil), kolkata(t), nil)

	_, err := svc.RenewalsInWindow(context.Background(), testWindow(t))
	assert.ErrorContains(t, err, "renewals feed fetch failed")
}

func TestParseFee(t *testing.T) {
	assert.Equal(t, float64(9000), parseFee(float64(9000)))
	assert.Equal(t, float64(12500), parseFee("12,500"))
	assert.Equal(t, float64(12500), parseFee("₹12,500"))
	assert.Zero(t, parseFee("pending"))
	assert.Zero(t, parseFee(nil))
}
