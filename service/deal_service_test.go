package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnel-dashboard/cache"
	"funnel-dashboard/driver"
	"funnel-dashboard/models"
)

type stubCRM struct {
	stages    []models.PipelineStage
	stagesErr error
	owners    []models.DealOwner
	dealPages map[string]driver.DealPage // keyed by After cursor
	queries   []driver.DealSearchQuery
}

func (s *stubCRM) SearchDeals(ctx context.Context, q driver.DealSearchQuery) (driver.DealPage, error) {
	s.queries = append(s.queries, q)
	page, ok := s.dealPages[q.After]
	if !ok {
		return driver.DealPage{}, nil
	}
	return page, nil
}

func (s *stubCRM) ListOwners(ctx context.Context, after string) (driver.OwnerPage, error) {
	if after != "" {
		return driver.OwnerPage{}, nil
	}
	return driver.OwnerPage{Owners: s.owners}, nil
}

func (s *stubCRM) ListPipelineStages(ctx context.Context) ([]models.PipelineStage, error) {
	return s.stages, s.stagesErr
}

func TestDealService_StageIDs(t *testing.T) {
	tests := []struct {
		name   string
		stages []models.PipelineStage
		err    error
		want   []string
	}{
		{
			name: "keyword match",
			stages: []models.PipelineStage{
				{ID: "s1", Label: "Qualified", Probability: "0.2"},
				{ID: "s2", Label: "Admission Confirmed", Probability: "0.5"},
				{ID: "s3", Label: "Closed Won", Probability: "1.0"},
			},
			want: []string{"s2", "s3"},
		},
		{
			name: "high probability without keyword",
			stages: []models.PipelineStage{
				{ID: "s1", Label: "Final Stage", Probability: "0.95"},
			},
			want: []string{"s1"},
		},
		{
			name: "nothing matches falls back",
			stages: []models.PipelineStage{
				{ID: "s1", Label: "Qualified", Probability: "0.2"},
			},
			want: fallbackStageIDs,
		},
		{
			name: "pipeline fetch failure falls back",
			err:  errors.New("crm down"),
			want: fallbackStageIDs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubCRM{stages: tt.stages, stagesErr: tt.err}
			svc := NewDealService(api, cache.New(nil), nil, 0, nil)

			ids, err := svc.StageIDs(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDealService_Owners(t *testing.T) {
	api := &stubCRM{owners: []models.DealOwner{
		{ID: "1", FirstName: "Priya", LastName: "Nair"},
		{ID: "2", Email: "rahul@example.com"},
	}}
	svc := NewDealService(api, cache.New(nil), nil, 0, nil)

	owners, err := svc.Owners(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Priya Nair", "2": "rahul"}, owners)
}

func TestDealService_DealsInWindow(t *testing.T) {
	api := &stubCRM{
		stages: []models.PipelineStage{{ID: "won", Label: "Closed Won", Probability: "1.0"}},
		owners: []models.DealOwner{
			{ID: "1", FirstName: "Priya", LastName: "Nair"},
			{ID: "2", FirstName: "Test", LastName: "Account"},
		},
		dealPages: map[string]driver.DealPage{
			"": {
				Deals: []models.Deal{
					{ID: "d1", Amount: "45,000", CloseDate: "2026-08-12T10:30:00Z", OwnerID: "1"},
					{ID: "d2", Amount: "5000", CloseDate: "2026-08-12T16:00:00Z", OwnerID: "2"},
				},
				After: "100",
				Total: 3,
			},
			"100": {
				Deals: []models.Deal{
					{ID: "d3", Amount: "not-a-number", CloseDate: "2026-08-03T09:00:00Z", OwnerID: "1"},
				},
			},
		},
	}
	svc := NewDealService(api, cache.New(nil), []string{"Test Account"}, 0, nil)

	stats, err := svc.DealsInWindow(context.Background(), testWindow(t))
	require.NoError(t, err)

	// d2 is excluded by owner; d3's amount is malformed and contributes zero.
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, float64(45000), stats.Revenue)

	require.Len(t, stats.Daily, 15)
	byDate := make(map[string]int)
	for _, p := range stats.Daily {
		byDate[p.Date] = p.Count
	}
	assert.Equal(t, 1, byDate["2026-08-12"])
	assert.Equal(t, 1, byDate["2026-08-03"])
	assert.Equal(t, 0, byDate["2026-08-05"])

	// The search query carries the resolved stage set and epoch-ms bounds.
	require.NotEmpty(t, api.queries)
	assert.Equal(t, []string{"won"}, api.queries[0].StageIDs)
	assert.Less(t, api.queries[0].StartMillis, api.queries[0].EndMillis)
}

func TestParseDealCloseDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "rfc3339", raw: "2026-08-12T10:30:00Z", ok: true},
		{name: "bare date", raw: "2026-08-12", ok: true},
		{name: "epoch millis", raw: "1786530600000", ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "garbage", raw: "soonish", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseDealCloseDate(tt.raw)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseDealAmount(t *testing.T) {
	assert.Equal(t, float64(45000), parseDealAmount("45,000"))
	assert.Equal(t, float64(1250.5), parseDealAmount("1250.50"))
	assert.Zero(t, parseDealAmount(""))
	assert.Zero(t, parseDealAmount("n/a"))
}
