package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRMClient_SearchDeals(t *testing.T) {
	var gotBody dealSearchBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/objects/deals/search", r.URL.Path)
		require.Equal(t, "Bearer crm-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"total": 150,
			"results": []map[string]any{
				{
					"id": "901",
					"properties": map[string]string{
						"dealname":         "Acme renewal",
						"amount":           "45000",
						"closedate":        "2026-08-12T10:30:00Z",
						"dealstage":        "closedwon",
						"hubspot_owner_id": "77",
					},
				},
			},
			"paging": map[string]any{"next": map[string]string{"after": "100"}},
		})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "crm-token", 5*time.Second, nil, nil)
	page, err := client.SearchDeals(context.Background(), DealSearchQuery{
		StageIDs:    []string{"closedwon"},
		StartMillis: 1000,
		EndMillis:   2000,
	})

	require.NoError(t, err)
	require.Len(t, page.Deals, 1)
	assert.Equal(t, "Acme renewal", page.Deals[0].Name)
	assert.Equal(t, "45000", page.Deals[0].Amount)
	assert.Equal(t, "77", page.Deals[0].OwnerID)
	assert.Equal(t, "100", page.After)
	assert.Equal(t, 150, page.Total)

	require.Len(t, gotBody.FilterGroups, 1)
	filters := gotBody.FilterGroups[0].Filters
	require.Len(t, filters, 2)
	assert.Equal(t, "dealstage", filters[0].PropertyName)
	assert.Equal(t, []string{"closedwon"}, filters[0].Values)
	assert.Equal(t, "closedate", filters[1].PropertyName)
	assert.Equal(t, int64(1000), *filters[1].Value)
	assert.Equal(t, int64(2000), *filters[1].HighValue)
}

func TestCRMClient_SearchDeals_PassesCursor(t *testing.T) {
	var gotBody dealSearchBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "crm-token", 5*time.Second, nil, nil)
	page, err := client.SearchDeals(context.Background(), DealSearchQuery{
		StageIDs: []string{"closedwon"},
		After:    "200",
	})

	require.NoError(t, err)
	assert.Equal(t, "200", gotBody.After)
	assert.Empty(t, page.After)
	assert.Empty(t, page.Deals)
}

func TestCRMClient_ListOwners(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/owners", r.URL.Path)
		require.Equal(t, "25", r.URL.Query().Get("after"))
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"id": "77", "firstName": "Priya", "lastName": "Nair", "email": "priya@example.com"},
			},
		})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "crm-token", 5*time.Second, nil, nil)
	page, err := client.ListOwners(context.Background(), "25")

	require.NoError(t, err)
	require.Len(t, page.Owners, 1)
	assert.Equal(t, "Priya Nair", page.Owners[0].DisplayName())
	assert.Empty(t, page.After)
}

func TestCRMClient_ListPipelineStages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/pipelines/deals", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id":    "default",
					"label": "Sales Pipeline",
					"stages": []map[string]any{
						{"id": "s1", "label": "Qualified", "metadata": map[string]string{"probability": "0.2"}},
						{"id": "s2", "label": "Closed Won", "metadata": map[string]string{"probability": "1.0"}},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "crm-token", 5*time.Second, nil, nil)
	stages, err := client.ListPipelineStages(context.Background())

	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Closed Won", stages[1].Label)
	assert.Equal(t, "1.0", stages[1].Probability)
	assert.Equal(t, "Sales Pipeline", stages[1].PipelineLabel)
}

func TestCRMClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewCRMClient(server.URL, "crm-token", 5*time.Second, nil, nil)
	_, err := client.SearchDeals(context.Background(), DealSearchQuery{StageIDs: []string{"closedwon"}})

	assert.ErrorIs(t, err, ErrRateLimited)
}
