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

func TestAnalyticsClient_RunReport(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody ReportRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{
					"dimensionValues": []map[string]string{{"value": "20260815"}},
					"metricValues":    []map[string]string{{"value": "42"}},
				},
			},
		})
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL, "prop-123", "token-abc", 5*time.Second, nil, nil)
	rows, err := client.RunReport(context.Background(), ReportRequest{
		DateRanges: []ReportDateRange{{StartDate: "2026-08-01", EndDate: "2026-08-15"}},
		Metrics:    []ReportName{{Name: "newUsers"}},
		Dimensions: []ReportName{{Name: "date"}},
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/v1/properties/prop-123:runReport", gotPath)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, "newUsers", gotBody.Metrics[0].Name)
	assert.Equal(t, "20260815", rows[0].DimensionValues[0].Value)
	assert.Equal(t, "42", rows[0].MetricValues[0].Value)
}

func TestAnalyticsClient_RunRealtimeReport(t *testing.T) {
	var gotPath string
	var gotBody ReportRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{"metricValues": []map[string]string{{"value": "17"}}},
			},
		})
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL, "prop-123", "token-abc", 5*time.Second, nil, nil)
	rows, err := client.RunRealtimeReport(context.Background(), []string{"activeUsers"})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/v1/properties/prop-123:runRealtimeReport", gotPath)
	assert.Equal(t, "activeUsers", gotBody.Metrics[0].Name)
	assert.Empty(t, gotBody.DateRanges)
}

func TestAnalyticsClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewAnalyticsClient(server.URL, "prop-123", "bad-token", 5*time.Second, nil, nil)
	_, err := client.RunReport(context.Background(), ReportRequest{Metrics: []ReportName{{Name: "newUsers"}}})

	assert.ErrorIs(t, err, ErrUnauthorized)
}
