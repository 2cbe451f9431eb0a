// ABOUTME: This file implements the web-analytics reporting API client
// ABOUTME: Covers ranged reports, per-day breakdowns and the realtime endpoint

package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"funnel-dashboard/utils"
)

// ReportDateRange is an inclusive date range in the reporting API's wire
// format (YYYY-MM-DD).
type ReportDateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ReportRequest describes one reporting query.
type ReportRequest struct {
	DateRanges []ReportDateRange `json:"dateRanges,omitempty"`
	Metrics    []ReportName      `json:"metrics"`
	Dimensions []ReportName      `json:"dimensions,omitempty"`
	OrderBys   []ReportOrderBy   `json:"orderBys,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// ReportName names a metric or dimension.
type ReportName struct {
	Name string `json:"name"`
}

// ReportOrderBy orders report rows by a dimension or metric.
type ReportOrderBy struct {
	Dimension *ReportName `json:"dimension,omitempty"`
	Metric    *ReportName `json:"metric,omitempty"`
	Desc      bool        `json:"desc"`
}

// ReportValue is a single cell of a report row.
type ReportValue struct {
	Value string `json:"value"`
}

// ReportRow is one row of a report response.
type ReportRow struct {
	DimensionValues []ReportValue `json:"dimensionValues"`
	MetricValues    []ReportValue `json:"metricValues"`
}

type reportResponse struct {
	Rows []ReportRow `json:"rows"`
}

// AnalyticsClient talks to the web-analytics reporting API for one property.
type AnalyticsClient struct {
	baseURL    string
	propertyID string
	apiToken   string
	httpClient *http.Client
	limiter    *utils.HostRateLimiter
	logger     *slog.Logger
}

// NewAnalyticsClient creates a reporting API client.
func NewAnalyticsClient(baseURL, propertyID, apiToken string, timeout time.Duration, limiter *utils.HostRateLimiter, logger *slog.Logger) *AnalyticsClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsClient{
		baseURL:    baseURL,
		propertyID: propertyID,
		apiToken:   apiToken,
		httpClient: newHTTPClient(timeout),
		limiter:    limiter,
		logger:     logger,
	}
}

// RunReport executes a ranged report query.
func (c *AnalyticsClient) RunReport(ctx context.Context, req ReportRequest) ([]ReportRow, error) {
	return c.post(ctx, ":runReport", req)
}

// RunRealtimeReport executes a realtime query for the named metrics. Realtime
// queries carry no date ranges.
func (c *AnalyticsClient) RunRealtimeReport(ctx context.Context, metrics []string) ([]ReportRow, error) {
	req := ReportRequest{}
	for _, m := range metrics {
		req.Metrics = append(req.Metrics, ReportName{Name: m})
	}
	return c.post(ctx, ":runRealtimeReport", req)
}

func (c *AnalyticsClient) post(ctx context.Context, method string, body ReportRequest) ([]ReportRow, error) {
	reqURL := fmt.Sprintf("%s/v1/properties/%s%s", c.baseURL, c.propertyID, method)

	if c.limiter != nil {
		if err := c.limiter.WaitForHost(ctx, reqURL); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute report request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("analytics report request rejected",
			"method", method,
			"property_id", c.propertyID,
			"error", err)
		return nil, err
	}

	var parsed reportResponse
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, err
	}

	c.logger.Debug("analytics report completed",
		"method", method,
		"rows", len(parsed.Rows))
	return parsed.Rows, nil
}
