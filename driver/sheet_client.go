// ABOUTME: This file implements the published-spreadsheet feed client
// ABOUTME: Fetches JSON row arrays from share URLs for renewals and the content calendar

package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"funnel-dashboard/utils"
)

// SheetClient fetches published spreadsheet feeds that expose their rows as a
// JSON array of column-name keyed objects.
type SheetClient struct {
	httpClient *http.Client
	limiter    *utils.HostRateLimiter
	logger     *slog.Logger
}

// NewSheetClient creates a spreadsheet feed client.
func NewSheetClient(timeout time.Duration, limiter *utils.HostRateLimiter, logger *slog.Logger) *SheetClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetClient{
		httpClient: newHTTPClient(timeout),
		limiter:    limiter,
		logger:     logger,
	}
}

// FetchRows downloads all rows of the feed at url. Column values arrive as
// strings or numbers depending on how the sheet formats them, so rows are
// returned untyped and parsed by the consuming service.
func (c *SheetClient) FetchRows(ctx context.Context, url string) ([]map[string]any, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitForHost(ctx, url); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("spreadsheet feed request rejected", "error", err)
		return nil, err
	}

	var rows []map[string]any
	if err := decodeJSON(resp, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
