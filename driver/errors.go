// ABOUTME: This file defines typed errors shared by all source API drivers
// ABOUTME: Services dispatch on these to decide logging detail, never retry policy

package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Driver error taxonomy. Fetch services treat all of these the same way —
// abort the fetch and fall back to the safe default — but the distinction
// keeps operator logs actionable.
var (
	ErrUnauthorized = errors.New("source API authentication failed")
	ErrRateLimited  = errors.New("source API rate limit exceeded")
	ErrUnavailable  = errors.New("source API temporarily unavailable")
)

// checkStatus maps a non-2xx response to a typed error. The body is drained
// for reuse of the connection but only its length is reported.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, resp.Header.Get("Retry-After"))
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("source API request failed with status %d: %s", resp.StatusCode, string(body))
	}
}

// decodeJSON decodes a response body, wrapping decode failures so callers can
// tell a malformed payload from a transport error.
func decodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode source API response: %w", err)
	}
	return nil
}
