package driver

import (
	"net/http"
	"time"
)

const userAgent = "funnel-dashboard/1.0"

// newHTTPClient builds the tuned client every driver uses. Timeouts are
// per-source (analytics queries are fast, CRM searches are not) but the
// transport shape is shared.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
		},
	}
}
