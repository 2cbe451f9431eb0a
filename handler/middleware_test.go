package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggedServer(t *testing.T) (*echo.Echo, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	e := echo.New()
	e.Use(RequestLogger(slog.New(slog.NewJSONHandler(buf, nil))))
	e.GET("/v1/panels/discover", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	e.GET("/v1/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/v1/panels/buy", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "source unavailable")
	})
	return e, buf
}

func TestRequestLogger_LogsCompletedRequest(t *testing.T) {
	e, buf := newLoggedServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/discover?offset=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/panels/discover?offset=1", entry["uri"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Contains(t, entry, "latency_ms")
}

func TestRequestLogger_LogsFailedRequestWithError(t *testing.T) {
	e, buf := newLoggedServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panels/buy", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request failed", entry["msg"])
	assert.Equal(t, float64(http.StatusBadGateway), entry["status"])
	assert.Contains(t, entry["error"], "source unavailable")
}

func TestRequestLogger_SkipsHealthProbes(t *testing.T) {
	e, buf := newLoggedServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}
