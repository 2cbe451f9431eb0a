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

func TestSheetClient_FetchRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"Student Name": "A Kumar", "Fee Amount": "12,500", "Payment Date": "2026-08-04T00:00:00.000Z"},
			{"Student Name": "B Singh", "Fee Amount": 9000},
		})
	}))
	defer server.Close()

	client := NewSheetClient(5*time.Second, nil, nil)
	rows, err := client.FetchRows(context.Background(), server.URL)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A Kumar", rows[0]["Student Name"])
	assert.Equal(t, float64(9000), rows[1]["Fee Amount"])
}

func TestSheetClient_FetchRows_BadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewSheetClient(5*time.Second, nil, nil)
	_, err := client.FetchRows(context.Background(), server.URL)

	assert.Error(t, err)
}
