package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(":0")

	rec := httptest.NewRecorder()
	server.handle(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, false, body["bot_active"])

	server.SetBotActive(true)

	rec = httptest.NewRecorder()
	server.handle(rec, httptest.NewRequest("GET", "/", nil))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["bot_active"])
}
