package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EDDataAPI/eddata-collector/internal/ingest"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{
		Log:                 zerolog.Nop(),
		Port:                0,
		Version:             "test",
		DefaultCacheControl: "no-cache",
		StartedAt:           time.Now().Add(-time.Minute),
		Lock:                ingest.NewWriteLock(),
		Writer:              stats.NewJSONWriter(t.TempDir()),
		ProcessedCount:      func() uint64 { return 42 },
		DedupSize:           func() int { return 7 },
	})
}

func TestHandleHealth_ReportsHealthyWithoutMaintenance(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.Maintenance)
}

func TestHandleHealth_ReportsMaintenanceWhenLockHeld(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Lock.Set()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Maintenance)
	assert.True(t, resp.Maintenance.Running)
}

func TestHandleStatus_IncludesCountersAndCacheControl(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, "frames processed: 42")
	assert.Contains(t, body, "dedup set size: 7")
	assert.Contains(t, body, "maintenance: idle")
	assert.Contains(t, body, "not yet generated")
}

func TestRoutes_RejectNonGetMethods(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
