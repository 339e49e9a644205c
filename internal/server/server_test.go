package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Run() error   { j.runs++; return j.err }
func (j *fakeJob) Name() string { return j.name }

type fixedRuns int

func (f fixedRuns) Active() int { return int(f) }

func newTestServer(t *testing.T, jobs ...scheduler.Job) (*Server, *database.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(database.Config{Path: filepath.Join(dir, "history.db"), Name: "history"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	return New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		DevMode:   true,
		DataDir:   dir,
		Databases: []*database.DB{db},
		Modules:   []RouteRegistrar{pingModule{}},
		Jobs:      jobs,
		Runs:      fixedRuns(2),
	}), db
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	s, db := newTestServer(t)

	w := serve(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"history": "ok"}, body["databases"])

	require.NoError(t, db.Close())
	w = serve(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	serve(s, http.MethodGet, "/api/ping")
	w := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_api_request_duration_ms")
}

func TestModuleRoutesMountedUnderAPI(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/ping").Code)
}

func TestSystemStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 2, status.ActiveRuns)
	assert.NotEmpty(t, status.GoVersion)
	assert.Greater(t, status.Goroutines, 0)
	assert.GreaterOrEqual(t, status.MemoryPercent, 0.0)
}

func TestDatabaseStats(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/system/databases")
	require.Equal(t, http.StatusOK, w.Code)

	var stats DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats.Databases, 1)
	assert.Equal(t, "history", stats.Databases[0].Name)
	assert.Greater(t, stats.Databases[0].PageCount, int64(0))
}

func TestTriggerJob(t *testing.T) {
	ok := &fakeJob{name: "wal_checkpoint"}
	failing := &fakeJob{name: "import_quotes", err: errors.New("no quotes")}
	s, _ := newTestServer(t, ok, failing)

	w := serve(s, http.MethodPost, "/api/system/jobs/wal_checkpoint")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ok.runs)

	w = serve(s, http.MethodPost, "/api/system/jobs/import_quotes")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, failing.runs)

	w = serve(s, http.MethodPost, "/api/system/jobs/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboard(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/assets/app.js")

	w = serve(s, http.MethodGet, "/assets/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/runs")

	w = serve(s, http.MethodGet, "/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
