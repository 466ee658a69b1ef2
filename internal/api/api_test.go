package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/farsisweep/internal/api/handler"
	"github.com/jon4hz/farsisweep/internal/cache"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/database/mock"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/scheduler"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *Server
	db     *mock.MockDB
	sched  *scheduler.Scheduler
	runs   *atomic.Int32
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()

	db := mock.NewMockDB()
	tr := tracker.New(db, filepath.Join(t.TempDir(), "processed_urls.json"))
	links := cache.NewCrawlCache(&config.CacheConfig{Type: config.CacheTypeMemory, VideoLinkTTL: time.Hour})

	sched, err := scheduler.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	runs := &atomic.Int32{}
	require.NoError(t, sched.AddSingletonJob("crawl", "Crawl", "crawls the site", "1h",
		gocron.DurationJob(time.Hour),
		func(context.Context) error {
			runs.Add(1)
			return nil
		},
		false,
	))
	sched.Start()

	cfg := &config.Config{Listen: "127.0.0.1:0", APIKey: apiKey}
	return &testEnv{
		server: NewWithHandler(cfg, handler.New(db, tr, links, sched)),
		db:     db,
		sched:  sched,
		runs:   runs,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "secret")

	w, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header map[string]string
		want   int
	}{
		{name: "no key configured", key: "", want: http.StatusOK},
		{name: "missing header", key: "secret", want: http.StatusUnauthorized},
		{name: "wrong key", key: "secret", header: map[string]string{APIKeyHeader: "nope"}, want: http.StatusUnauthorized},
		{name: "valid key", key: "secret", header: map[string]string{APIKeyHeader: "secret"}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.key)
			w, _ := env.do(t, http.MethodGet, "/api/jobs", tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	_, err := env.db.UpsertShow(ctx, &models.Show{URL: "https://example.com/tvshows/a/", TitleEn: "A"})
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "database")
	assert.Contains(t, body, "tracker")
	assert.Contains(t, body, "cache")

	env.db.GetStatsError = errors.New("db down")
	w, body = env.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to get stats", body["error"])
}

func TestNewContentIsNotAcknowledged(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	_, err := env.db.UpsertMovie(ctx, &models.Movie{URL: "https://example.com/movies/m/", TitleEn: "M"})
	require.NoError(t, err)

	for range 2 {
		w, body := env.do(t, http.MethodGet, "/api/new", nil)
		require.Equal(t, http.StatusOK, w.Code)
		summary, ok := body["summary"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, summary["movies"])
	}
	assert.Empty(t, env.db.MarkProcessedCalls)
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	_, err := env.db.UpsertShow(ctx, &models.Show{URL: "https://example.com/tvshows/a/", TitleEn: "A"})
	require.NoError(t, err)

	w, body := env.do(t, http.MethodGet, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["shows_count"])
	assert.EqualValues(t, 0, body["movies_count"])

	env.db.BuildSnapshotError = errors.New("boom")
	w, _ = env.do(t, http.MethodGet, "/api/snapshot", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunJob(t *testing.T) {
	env := newTestEnv(t, "")

	w, body := env.do(t, http.MethodPost, "/api/jobs/crawl/run", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "crawl", body["id"])
	require.Eventually(t, func() bool { return env.runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	w, body = env.do(t, http.MethodPost, "/api/jobs/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "job not found", body["error"])
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t, "")

	w, body := env.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs, ok := body["jobs"].([]any)
	require.True(t, ok)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "crawl", job["id"])
}

func TestEnableDisableJob(t *testing.T) {
	env := newTestEnv(t, "")

	w, body := env.do(t, http.MethodPost, "/api/jobs/crawl/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["enabled"])
	job, ok := env.sched.GetJob("crawl")
	require.True(t, ok)
	assert.False(t, job.Enabled)

	w, body = env.do(t, http.MethodPost, "/api/jobs/crawl/enable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["enabled"])
	job, _ = env.sched.GetJob("crawl")
	assert.True(t, job.Enabled)

	for _, action := range []string{"enable", "disable"} {
		w, body = env.do(t, http.MethodPost, "/api/jobs/missing/"+action, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "job not found", body["error"])
	}
}
