package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/roosearch/internal/config"
	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/service"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Logging.Development = false
	cfg.Logging.Level = "error"
	cfg.Index.SnapshotPath = filepath.Join(t.TempDir(), "index.json.zst")
	cfg.DB.DSN = ""
	cfg.Cache.Addr = ""
	cfg.Storage.GCSBucket = ""
	cfg.PubSub = config.PubSubConfig{}
	return cfg
}

func TestBuildServesHealthAndStats(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st service.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Zero(t, st.DocumentCount)
}

func TestBuildInstallsTracing(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NotNil(t, app.tracer)
	require.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestBuildLoadsSnapshotOnStart(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	src, err := index.New()
	require.NoError(t, err)
	t.Cleanup(src.Close)
	_, err = src.IndexDocument("http://a.test/", "A", "rockets and moons")
	require.NoError(t, err)
	_, err = src.Snapshot(cfg.Index.SnapshotPath)
	require.NoError(t, err)

	cfg.Index.LoadOnStart = true
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.Equal(t, 1, app.Service().Stats().DocumentCount)

	res, err := app.Service().Search(context.Background(), "rockets", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
}

func TestBuildRequiresAPIKeyWhenAuthEnabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildRejectsBadDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DB.DSN = "not a dsn"
	_, err := Build(context.Background(), cfg)
	require.ErrorContains(t, err, "page log init failed")
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}

func freePort(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().(*net.TCPAddr)
	srv.Close()
	return addr.Port
}
