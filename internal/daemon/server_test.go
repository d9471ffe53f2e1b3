package daemon

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDevServer_StaticMode(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.DistRoot(), "index.html"), "<html><body>home</body></html>")
	writeFile(t, filepath.Join(cfg.DistRoot(), "styles", "app.css"), "body{}")

	srv, err := NewDevServer(cfg, NewLiveReloadHub(nil), nil, testLogger())
	require.NoError(t, err)
	h := srv.Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<html><body>home"+ScriptTag+"</body></html>", rec.Body.String())

	rec = get(t, h, "/styles/app.css")
	require.Equal(t, "body{}", rec.Body.String())
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = get(t, h, "/livereload.js")
	require.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	require.Equal(t, LiveReloadScript, rec.Body.String())

	require.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestDevServer_MetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	rec := metrics.NewPrometheusRecorder(nil)
	rec.IncRebuildRequest("quiet")

	srv, err := NewDevServer(cfg, NewLiveReloadHub(rec), rec.HTTPHandler(), testLogger())
	require.NoError(t, err)

	res := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "assetbuilder_")
}

func TestDevServer_ProxyMode(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<!doctype html><html><body><h1>app</h1></body></html>")
		case "/api":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer app.Close()

	cfg := testConfig(t)
	cfg.Dev.Proxy = app.URL
	writeFile(t, filepath.Join(cfg.DistRoot(), "scripts", "app.js"), "var a;")

	srv, err := NewDevServer(cfg, NewLiveReloadHub(nil), nil, testLogger())
	require.NoError(t, err)
	require.Equal(t, "/dist/", srv.AssetPrefix())

	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	body := fetch(t, front.URL+"/")
	require.Equal(t, "<!doctype html><html><body><h1>app</h1>"+ScriptTag+"</body></html>", body)
	require.Equal(t, `{"ok":true}`, fetch(t, front.URL+"/api"))
	require.Equal(t, "var a;", fetch(t, front.URL+"/dist/scripts/app.js"))
}

func TestDevServer_ProxyUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dev.Proxy = "http://127.0.0.1:1"
	srv, err := NewDevServer(cfg, NewLiveReloadHub(nil), nil, testLogger())
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, get(t, srv.Handler(), "/").Code)
}

func TestDevServer_InvalidProxy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dev.Proxy = "localhost:8000"
	_, err := NewDevServer(cfg, NewLiveReloadHub(nil), nil, testLogger())
	require.Error(t, err)
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
