package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// DevServer serves the dist tree, or proxies the application, with live
// reload injected into HTML pages.
type DevServer struct {
	cfg     *config.Config
	hub     *LiveReloadHub
	metrics http.Handler
	logger  *slog.Logger
	handler http.Handler
}

// NewDevServer builds the handler tree. metricsHandler may be nil.
func NewDevServer(cfg *config.Config, hub *LiveReloadHub, metricsHandler http.Handler, logger *slog.Logger) (*DevServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DevServer{cfg: cfg, hub: hub, metrics: metricsHandler, logger: logger}
	h, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = h
	return s, nil
}

// AssetPrefix is the URL path the dist tree is mounted on in proxy mode.
func (s *DevServer) AssetPrefix() string {
	return "/" + filepath.Base(s.cfg.DistRoot()) + "/"
}

// Handler returns the root handler.
func (s *DevServer) Handler() http.Handler { return s.handler }

func (s *DevServer) routes() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(LiveReloadScript)); err != nil {
			s.logger.Debug("Failed to write livereload script", logfields.Error(err))
		}
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	files := noCache(http.FileServer(http.Dir(s.cfg.DistRoot())))
	if s.cfg.Dev.Proxy == "" {
		mux.Handle("/", injectLiveReload(files))
		return mux, nil
	}

	target, err := url.Parse(s.cfg.Dev.Proxy)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, ferrors.ConfigError("invalid dev proxy url").
			WithContext("proxy", s.cfg.Dev.Proxy).
			WithCause(err).
			Build()
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Injection needs a plain body.
			pr.Out.Header.Del("Accept-Encoding")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("Proxy request failed", logfields.Path(r.URL.Path), logfields.Error(err))
			http.Error(w, "application unavailable: "+err.Error(), http.StatusBadGateway)
		},
	}
	prefix := s.AssetPrefix()
	mux.Handle(prefix, http.StripPrefix(strings.TrimSuffix(prefix, "/"), files))
	mux.Handle("/", injectLiveReload(proxy))
	return mux, nil
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// Serve runs the server on ln until ctx ends, then shuts it down.
func (s *DevServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("Dev server listening", slog.String("addr", ln.Addr().String()), slog.String("proxy", s.cfg.Dev.Proxy))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.DaemonError("dev server failed").WithCause(err).Build()
	case <-ctx.Done():
	}

	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Dev server shutdown error", logfields.Error(err))
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *DevServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Dev.Listen)
	if err != nil {
		return ferrors.DaemonError("listen for dev server").
			WithContext("addr", s.cfg.Dev.Listen).
			WithCause(err).
			Build()
	}
	return s.Serve(ctx, ln)
}
