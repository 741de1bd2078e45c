// Package server is weft's development server: static files from the build
// root, a live-reload websocket, and a small status page.
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/graph"
	"github.com/conneroisu/weft/internal/logging"
	"github.com/conneroisu/weft/internal/websocket"
)

// Reserved endpoints.
const (
	StatusPath = "/__weft/status"
	HealthPath = "/__weft/health"
)

const shutdownTimeout = 5 * time.Second

// Server serves the build root with live reload.
type Server struct {
	addr      string
	files     afero.Fs
	hub       *websocket.Hub
	report    *graph.Report
	metrics   *build.Metrics
	hotReload bool
	logger    logging.Logger
}

// Options carries the collaborators a Server needs besides the config.
type Options struct {
	FS      afero.Fs
	Hub     *websocket.Hub
	Report  *graph.Report
	Metrics *build.Metrics
	Logger  logging.Logger
}

// New creates a server over cfg's build root.
func New(cfg *config.Config, opts Options) *Server {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Server{
		addr:      cfg.Address(),
		files:     afero.NewBasePathFs(opts.FS, cfg.Paths.BuildRoot),
		hub:       opts.Hub,
		report:    opts.Report,
		metrics:   opts.Metrics,
		hotReload: cfg.Development.HotReload && opts.Hub != nil,
		logger:    opts.Logger.WithComponent("server"),
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.hotReload {
		mux.Handle(WebSocketPath, s.hub)
	}
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mux.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info(ctx, "Development server listening", "url", "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked, so http.Server.Shutdown does not
	// wait for them; close them first.
	if s.hub != nil {
		_ = s.hub.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info(shutdownCtx, "Development server stopped")
	return nil
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if hidden(name) {
		http.NotFound(w, r)
		return
	}

	info, err := s.files.Stat(name)
	if err == nil && info.IsDir() {
		name = path.Join(name, "index.html")
		info, err = s.files.Stat(name)
	}
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn(r.Context(), err, "Cannot stat file", "path", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if s.hotReload && path.Ext(name) == ".html" {
		data, err := afero.ReadFile(s.files, name)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(InjectScript(data, reloadScript)))
		return
	}

	f, err := s.files.Open(name)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// hidden reports whether any segment of p starts with a dot. The staging
// directory lives under such a segment.
func hidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
