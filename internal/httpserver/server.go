package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ops-bot/internal/metrics"
	"ops-bot/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogReloader drops cached catalog entries.
type CatalogReloader interface {
	Reload(ctx context.Context) (int, error)
}

// SessionViewer exposes stored chat sessions for debugging.
type SessionViewer interface {
	Session(ctx context.Context, chatID string) (*session.Session, error)
}

// Dependencies exposes core dependencies to handlers that need them.
type Dependencies struct {
	Repository Pinger
	Redis      Pinger
	Catalog    CatalogReloader
	Sessions   SessionViewer
}

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	basePath   string
}

// New creates a new HTTP server listening on addr with health, metrics and
// admin endpoints.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		deps:     deps,
		basePath: normaliseBasePath(basePath),
	}

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mountWithBasePath(server.basePath, server.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/reload-catalog", s.handleReloadCatalog)
	mux.HandleFunc("GET /admin/sessions/{chat}", s.handleSession)
	return mux
}

// Handler returns the routed handler, including the base path prefix.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports ok unless the repository is unreachable. Redis is
// reported but optional.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if s.deps.Repository != nil {
		if err := s.deps.Repository.Ping(ctx); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			body["status"] = "unavailable"
			body["database"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "up"
		}
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(ctx); err != nil {
			body["redis"] = "down"
		} else {
			body["redis"] = "up"
		}
	}
	writeJSONStatus(w, status, body)
}

func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Catalog == nil {
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}

	count, err := s.deps.Catalog.Reload(r.Context())
	if err != nil {
		s.logger.Error("failed reloading catalog", "error", err)
		s.countError()
		http.Error(w, "failed reloading catalog", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"status":   "ok",
		"products": count,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		http.Error(w, "sessions unavailable", http.StatusServiceUnavailable)
		return
	}
	chatID := r.PathValue("chat")
	sess, err := s.deps.Sessions.Session(r.Context(), chatID)
	if err != nil {
		s.logger.Error("failed loading session", "chat_id", chatID, "error", err)
		s.countError()
		http.Error(w, "failed loading session", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sess)
}

func (s *Server) countError() {
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues("http").Inc()
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
