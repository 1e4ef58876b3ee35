// Package api serves the webhook, the object store and the edit page API.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/set-night/memoirbot/internal/dispatch"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

// Files is the read side of the object store.
type Files interface {
	GetByID(ctx context.Context, fileID string, req domain.Requester) (domain.FileMeta, error)
	Open(ctx context.Context, meta domain.FileMeta) (io.ReadCloser, error)
	List(ctx context.Context, req domain.Requester, limit int) ([]domain.FileMeta, error)
	URLFor(meta domain.FileMeta, req domain.Requester) string
}

// Sessions exposes conversational sessions to the edit page.
type Sessions interface {
	Session(sessionID string) (*domain.Session, error)
	Update(sessionID string, fn func(*domain.Session) error) (*domain.Session, error)
	UpdatePage(sessionID, pageID string, data map[string]any) (*domain.Session, error)
	Render(ctx context.Context, sessionID string) (*dispatch.RenderResult, error)
}

type Writer interface {
	MemoirText(ctx context.Context, textType string, data map[string]any) (string, error)
}

type Deps struct {
	// Webhook receives Telegram updates. Nil in long polling mode.
	Webhook       http.Handler
	WebhookSecret string

	Files     Files
	Sessions  Sessions
	Writer    Writer
	Templates *schema.Registry
	Metrics   http.Handler
	// SamplesDir holds the sample PDFs served under /samples/. Empty disables the route.
	SamplesDir string

	CORSOrigins []string
	// RequestTimeout bounds every request; synchronous renders included.
	RequestTimeout time.Duration
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds and wires all routes.
func NewRouter(d Deps) http.Handler {
	h := &handlers{
		files:     d.Files,
		sessions:  d.Sessions,
		writer:    d.Writer,
		templates: d.Templates,
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.Webhook != nil {
		r.With(secretToken(d.WebhookSecret)).Post("/callback", d.Webhook.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/files/{file_id}", h.serveFile)
		r.Get("/media/{media_type}/{file_id}", h.serveMedia)
		if d.SamplesDir != "" {
			r.Get("/samples/{name}", serveSample(d.SamplesDir))
		}

		r.Route("/api", func(api chi.Router) {
			api.Get("/files", h.listFiles)
			api.Get("/files/{file_id}", h.fileInfo)

			api.Get("/memoir/edit/{session_id}", h.getSession)
			api.Post("/memoir/save/{session_id}", h.saveMemoir)
			api.Post("/memoir/generate-text", h.generateText)

			api.Get("/media/{session_id}", h.getSession)
			api.Patch("/media/{session_id}/pages/{page_id}", h.updatePage)

			api.Post("/sessions/{session_id}/render", h.renderSession)

			api.Get("/templates", h.listTemplates)
			api.Get("/templates/{template_id}", h.getTemplate)
		})
	})
	return r
}

func NewServer(port int, handler http.Handler) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// serveSample serves one PDF from dir. Other names are not found.
func serveSample(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name != path.Base(name) || !strings.EqualFold(path.Ext(name), ".pdf") {
			writeJSON(w, http.StatusNotFound, errorBody{Detail: "File not found"})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		http.ServeFile(w, r, filepath.Join(dir, name))
	}
}

// secretToken rejects webhook calls without the configured secret header.
func secretToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
				slog.Warn("webhook rejected", "remote_addr", r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "Invalid signature"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
