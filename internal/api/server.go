// Package api exposes the document, schema and extraction operations over
// HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/extractiq/internal/documents"
	"github.com/dharsanguruparan/extractiq/internal/extraction"
	"github.com/dharsanguruparan/extractiq/internal/metrics"
	"github.com/dharsanguruparan/extractiq/internal/schemas"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Deps are the services behind the routes. Metrics may be nil.
type Deps struct {
	Documents  *documents.Service
	Schemas    *schemas.Service
	Extraction *extraction.Gateway
	Metrics    *metrics.HTTPServerMetrics
	Logger     *slog.Logger
}

// Server exposes HTTP endpoints for uploads, schemas and extraction.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	maxUploadBytes  int64

	docs    *documents.Service
	schemas *schemas.Service
	extract *extraction.Gateway
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger

	handler http.Handler
	server  *http.Server
	once    sync.Once
}

// Options carries the listener settings.
type Options struct {
	Address         string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// New constructs a Server.
func New(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		addr:            opts.Address,
		shutdownTimeout: opts.ShutdownTimeout,
		maxUploadBytes:  opts.MaxUploadBytes,
		docs:            deps.Documents,
		schemas:         deps.Schemas,
		extract:         deps.Extraction,
		metrics:         deps.Metrics,
		logger:          logger,
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/", s.handleRoot)
		mux.HandleFunc("/healthz", s.handleHealth)
		if s.metrics != nil {
			mux.Handle("/metrics", s.metrics.Handler())
		}
		mux.HandleFunc("/upload/document", s.handleUpload)
		mux.HandleFunc("/documents", s.handleListDocuments)
		mux.HandleFunc("/documents/export", s.handleExportDocuments)
		mux.HandleFunc("/document/download/", s.handleDownload)
		mux.HandleFunc("/schemas", s.handleSchemas)
		mux.HandleFunc("/schemas/", s.handleSchemaRoute)
		mux.HandleFunc("/extract", s.handleExtract)
		mux.HandleFunc("/extract/document", s.handleExtractDocument)

		var h http.Handler = mux
		if s.metrics != nil {
			h = s.metrics.Middleware(h)
		}
		h = s.accessLogMiddleware(h)
		h = requestIDMiddleware(h)
		s.handler = corsMiddleware(h)
	})
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api_listening", "address", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "Online",
		"message": "ExtractIQ backend is running",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// allowMethods writes 405 and returns false when r.Method is not listed.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
