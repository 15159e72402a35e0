// Package server exposes one Analyzer over HTTP. Every call into the
// Analyzer, reloads included, is serialized by the server.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/analyzer"
	"github.com/straja-ai/aidetect/internal/auth"
	"github.com/straja-ai/aidetect/internal/config"
)

// Resolver turns a model reference into a local path.
type Resolver interface {
	Resolve(ctx context.Context, ref, expectedSHA256 string) (string, error)
}

// Server wraps the HTTP server components for aidetect.
type Server struct {
	mux          *http.ServeMux
	resolver     Resolver
	log          *zap.Logger
	requests     *requestStore
	maxBodyBytes int64
	auth         *auth.Auth

	mu       sync.Mutex
	analyzer *analyzer.Analyzer
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires a bearer API key known to au on every route except
// /healthz. A nil or empty Auth leaves the server open.
func WithAuth(au *auth.Auth) Option {
	return func(s *Server) {
		s.auth = au
	}
}

// New builds a Server around a. resolver may be nil, in which case reload
// paths are used as given.
func New(a *analyzer.Analyzer, resolver Resolver, cfg config.ServerConfig, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}
	s := &Server{
		mux:          http.NewServeMux(),
		resolver:     resolver,
		log:          log.Named("server"),
		requests:     newRequestStore(0),
		maxBodyBytes: maxBody,
		analyzer:     a,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /v1/model", s.handleModel)
	s.mux.HandleFunc("POST /v1/model/reload", s.handleReload)
	s.mux.HandleFunc("POST /v1/analyze", s.handleAnalyzeText)
	s.mux.HandleFunc("POST /v1/analyze/tokens", s.handleAnalyzeTokens)
	s.mux.HandleFunc("GET /v1/requests/{id}", s.handleRequestStatus)
	return s
}

// Handler returns the root handler with request logging and API key checks.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.requireAPIKey(s.mux))
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("aidetect server running", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withAnalyzer runs fn while holding the analyzer lock.
func (s *Server) withAnalyzer(fn func(a *analyzer.Analyzer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.analyzer)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", rec.Header().Get(requestIDHeader)),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.ParseBearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Message: "missing or malformed Authorization header",
				Code:    "unauthorized",
			}})
			return
		}
		client, ok := s.auth.Lookup(token)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Message: "invalid API key",
				Code:    "unauthorized",
			}})
			return
		}
		s.log.Debug("authenticated", zap.String("client", client.Name), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
