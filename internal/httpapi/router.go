// Package httpapi exposes analysis runs over HTTP.
//
// Routes:
//
//	POST /v1/projects/{projectID}/users/{userID}/analysis  run and store an analysis
//	GET  /v1/projects/{projectID}/users/{userID}/analysis  stored analysis
//	GET  /health
//	GET  /metrics
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/store"
)

// maxBodyBytes bounds request bodies; transcripts are sent inline.
const maxBodyBytes = 32 << 20

// Runner is the analysis service as seen by the handlers.
type Runner interface {
	Run(ctx context.Context, req analysis.Request, opts ...analysis.RunOption) (analysis.Outcome, error)
	Get(ctx context.Context, key store.Key) (store.Record, error)
}

// Option configures the router.
type Option func(*routerConfig)

type routerConfig struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// WithLogger logs every request.
func WithLogger(l *zap.Logger) Option {
	return func(c *routerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGatherer serves the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *routerConfig) {
		c.gatherer = g
	}
}

// NewRouter builds the API handler.
func NewRouter(svc Runner, opts ...Option) http.Handler {
	cfg := routerConfig{logger: zap.NewNop(), gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &handler{svc: svc, logger: cfg.logger}
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/projects/{projectID}/users/{userID}/analysis", h.runAnalysis).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{projectID}/users/{userID}/analysis", h.getAnalysis).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
	return r
}

// NewServer returns an http.Server for handler. Write timeout covers a full
// model call.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
