// Package api exposes the engine over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/logging"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Option configures the router.
type Option func(*server)

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *Metrics) Option {
	return func(s *server) { s.metrics = m }
}

// WithClock overrides the time source used for classification dates.
func WithClock(now func() time.Time) Option {
	return func(s *server) { s.now = now }
}

type server struct {
	engine  *engine.Engine
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRouter builds the HTTP handler: routes, trace ids, request logging and
// panic recovery. Access lines and errors go to logger.
func NewRouter(e *engine.Engine, logger zerolog.Logger, opts ...Option) http.Handler {
	s := &server{
		engine: e,
		logger: logging.ComponentLogger(logger, "api"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.traceMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/compute", s.compute).Methods(http.MethodPost)
	v1.HandleFunc("/inventory", s.inventory).Methods(http.MethodPost)
	v1.HandleFunc("/strategies", s.listStrategies).Methods(http.MethodGet)
	v1.HandleFunc("/strategies/evaluate", s.evaluateStrategies).Methods(http.MethodPost)
	v1.HandleFunc("/strategies/recommend", s.recommendStrategies).Methods(http.MethodPost)
	v1.HandleFunc("/projections", s.project).Methods(http.MethodPost)
	v1.HandleFunc("/compliance/classify", s.classify).Methods(http.MethodPost)
	v1.HandleFunc("/footprints/{footprintID}/scenarios", s.listScenarios).Methods(http.MethodGet)
	v1.HandleFunc("/footprints/{footprintID}/scenarios", s.createScenario).Methods(http.MethodPost)
	v1.HandleFunc("/footprints/{footprintID}/current", s.current).Methods(http.MethodGet)
	v1.HandleFunc("/footprints/{footprintID}/classification", s.classifyCurrent).Methods(http.MethodGet)
	v1.HandleFunc("/scenarios/{scenarioID}", s.getScenario).Methods(http.MethodGet)
	v1.HandleFunc("/scenarios/{scenarioID}", s.updateScenario).Methods(http.MethodPatch)
	v1.HandleFunc("/scenarios/{scenarioID}", s.deleteScenario).Methods(http.MethodDelete)
	v1.HandleFunc("/scenarios/{scenarioID}/recompute", s.recompute).Methods(http.MethodPost)
	v1.HandleFunc("/comparisons", s.compare).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.LoggingHandler(s.logger, h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	return h
}

// traceMiddleware attaches a trace id and a request-scoped logger.
func (s *server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		ctx := s.logger.WithContext(r.Context())
		ctx = logging.ContextWithTraceID(ctx, traceID)
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error().Str("operation", "recover").Msg(fmt.Sprint(v...))
}

// NewServer wraps h in an http.Server with conservative timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Serve runs srv on ln until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	log := logging.FromContext(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().
		Str("component", "api").
		Str("operation", "serve").
		Str("addr", ln.Addr().String()).
		Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Str("component", "api").Str("operation", "serve").Msg("server stopped")
	return nil
}
