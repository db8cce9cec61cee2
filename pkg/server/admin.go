package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
	"mercator-hq/courier/pkg/server/middleware"
	"mercator-hq/courier/pkg/telemetry/health"
	"mercator-hq/courier/pkg/telemetry/tracing"
)

// probeRateLimit caps health probe requests per second.
const probeRateLimit = 50

// BuildInfo identifies the running binary on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// AdminDeps are the handlers and stores mounted on the admin server. Nil
// fields leave the corresponding endpoint unmounted.
type AdminDeps struct {
	// Metrics serves the Prometheus exposition.
	Metrics     http.Handler
	MetricsPath string

	Health       *health.Checker
	HealthConfig config.HealthConfig
	Build        BuildInfo

	// AccessLog backs GET /accesslog.
	AccessLog accesslog.Storage

	Tracer *tracing.Tracer
	Logger *slog.Logger
}

// NewAdminHandler builds the admin mux wrapped in the middleware chain.
func NewAdminHandler(deps AdminDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admin")

	mux := http.NewServeMux()

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = config.DefaultPrometheusPath
		}
		mux.Handle(path, deps.Metrics)
	}

	if deps.Health != nil {
		hc := deps.HealthConfig
		if hc.LivenessPath == "" {
			hc.LivenessPath = config.DefaultLivenessPath
		}
		if hc.ReadinessPath == "" {
			hc.ReadinessPath = config.DefaultReadinessPath
		}
		if hc.VersionPath == "" {
			hc.VersionPath = config.DefaultVersionPath
		}
		health.Register(mux, deps.Health, hc, deps.Build.Version, deps.Build.Commit, deps.Build.BuildTime, probeRateLimit)
	}

	if deps.AccessLog != nil {
		mux.Handle("/accesslog", AccessLogHandler(deps.AccessLog, logger))
	}

	var handler http.Handler = middleware.Chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(logger),
	)
	if deps.Tracer != nil {
		handler = deps.Tracer.HTTPMiddleware(handler)
	}
	return handler
}

// AccessLogHandler serves recent access log records as JSON. Query
// parameters: limit, offset, host, status, result, since (a duration such
// as "15m").
func AccessLogHandler(store accesslog.Storage, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q, err := parseAccessLogQuery(r)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q.ApplyDefaults()

		records, err := store.Query(r.Context(), q)
		if err != nil {
			logger.ErrorContext(r.Context(), "access log query failed", "error", err)
			http.Error(w, "access log query failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Count   int                 `json:"count"`
			Records []*accesslog.Record `json:"records"`
		}{Count: len(records), Records: records})
	})
}

func parseAccessLogQuery(r *http.Request) (*accesslog.Query, error) {
	v := r.URL.Query()
	q := &accesslog.Query{
		Host:   v.Get("host"),
		Result: v.Get("result"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &q.Limit},
		{"offset", &q.Offset},
		{"status", &q.Status},
	}
	for _, p := range ints {
		if s := v.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q", p.name, s)
			}
			*p.dst = n
		}
	}

	if s := v.Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid since %q", s)
		}
		start := time.Now().Add(-d)
		q.StartTime = &start
	}

	return q, nil
}

// AdminServer serves the admin handler on its own listener.
type AdminServer struct {
	config     config.AdminConfig
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewAdminServer creates an admin server for handler.
func NewAdminServer(cfg config.AdminConfig, handler http.Handler, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}

	return &AdminServer{
		config: cfg,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: logger.With("component", "admin"),
	}
}

// Listen binds the admin socket.
func (a *AdminServer) Listen(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", a.config.ListenAddress, err)
	}
	a.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (a *AdminServer) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Serve runs the admin server until ctx is cancelled, then shuts it down
// within shutdownTimeout.
func (a *AdminServer) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := a.Listen(ctx); err != nil {
		return err
	}

	a.logger.Info("admin server listening", "address", a.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown error: %w", err)
	}
	a.logger.Info("admin server stopped")
	return nil
}
