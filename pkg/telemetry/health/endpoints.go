package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"mercator-hq/courier/pkg/config"

	"golang.org/x/time/rate"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2026-10-17T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbe(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
//
// Returns:
//   - 200 OK: the listener is accepting and all checks pass
//   - 503 Service Unavailable: a check failed or the proxy is draining
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "listener": {"status": "ok", "duration_ms": 0.01},
//	        "accesslog": {"status": "unhealthy", "message": "database is locked", "duration_ms": 5.2}
//	    },
//	    "timestamp": "2026-10-17T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbe(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !allowProbe(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Register mounts the liveness, readiness and version endpoints on mux at
// the configured paths. Probes are rate limited to limit requests per
// second; a limit of 0 disables limiting.
//
//	health.Register(mux, checker, cfg.Telemetry.Health, version, commit, buildTime, 20)
func Register(mux *http.ServeMux, c *Checker, cfg config.HealthConfig, version, commit, buildTime string, limit int) {
	mux.Handle(cfg.LivenessPath, RateLimitedHandler(c.LivenessHandler(), limit))
	mux.Handle(cfg.ReadinessPath, RateLimitedHandler(c.ReadinessHandler(), limit))
	mux.Handle(cfg.VersionPath, RateLimitedHandler(VersionHandler(version, commit, buildTime), limit))
}

// RateLimitedHandler wraps a handler with a token bucket allowing
// requestsPerSecond requests with an equal burst. Excess requests get 429.
func RateLimitedHandler(handler http.HandlerFunc, requestsPerSecond int) http.HandlerFunc {
	if requestsPerSecond <= 0 {
		return handler
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)

	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		handler(w, r)
	}
}

func allowProbe(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
