package health

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status values reported by the checker.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusDraining  = "draining"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds each readiness check when none is configured.
const DefaultCheckTimeout = 5 * time.Second

// ErrCheckTimeout is reported for a check that outlives the check timeout.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc returns nil when its component can serve traffic.
type CheckFunc func(ctx context.Context) error

// Pinger is implemented by access log storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// HealthStatus is the body of the liveness and readiness endpoints.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Ready reports whether the status should be served as 200.
func (s HealthStatus) Ready() bool {
	return s.Status == StatusOK || s.Status == StatusReady
}

// Checker aggregates named readiness checks and the draining flag set
// when shutdown begins.
type Checker struct {
	timeout  time.Duration
	draining atomic.Bool

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New returns a Checker that gives each check at most timeout, or
// DefaultCheckTimeout when timeout is not positive.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		timeout: timeout,
		checks:  make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces the check called name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// ListChecks returns the registered check names in sorted order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetDraining flips readiness to "draining" while liveness stays ok, so a
// load balancer stops sending clients while in-flight relays finish.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// Draining reports whether shutdown has begun.
func (c *Checker) Draining() bool {
	return c.draining.Load()
}

// CheckLiveness reports ok for as long as the process can answer.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every check in parallel. One unhealthy check makes
// the proxy "degraded"; draining takes precedence over both outcomes.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	names := c.ListChecks()
	results := make([]CheckResult, len(names))

	c.mu.RLock()
	var g errgroup.Group
	for i, name := range names {
		i := i
		check := c.checks[name]
		g.Go(func() error {
			results[i] = c.run(ctx, check)
			return nil
		})
	}
	c.mu.RUnlock()
	_ = g.Wait()

	status := HealthStatus{
		Status:    StatusReady,
		Checks:    make(map[string]CheckResult, len(names)),
		Timestamp: time.Now(),
	}
	for i, name := range names {
		status.Checks[name] = results[i]
		if results[i].Status == StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}
	if c.Draining() {
		status.Status = StatusDraining
	}
	return status
}

// run executes check in its own goroutine so that a check ignoring its
// context still times out.
func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{
		Status:     StatusOK,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
