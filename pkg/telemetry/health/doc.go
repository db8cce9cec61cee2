// Package health provides health check endpoints for Mercator Courier.
//
// # Endpoints
//
// Mounted on the admin server at the configured paths:
//
//   - /health: Liveness probe - the process is running
//   - /ready: Readiness probe - the proxy listener accepts and every
//     registered check passes
//   - /version: Build information - version, commit, build time
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//
//	checker.RegisterCheck("listener", srv.ListenerCheck)
//	checker.RegisterCheck("accesslog", health.PingCheck(store))
//
//	health.Register(mux, checker, cfg.Telemetry.Health, version, commit, buildTime, 20)
//
// # Draining
//
// On shutdown the run command calls SetDraining(true) before closing the
// listener. Readiness then reports "draining" with 503 while liveness stays
// 200, so an orchestrator stops routing clients without restarting the
// process mid-relay.
//
// # Concurrency
//
// Readiness checks run concurrently, each bounded by the check timeout. A
// check that ignores its context is abandoned at the timeout and reported
// unhealthy.
package health
