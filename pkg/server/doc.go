// Package server runs the Courier proxy listener and the admin HTTP server.
//
// # Proxy Listener
//
// Server accepts TCP connections and serves each one in its own goroutine
// with a ConnHandler, normally a *proxy.Handler. Around the handler it
// enforces the connection admission settings:
//
//   - max_connections: a weighted semaphore caps concurrently served
//     connections. A connection over the cap is answered with
//     "HTTP/1.0 503 SERVICE UNAVAILABLE" and "Too many connections", then
//     closed.
//   - accept_rate / accept_burst: a token bucket throttles the accept loop.
//   - reuse_address: SO_REUSEADDR is set on the listening socket on unix
//     platforms.
//
// Each connection gets a UUID that appears as conn_id on every log line and
// as the ID of its access log record. When the handler returns, the outcome
// is reported to the metrics collector and the access log recorder.
//
// # Shutdown
//
// Cancelling the context passed to Serve closes the listener and waits for
// in-flight connections for up to server.shutdown_timeout. Connections still
// open after that are closed and Serve reports how many were cut off.
//
// # Admin Server
//
// AdminServer serves NewAdminHandler on admin.listen_address:
//
//	/metrics    Prometheus exposition
//	/health     liveness
//	/ready      readiness (listener, access log storage; 503 while draining)
//	/version    build information
//	/accesslog  recent access log records as JSON
//
// /accesslog accepts limit, offset, host, status, result and since
// (a duration such as "15m") query parameters.
//
// # Usage
//
//	srv := server.NewServer(cfg.Server, cfg.Proxy.ListenAddress, handler, server.Options{
//	    Metrics:  collector,
//	    Recorder: rec,
//	    Logger:   logger,
//	})
//	if err := srv.Listen(ctx); err != nil {
//	    return err
//	}
//	return srv.Serve(ctx)
package server
