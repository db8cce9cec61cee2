// Package middleware provides HTTP middleware for the admin server.
//
// The admin chain, outermost first, is:
//
//	RecoveryMiddleware -> RequestIDMiddleware -> LoggingMiddleware -> mux
//
// Tracing is applied outside the chain by tracing.Tracer.HTTPMiddleware so
// the span covers recovery as well.
package middleware
