// Package storage provides access log persistence backends.
package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
)

// New creates the backend selected by cfg.Backend.
func New(cfg config.AccessLogConfig, logger *slog.Logger) (accesslog.Storage, error) {
	switch cfg.Backend {
	case "", config.AccessLogBackendMemory:
		return NewMemoryStorage(cfg.MemoryCapacity), nil
	case config.AccessLogBackendSQLite:
		return NewSQLiteStorage(cfg.SQLite, logger)
	default:
		return nil, accesslog.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}
