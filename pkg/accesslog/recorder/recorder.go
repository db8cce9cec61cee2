package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
)

// Observer receives recorder activity. *metrics.Collector implements it.
type Observer interface {
	RecordAccessLogWrite(backend string, ok bool, records int)
	RecordAccessLogDrop()
}

type nopObserver struct{}

func (nopObserver) RecordAccessLogWrite(string, bool, int) {}
func (nopObserver) RecordAccessLogDrop()                   {}

// Config contains configuration for the access log recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// FromConfig converts the recorder section of the access log configuration.
func FromConfig(cfg config.RecorderConfig) *Config {
	c := DefaultConfig()
	if cfg.AsyncBuffer > 0 {
		c.AsyncBuffer = cfg.AsyncBuffer
	}
	if cfg.WriteTimeout > 0 {
		c.WriteTimeout = cfg.WriteTimeout
	}
	return c
}

// Recorder writes access log records asynchronously so storage latency
// never holds up a client connection. When the buffer is full, records are
// dropped and counted rather than blocking the caller.
type Recorder struct {
	storage    accesslog.Storage
	config     *Config
	observer   Observer
	recordChan chan *accesslog.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	dropped    atomic.Int64
	logger     *slog.Logger
}

// NewRecorder creates a recorder and starts its background writer.
func NewRecorder(storage accesslog.Storage, cfg *Config, observer Observer, logger *slog.Logger) *Recorder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     cfg,
		observer:   observer,
		recordChan: make(chan *accesslog.Record, cfg.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "accesslog.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("access log recorder initialized",
		"backend", storage.Backend(),
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)

	return r
}

// Record enqueues a record for writing and returns immediately. A record
// without an ID gets a new one. It reports false when the record was
// dropped because the buffer is full or the recorder is closed.
func (r *Recorder) Record(record *accesslog.Record) bool {
	if record.ID == "" {
		record.ID = accesslog.NewID()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}

	if r.closed.Load() {
		r.drop(record, "recorder closed")
		return false
	}

	select {
	case r.recordChan <- record:
		return true
	default:
		r.drop(record, "buffer full")
		return false
	}
}

func (r *Recorder) drop(record *accesslog.Record, reason string) {
	r.dropped.Add(1)
	r.observer.RecordAccessLogDrop()
	r.logger.Warn("access log record dropped",
		"conn_id", record.ID,
		"reason", reason,
	)
}

// Dropped returns the number of records dropped so far.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.recordChan)
}

// Close stops accepting records, writes everything already buffered and
// waits for the writer to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
	r.wg.Wait()
	return nil
}

// worker drains the channel in the background.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining access log channel before shutdown",
				"pending_count", len(r.recordChan),
			)

			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord stores a single record.
func (r *Recorder) writeRecord(record *accesslog.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	backend := r.storage.Backend()

	if err := r.storage.Store(ctx, record); err != nil {
		r.observer.RecordAccessLogWrite(backend, false, 1)
		r.logger.Error("failed to store access log record",
			"conn_id", record.ID,
			"error", err,
		)
		return
	}
	r.observer.RecordAccessLogWrite(backend, true, 1)

	duration := time.Since(start)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow access log write",
			"conn_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
