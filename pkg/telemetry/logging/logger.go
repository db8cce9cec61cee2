package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/courier/pkg/config"
)

// Logger is the process logger. It embeds *slog.Logger and adds a level
// that can be changed while courier runs. Every handler built by New adds
// connection fields from the context and, when enabled, masks credentials.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config selects the handler built by New.
type Config struct {
	Level          string // debug, info, warn or error
	Format         string // json, text or console
	AddSource      bool
	Redact         bool
	RedactPatterns []config.RedactPattern

	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// FromConfig maps telemetry.logging onto a Config.
func FromConfig(cfg config.LoggingConfig) Config {
	return Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		Redact:         cfg.Redact,
		RedactPatterns: cfg.RedactPatterns,
	}
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv, AddSource: cfg.AddSource}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "console":
		// Terminals already show when a line appeared.
		opts.ReplaceAttr = dropTime
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json, text or console)", cfg.Format)
	}

	ch := &contextHandler{next: h}
	if cfg.Redact {
		ch.redactor = NewRedactor(cfg.RedactPatterns)
	}
	return &Logger{Logger: slog.New(ch), level: lv}, nil
}

// Slog returns the *slog.Logger handed to components, which add their own
// "component" attribute.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// SetLevel changes the minimum level of this logger and of every logger
// derived from it, including those returned by Slog.
func (l *Logger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// With returns a Logger with args attached that shares l's level.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// WithContext returns a Logger carrying the connection fields of ctx, or l
// itself when ctx has none.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if args := extractContextFields(ctx); len(args) > 0 {
		return l.With(args...)
	}
	return l
}

// contextHandler adds connection fields from the context and redacts
// attribute values before delegating.
type contextHandler struct {
	next     slog.Handler
	redactor *Redactor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := extractContextFields(ctx)
	if len(fields) == 0 && h.redactor == nil {
		return h.next.Handle(ctx, r)
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.Add(fields...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &contextHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}

func (h *contextHandler) redact(a slog.Attr) slog.Attr {
	if h.redactor == nil {
		return a
	}
	return h.redactor.RedactAttr(a)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}
