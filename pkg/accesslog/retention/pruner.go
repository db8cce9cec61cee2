package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
)

// Observer receives the number of records removed by each prune.
// *metrics.Collector implements it.
type Observer interface {
	RecordAccessLogPrune(deleted int64)
}

// Config is the retention policy. Zero values disable the matching limit.
type Config struct {
	RetentionDays int
	MaxRecords    int64

	// PruneSchedule is a five-field cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning; Prune can still be called directly.
	PruneSchedule string
}

// FromConfig converts access_log.retention.
func FromConfig(cfg config.RetentionConfig) *Config {
	return &Config{
		RetentionDays: cfg.Days,
		MaxRecords:    cfg.MaxRecords,
		PruneSchedule: cfg.PruneSchedule,
	}
}

// Pruner applies a retention policy to an access log store, either on
// demand (courier accesslog prune) or on a schedule inside courier run.
type Pruner struct {
	storage   accesslog.Storage
	config    *Config
	observer  Observer
	logger    *slog.Logger
	scheduler *Scheduler

	now func() time.Time
}

// NewPruner returns a pruner for storage. observer and logger may be nil.
func NewPruner(storage accesslog.Storage, cfg *Config, observer Observer, logger *slog.Logger) *Pruner {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		storage:  storage,
		config:   cfg,
		observer: observer,
		logger:   logger.With("component", "accesslog.retention"),
		now:      time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune removes records that started more than RetentionDays ago and then,
// if more than MaxRecords remain, the oldest of them. It returns how many
// records were removed in total, including on a partial failure.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var byAge, byCount int64
	var err error

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		byAge, err = p.storage.Delete(ctx, &accesslog.Query{EndTime: &cutoff})
		if err != nil {
			return 0, fmt.Errorf("prune by age failed: %w", err)
		}
	}

	if p.config.MaxRecords > 0 {
		byCount, err = p.trimToLimit(ctx)
		if err != nil {
			return byAge, fmt.Errorf("prune by count failed: %w", err)
		}
	}

	total := byAge + byCount
	if p.observer != nil {
		p.observer.RecordAccessLogPrune(total)
	}

	level := slog.LevelDebug
	if total > 0 {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "access log pruned",
		"by_age", byAge,
		"by_count", byCount,
		"retention_days", p.config.RetentionDays,
		"max_records", p.config.MaxRecords,
	)
	return total, nil
}

func (p *Pruner) trimToLimit(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &accesslog.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}
	return p.storage.DeleteOldest(ctx, count-p.config.MaxRecords)
}

// Start schedules Prune according to PruneSchedule.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop cancels scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled prune, or nil when none is
// scheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
