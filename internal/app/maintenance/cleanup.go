package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/trailworks/trail/internal/exports"
	"github.com/trailworks/trail/internal/services"
	"github.com/trailworks/trail/pkg/logger"
)

const (
	defaultCleanupSpec = "@daily"
	defaultSweepSpec   = "@hourly"
	defaultExportTTL   = time.Hour
)

// Cleaner coordinates background maintenance: enforcing the retention policy
// on log entries and sweeping expired export files.
type Cleaner struct {
	logs *services.LogService
	sink exports.Sink
	cron *cron.Cron
	log  *zap.Logger

	cleanupSchedule string
	sweepSchedule   string
	exportTTL       time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithCleanupSchedule overrides the cron specification for retention enforcement.
func WithCleanupSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cleanupSchedule = spec
		}
	}
}

// WithSweepSchedule overrides the cron specification for export file sweeps.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// WithExportTTL adjusts how long export files stay downloadable before sweeps remove them.
func WithExportTTL(ttl time.Duration) Option {
	return func(cleaner *Cleaner) {
		if ttl > 0 {
			cleaner.exportTTL = ttl
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding job being skipped.
func NewCleaner(logs *services.LogService, sink exports.Sink, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		logs:            logs,
		sink:            sink,
		cleanupSchedule: defaultCleanupSpec,
		sweepSchedule:   defaultSweepSpec,
		exportTTL:       defaultExportTTL,
		log:             logger.WithComponent("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers maintenance jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.logs == nil && c.sink == nil {
		return nil
	}

	if c.logs != nil {
		if _, err := c.cron.AddFunc(c.cleanupSchedule, func() {
			if _, err := c.logs.CleanupOldEntries(context.Background()); err != nil {
				c.log.Warn("retention cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.sink != nil {
		if _, err := c.cron.AddFunc(c.sweepSchedule, func() {
			if _, err := c.sink.Sweep(context.Background(), c.exportTTL); err != nil {
				c.log.Warn("export sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler and returns a context that completes once running
// jobs have drained.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce executes every maintenance job immediately, aggregating failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error

	if c.logs != nil {
		deleted, err := c.logs.CleanupOldEntries(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if deleted > 0 {
			c.log.Info("retention cleanup removed entries", zap.Int64("deleted", deleted))
		}
	}

	if c.sink != nil {
		removed, err := c.sink.Sweep(ctx, c.exportTTL)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if removed > 0 {
			c.log.Info("export sweep removed files", zap.Int("removed", removed))
		}
	}

	return errs
}
