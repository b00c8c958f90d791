package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/listenme/listenme/internal/services"
	"github.com/listenme/listenme/pkg/logger"
)

const defaultSchedule = "@hourly"

// Cleaner periodically purges expired one-time codes and password reset
// tokens. Both are soft-expired by timestamp at lookup time, so the purge is
// housekeeping rather than correctness.
type Cleaner struct {
	codes    *services.OneTimeCodeService
	resets   *services.PasswordResetService
	cron     *cron.Cron
	schedule string
	log      *zap.Logger
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

// WithSchedule overrides the cron specification for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil service skips the corresponding purge.
func NewCleaner(codes *services.OneTimeCodeService, resets *services.PasswordResetService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		codes:    codes,
		resets:   resets,
		schedule: defaultSchedule,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the purge job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.codes == nil && c.resets == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the purge immediately. Used by the scheduler, tests and
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.codes != nil {
		purged, err := c.codes.PurgeExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if purged > 0 {
			c.log.Info("purged expired codes", zap.Int64("count", purged))
		}
	}

	if c.resets != nil {
		purged, err := c.resets.PurgeExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if purged > 0 {
			c.log.Info("purged expired reset tokens", zap.Int64("count", purged))
		}
	}

	return errs
}
