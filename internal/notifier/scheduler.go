package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

type ScheduleConfig struct {
	Digest   string
	Reminder string
	TimeZone string
}

// Scheduler runs Jobs on standard five-field cron expressions.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.SugaredLogger
}

func NewScheduler(jobs *Jobs, cfg ScheduleConfig, logger *zap.SugaredLogger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("schedule time zone %q: %w", cfg.TimeZone, err)
	}
	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, logger: logger}
	if cfg.Digest != "" {
		if _, err := c.AddFunc(cfg.Digest, s.run(JobDigest, jobs.Digest)); err != nil {
			return nil, fmt.Errorf("digest schedule %q: %w", cfg.Digest, err)
		}
	}
	if cfg.Reminder != "" {
		remind := func(ctx context.Context) error {
			_, err := jobs.Remind(ctx)
			return err
		}
		if _, err := c.AddFunc(cfg.Reminder, s.run(JobReminder, remind)); err != nil {
			return nil, fmt.Errorf("reminder schedule %q: %w", cfg.Reminder, err)
		}
	}
	return s, nil
}

func (s *Scheduler) run(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Errorw("scheduled job failed", "job", name, "err", err)
			return
		}
		s.logger.Infow("scheduled job finished", "job", name, "duration", time.Since(start))
	}
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warnw("scheduler stop timed out")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debugw(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "err", err)...)
}
