package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
)

const (
	defaultTransitionSpec = "*/15 * * * *"
	defaultArchivalSpec   = "@daily"
)

// TransitionSweeper advances due sessions through the lifecycle state machine.
type TransitionSweeper interface {
	RunTransitionSweep(ctx context.Context, now time.Time) (services.SweepResult, error)
}

// ArchivalSweeper moves long-completed sessions into the archive.
type ArchivalSweeper interface {
	RunArchivalSweep(ctx context.Context, now time.Time) (services.ArchiveResult, error)
}

// Scheduler owns the periodic maintenance sweeps. A nil sweeper disables the
// corresponding job.
type Scheduler struct {
	transitions TransitionSweeper
	archival    ArchivalSweeper
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	enabled     bool

	transitionSchedule string
	archivalSchedule   string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to each sweep invocation.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTransitionSchedule overrides the cron specification for status sweeps.
func WithTransitionSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.transitionSchedule = spec
		}
	}
}

// WithArchivalSchedule overrides the cron specification for archival sweeps.
func WithArchivalSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.archivalSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler with sensible defaults.
func NewScheduler(transitions TransitionSweeper, archival ArchivalSweeper, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		transitions:        transitions,
		archival:           archival,
		now:                time.Now,
		transitionSchedule: defaultTransitionSpec,
		archivalSchedule:   defaultArchivalSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	scheduler.enabled = scheduler.transitions != nil || scheduler.archival != nil

	return scheduler
}

// Start registers the sweep jobs with the cron scheduler and launches it if at
// least one sweep is enabled. Overlapping runs of the same job are harmless
// because every status update is guarded on the current state, but cron runs
// each job serially anyway.
func (s *Scheduler) Start() error {
	if !s.enabled {
		return nil
	}

	if s.transitions != nil {
		if _, err := s.cron.AddFunc(s.transitionSchedule, func() {
			ctx := context.Background()
			if _, err := s.transitions.RunTransitionSweep(ctx, s.now()); err != nil {
				s.log.Warn("transition sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.archival != nil {
		if _, err := s.cron.AddFunc(s.archivalSchedule, func() {
			ctx := context.Background()
			if _, err := s.archival.RunArchivalSweep(ctx, s.now()); err != nil {
				s.log.Warn("archival sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes both sweeps sequentially. Used at startup when configured
// to catch up immediately, and in tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.transitions != nil {
		if _, err := s.transitions.RunTransitionSweep(ctx, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.archival != nil {
		if _, err := s.archival.RunArchivalSweep(ctx, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
