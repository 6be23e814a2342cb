package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/banksampah-backend/pkg/logger"
	"github.com/angelmondragon/banksampah-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// CycleTimeout bounds one cycle. Set it to the lock TTL so a cycle never
	// outlives its lease. Zero means no bound.
	CycleTimeout time.Duration
}

// Service runs the registered maintenance jobs on a fixed cadence. A cycle
// runs only on the instance holding the lock.
type Service struct {
	logg         *logger.Logger
	registry     *Registry
	lock         Lock
	metrics      *metrics.CronJobMetrics
	interval     time.Duration
	cycleTimeout time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:         params.Logger,
		registry:     params.Registry,
		lock:         params.Lock,
		metrics:      params.Metrics,
		interval:     params.Interval,
		cycleTimeout: params.CycleTimeout,
		now:          time.Now,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately and then once per interval until ctx
// is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle.failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job a single time. A failing job does not stop the
// ones after it; a canceled or timed-out cycle does.
func (s *Service) RunOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	lease, err := s.lock.TryAcquire(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.logg.Info(ctx, "cron.cycle.skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "cron.lock.release_failed", relErr)
		}
	}()

	cycleCtx, cancel := s.cycleContext(ctx)
	defer cancel()

	started := s.now()
	ran := 0
	for _, job := range s.registry.Jobs() {
		if cycleCtx.Err() != nil {
			s.logg.Warn(s.logg.WithField(ctx, "remaining", len(s.registry.Jobs())-ran), "cron.cycle.aborted")
			return cycleCtx.Err()
		}
		s.runJob(cycleCtx, job)
		ran++
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        ran,
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}), "cron.cycle.complete")
	return nil
}

func (s *Service) cycleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cycleTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cycleTimeout)
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	start := s.now()
	err := job.Run(ctx)
	end := s.now()
	s.metrics.ObserveRun(job.Name(), start, end, err)

	ctx = s.logg.WithField(ctx, "duration_ms", end.Sub(start).Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job.failed", err)
		return
	}
	s.logg.Info(ctx, "cron.job.complete")
}
