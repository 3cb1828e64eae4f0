// Package scheduler runs periodic housekeeping, currently the purge of
// stale login sessions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	obsmetrics "github.com/smallbiznis/dentaldesk/internal/observability/metrics"
	"github.com/smallbiznis/dentaldesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobPurgeSessions = "purge_sessions"

	lockNamePrefix = "housekeeping:"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Sessions authdomain.SessionRepository
	Locker   *ratelimit.Locker   `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Config   Config              `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	sessions authdomain.SessionRepository
	locker   *ratelimit.Locker
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Sessions == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		sessions: p.Sessions,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

// runJob executes fn once under a timeout. When Redis is configured, only
// the replica holding the job lock runs it.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := s.locker.WithLock(ctx, lockNamePrefix+name, timeout, func(ctx context.Context) error {
		return s.execute(ctx, name, timeout, fn)
	})
	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		s.metrics.RecordJobRun(ctx, name, "skipped")
		return nil
	case errors.Is(err, ratelimit.ErrLockUnavailable):
		s.log.Warn("job lock unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		return s.execute(ctx, name, timeout, fn)
	default:
		return err
	}
}

func (s *Scheduler) execute(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		s.metrics.RecordJobRun(ctx, name, "success")
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJobRun(ctx, name, "timeout")
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJobRun(ctx, name, "error")
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobPurgeSessions, s.PurgeSessionsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// PurgeSessionsJob deletes sessions that expired or were revoked longer ago
// than the retention window.
func (s *Scheduler) PurgeSessionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobPurgeSessions)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	cutoff := s.clock.Now().Add(-s.cfg.SessionRetention)
	purged, err := s.sessions.PurgeSessions(ctx, cutoff)
	if err != nil {
		run.IncError()
		return err
	}
	run.AddProcessed(purged)
	return nil
}
