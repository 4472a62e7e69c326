package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/models"
	"github.com/Nhien18112/system-with-dbs/pkg/jobs"
)

// SweepJobName identifies the auto-approval job on the scheduler.
const SweepJobName = "registration-auto-approval"

type staleRegistrationLister interface {
	ListByStatusRequestedBefore(ctx context.Context, status models.RegistrationStatus, cutoff time.Time) ([]models.Registration, error)
}

type registrationApprover interface {
	ForceApprove(ctx context.Context, reg *models.Registration) (bool, error)
}

type sweepLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// SweepOptions configures the sweeper. StalenessHorizon is independent of the
// expiry horizon stamped on new registrations.
type SweepOptions struct {
	StalenessHorizon time.Duration
	LockKey          string
	LockTTL          time.Duration
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Cutoff   time.Time
	Scanned  int
	Approved int
	Skipped  int
	Failed   int
	Locked   bool
}

// AutoApprovalSweeper approves PENDING registrations that have waited longer
// than the staleness horizon.
type AutoApprovalSweeper struct {
	lister   staleRegistrationLister
	approver registrationApprover
	locker   sweepLocker
	metrics  *MetricsService
	logger   *zap.Logger
	opts     SweepOptions
	now      func() time.Time
}

// NewAutoApprovalSweeper constructs the sweeper. locker may be nil.
func NewAutoApprovalSweeper(lister staleRegistrationLister, approver registrationApprover, locker sweepLocker, metrics *MetricsService, logger *zap.Logger, opts SweepOptions) *AutoApprovalSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StalenessHorizon <= 0 {
		opts.StalenessHorizon = 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 4 * time.Minute
	}
	return &AutoApprovalSweeper{
		lister:   lister,
		approver: approver,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register schedules the sweep on sched with a cron spec such as "@every 5m".
func (s *AutoApprovalSweeper) Register(sched *jobs.Scheduler, spec string) error {
	return sched.Schedule(SweepJobName, spec, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
}

// Sweep runs one pass. A failure on one record is logged and counted; only a
// failure to list candidates is returned.
func (s *AutoApprovalSweeper) Sweep(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	report := SweepReport{Cutoff: s.now().Add(-s.opts.StalenessHorizon)}

	release, acquired := s.lock(ctx)
	if !acquired {
		report.Locked = true
		s.metrics.RecordSweep(SweepResultSkipped, 0, 0, 0, time.Since(started))
		s.logger.Info("registration sweep skipped; lease held elsewhere")
		return report, nil
	}
	defer release()

	regs, err := s.lister.ListByStatusRequestedBefore(ctx, models.RegistrationStatusPending, report.Cutoff)
	if err != nil {
		s.metrics.RecordSweep(SweepResultFailed, 0, 0, 0, time.Since(started))
		s.logger.Error("registration sweep could not list stale registrations", zap.Time("cutoff", report.Cutoff), zap.Error(err))
		return report, fmt.Errorf("list stale registrations: %w", err)
	}
	report.Scanned = len(regs)

	for i := range regs {
		reg := regs[i]
		approved, err := s.approveOne(ctx, &reg)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Error("auto-approval failed", zap.Int64("registration_id", reg.ID), zap.Error(err))
		case approved:
			report.Approved++
			s.logger.Info("registration auto-approved",
				zap.Int64("registration_id", reg.ID),
				zap.Time("requested_at", reg.RequestTime),
			)
		default:
			report.Skipped++
		}
	}

	s.metrics.RecordSweep(SweepResultCompleted, report.Approved, report.Skipped, report.Failed, time.Since(started))
	s.logger.Info("registration sweep finished",
		zap.Time("cutoff", report.Cutoff),
		zap.Int("scanned", report.Scanned),
		zap.Int("approved", report.Approved),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(started)),
	)
	return report, nil
}

func (s *AutoApprovalSweeper) approveOne(ctx context.Context, reg *models.Registration) (approved bool, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		approved, err = s.approver.ForceApprove(ctx, reg)
	})
	if r := catcher.Recovered(); r != nil {
		return false, r.AsError()
	}
	return approved, err
}

// lock takes the sweep lease when one is configured. A lease backend error is
// logged and the sweep proceeds; compare-and-set updates keep concurrent sweeps safe.
func (s *AutoApprovalSweeper) lock(ctx context.Context) (func(), bool) {
	noop := func() {}
	if s.locker == nil || s.opts.LockKey == "" {
		return noop, true
	}
	token, ok, err := s.locker.Acquire(ctx, s.opts.LockKey, s.opts.LockTTL)
	if err != nil {
		s.logger.Warn("sweep lease unavailable, sweeping without it", zap.Error(err))
		return noop, true
	}
	if !ok {
		return noop, false
	}
	return func() {
		if err := s.locker.Release(context.Background(), s.opts.LockKey, token); err != nil {
			s.logger.Warn("sweep lease release failed", zap.Error(err))
		}
	}, true
}
