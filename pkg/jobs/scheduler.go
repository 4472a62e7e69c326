package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a unit of periodic work. Returned errors are logged and never stop the schedule.
type Task func(context.Context) error

// Scheduler runs named tasks on cron schedules. Panics are recovered and a task
// never overlaps with its own previous run.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	entries map[string]cron.EntryID
}

// NewScheduler builds a scheduler whose cron runtime logs through zap.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{sugar: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule registers task under name using a cron spec ("@every 5m", "*/5 * * * *").
func (s *Scheduler) Schedule(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(name, task))
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

// Every registers task to run at a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	return s.Schedule(name, "@every "+interval.String(), task)
}

// Next reports the next activation time of a job, zero if unknown or not started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start begins firing scheduled jobs. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "jobs", len(s.entries))
}

// Stop prevents new activations and waits for running jobs until ctx expires.
// In-flight jobs see their context cancelled only once the wait gives up.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.cancel()
		return
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Sugar().Warnw("scheduler stop timed out waiting for running jobs", "error", ctx.Err())
	}
	s.cancel()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) wrap(name string, task Task) func() {
	return func() {
		start := time.Now()
		if err := task(s.ctx); err != nil {
			s.logger.Sugar().Errorw("job failed", "job", name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Sugar().Debugw("job finished", "job", name, "duration", time.Since(start))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
