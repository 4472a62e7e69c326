package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhien18112/system-with-dbs/internal/models"
	"github.com/Nhien18112/system-with-dbs/pkg/jobs"
)

func newTestSweeper(store *memRegistrationStore, approver registrationApprover, locker sweepLocker, metrics *MetricsService) *AutoApprovalSweeper {
	sweeper := NewAutoApprovalSweeper(store, approver, locker, metrics, nil, SweepOptions{
		StalenessHorizon: 24 * time.Hour,
		LockKey:          "locks:test",
	})
	sweeper.now = func() time.Time { return fixedNow }
	return sweeper
}

func TestSweepApprovesOnlyStaleRecords(t *testing.T) {
	store := newMemRegistrationStore()
	lifecycle := newTestRegistrationService(store)
	sweeper := newTestSweeper(store, lifecycle, nil, nil)

	stale := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending, RequestTime: fixedNow.Add(-30 * time.Hour)})
	fresh := store.put(models.Registration{StudentID: 1, SubjectID: 11, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending, RequestTime: fixedNow.Add(-time.Hour)})
	rejected := store.put(models.Registration{StudentID: 1, SubjectID: 12, TutorID: tutorPtr(2), Status: models.RegistrationStatusRejected, RequestTime: fixedNow.Add(-48 * time.Hour)})

	for i := 0; i < 3; i++ {
		report, err := sweeper.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fixedNow.Add(-24*time.Hour), report.Cutoff)
		if i == 0 {
			assert.Equal(t, 1, report.Approved)
		} else {
			assert.Equal(t, 0, report.Scanned)
		}
	}

	approved := store.get(stale)
	assert.Equal(t, models.RegistrationStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, fixedNow, *approved.ApprovedAt)
	assert.Equal(t, models.RegistrationStatusPending, store.get(fresh).Status)
	assert.Equal(t, models.RegistrationStatusRejected, store.get(rejected).Status)
}

func TestSweepBoundaryIsInclusive(t *testing.T) {
	store := newMemRegistrationStore()
	sweeper := newTestSweeper(store, newTestRegistrationService(store), nil, nil)
	id := store.put(models.Registration{StudentID: 1, SubjectID: 10, Status: models.RegistrationStatusPending, RequestTime: fixedNow.Add(-24 * time.Hour)})

	report, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, models.RegistrationStatusApproved, store.get(id).Status, "unassigned records are approved too")
}

type flakyApprover struct {
	failID  int64
	panicID int64
	seen    []int64
}

func (a *flakyApprover) ForceApprove(ctx context.Context, reg *models.Registration) (bool, error) {
	a.seen = append(a.seen, reg.ID)
	switch reg.ID {
	case a.failID:
		return false, errors.New("write timeout")
	case a.panicID:
		panic("corrupt record")
	}
	return true, nil
}

func TestSweepIsolatesRecordFailures(t *testing.T) {
	store := newMemRegistrationStore()
	old := fixedNow.Add(-30 * time.Hour)
	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, store.put(models.Registration{StudentID: 1, SubjectID: int64(10 + i), Status: models.RegistrationStatusPending, RequestTime: old}))
	}
	approver := &flakyApprover{failID: ids[0], panicID: ids[1]}
	metrics := NewMetricsService()
	sweeper := newTestSweeper(store, approver, nil, metrics)

	report, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Approved)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, ids, approver.seen)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.sweepRecords.WithLabelValues("failed")))
}

type failingLister struct{}

func (failingLister) ListByStatusRequestedBefore(ctx context.Context, status models.RegistrationStatus, cutoff time.Time) ([]models.Registration, error) {
	return nil, errStoreDown
}

func TestSweepListFailureIsReported(t *testing.T) {
	metrics := NewMetricsService()
	sweeper := NewAutoApprovalSweeper(failingLister{}, &flakyApprover{}, nil, metrics, nil, SweepOptions{})

	_, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sweepRuns.WithLabelValues(SweepResultFailed)))
}

type stubLocker struct {
	ok       bool
	err      error
	released []string
}

func (l *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.err != nil || !l.ok {
		return "", false, l.err
	}
	return "token-1", true, nil
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.released = append(l.released, token)
	return nil
}

func TestSweepHonoursLease(t *testing.T) {
	store := newMemRegistrationStore()
	id := store.put(models.Registration{StudentID: 1, SubjectID: 10, Status: models.RegistrationStatusPending, RequestTime: fixedNow.Add(-30 * time.Hour)})

	held := &stubLocker{ok: false}
	report, err := newTestSweeper(store, newTestRegistrationService(store), held, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Locked)
	assert.Equal(t, models.RegistrationStatusPending, store.get(id).Status)

	free := &stubLocker{ok: true}
	report, err = newTestSweeper(store, newTestRegistrationService(store), free, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, []string{"token-1"}, free.released)
}

func TestSweepProceedsWhenLeaseBackendFails(t *testing.T) {
	store := newMemRegistrationStore()
	id := store.put(models.Registration{StudentID: 1, SubjectID: 10, Status: models.RegistrationStatusPending, RequestTime: fixedNow.Add(-30 * time.Hour)})

	broken := &stubLocker{err: errors.New("redis down")}
	report, err := newTestSweeper(store, newTestRegistrationService(store), broken, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Locked)
	assert.Equal(t, models.RegistrationStatusApproved, store.get(id).Status)
	assert.Empty(t, broken.released)
}

func TestSweeperRegistersWithScheduler(t *testing.T) {
	store := newMemRegistrationStore()
	sweeper := newTestSweeper(store, newTestRegistrationService(store), nil, nil)
	sched := jobs.NewScheduler(nil)
	defer sched.Stop(context.Background())

	require.NoError(t, sweeper.Register(sched, "@every 5m"))
	assert.Error(t, sweeper.Register(sched, "@every 5m"))
	assert.Error(t, NewAutoApprovalSweeper(store, nil, nil, nil, nil, SweepOptions{}).Register(jobs.NewScheduler(nil), "not a spec"))
}
