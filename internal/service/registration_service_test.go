package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhien18112/system-with-dbs/internal/dto"
	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistrationService(store *memRegistrationStore) *RegistrationService {
	roles := stubRoles{1: models.RoleStudent, 2: models.RoleTutor, 3: models.RoleStudent, 4: models.RoleStudent}
	svc := NewRegistrationService(store, roles, &stubSuggester{}, NewMetricsService(), nil, nil, 12*time.Hour)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func tutorPtr(id int64) *int64 { return &id }

func TestCreateApproveApproveAgain(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	ctx := context.Background()

	reg, err := svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 1, SubjectID: 10, TutorID: 2})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusPending, reg.Status)
	require.NotNil(t, reg.TutorID)
	assert.Equal(t, int64(2), *reg.TutorID)
	assert.Nil(t, reg.ApprovedAt)
	assert.Equal(t, fixedNow, reg.RequestTime)
	require.NotNil(t, reg.ExpiresAt)
	assert.Equal(t, fixedNow.Add(12*time.Hour), *reg.ExpiresAt)

	ok, err := svc.ApproveByID(ctx, reg.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	stored := store.get(reg.ID)
	assert.Equal(t, models.RegistrationStatusApproved, stored.Status)
	require.NotNil(t, stored.ApprovedAt)
	assert.Equal(t, fixedNow, *stored.ApprovedAt)

	ok, err = svc.ApproveByID(ctx, reg.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.RegistrationStatusApproved, store.get(reg.ID).Status)
	assert.Equal(t, int64(1), store.get(reg.ID).Version)
}

func TestCreateRejectsWrongRoles(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	ctx := context.Background()

	_, err := svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 1, SubjectID: 10, TutorID: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 2, SubjectID: 10, TutorID: 2})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 99, SubjectID: 10, TutorID: 2})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 1, SubjectID: 10, TutorID: 77})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateRequest(ctx, dto.CreateRegistrationRequest{StudentID: 1, TutorID: 2})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Equal(t, 0, store.creates)
}

func TestCreateStoreFailure(t *testing.T) {
	store := newMemRegistrationStore()
	store.createErr = errStoreDown
	svc := newTestRegistrationService(store)

	_, err := svc.CreateRequest(context.Background(), dto.CreateRegistrationRequest{StudentID: 1, SubjectID: 10, TutorID: 2})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestCancelRequest(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	ctx := context.Background()

	pending := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})
	creating := store.put(models.Registration{StudentID: 1, SubjectID: 10, Status: models.RegistrationStatusCreating})

	ok, err := svc.CancelRequest(ctx, pending, 3)
	require.NoError(t, err)
	assert.False(t, ok, "another student cannot cancel")
	assert.Equal(t, models.RegistrationStatusPending, store.get(pending).Status)

	ok, err = svc.CancelRequest(ctx, pending, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RegistrationStatusCancelled, store.get(pending).Status)

	ok, err = svc.CancelRequest(ctx, pending, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CancelRequest(ctx, creating, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CancelRequest(ctx, 404, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApproveAndRejectRequireAssignedTutor(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	ctx := context.Background()

	unassigned := store.put(models.Registration{StudentID: 1, SubjectID: 10, Status: models.RegistrationStatusPending})
	assigned := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})

	for _, tutorID := range []int64{0, 2, 5} {
		ok, err := svc.ApproveByID(ctx, unassigned, tutorID)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = svc.RejectByID(ctx, unassigned, tutorID, "no")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, models.RegistrationStatusPending, store.get(unassigned).Status)

	ok, err := svc.RejectByID(ctx, assigned, 5, "busy")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.RejectByID(ctx, assigned, 2, "schedule full")
	require.NoError(t, err)
	assert.True(t, ok)
	stored := store.get(assigned)
	assert.Equal(t, models.RegistrationStatusRejected, stored.Status)
	require.NotNil(t, stored.ReasonForRejection)
	assert.Equal(t, "schedule full", *stored.ReasonForRejection)
	assert.Nil(t, stored.ApprovedAt)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.RegistrationStatus{
		models.RegistrationStatusApproved,
		models.RegistrationStatusRejected,
		models.RegistrationStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemRegistrationStore()
			svc := newTestRegistrationService(store)
			id := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: status, Version: 1})

			ok, err := svc.ApproveByID(ctx, id, 2)
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = svc.RejectByID(ctx, id, 2, "x")
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = svc.CancelRequest(ctx, id, 1)
			require.NoError(t, err)
			assert.False(t, ok)
			reg := store.get(id)
			ok, err = svc.ForceApprove(ctx, &reg)
			require.NoError(t, err)
			assert.False(t, ok)

			after := store.get(id)
			assert.Equal(t, status, after.Status)
			assert.Equal(t, int64(1), after.Version)
		})
	}
}

func TestUpdateFailurePropagates(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	id := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})
	store.updateErr = errStoreDown

	ok, err := svc.ApproveByID(context.Background(), id, 2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestManualApprovalRacesSweep(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		store := newMemRegistrationStore()
		svc := newTestRegistrationService(store)
		id := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})
		snapshot := store.get(id)

		var wg sync.WaitGroup
		results := make([]bool, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			ok, err := svc.ApproveByID(ctx, id, 2)
			assert.NoError(t, err)
			results[0] = ok
		}()
		go func() {
			defer wg.Done()
			ok, err := svc.ForceApprove(ctx, &snapshot)
			assert.NoError(t, err)
			results[1] = ok
		}()
		wg.Wait()

		assert.True(t, results[0] != results[1], "exactly one approval applies")
		final := store.get(id)
		assert.Equal(t, models.RegistrationStatusApproved, final.Status)
		assert.Equal(t, int64(1), final.Version)
	}
}

func TestCancelRacesApprove(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		store := newMemRegistrationStore()
		svc := newTestRegistrationService(store)
		id := store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})

		var wg sync.WaitGroup
		var cancelled, approved bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelled, _ = svc.CancelRequest(ctx, id, 1)
		}()
		go func() {
			defer wg.Done()
			approved, _ = svc.ApproveByID(ctx, id, 2)
		}()
		wg.Wait()

		require.True(t, cancelled != approved)
		final := store.get(id).Status
		if cancelled {
			assert.Equal(t, models.RegistrationStatusCancelled, final)
		} else {
			assert.Equal(t, models.RegistrationStatusApproved, final)
		}
	}
}

func TestRegistrationQueries(t *testing.T) {
	store := newMemRegistrationStore()
	svc := newTestRegistrationService(store)
	ctx := context.Background()

	store.put(models.Registration{StudentID: 1, SubjectID: 10, TutorID: tutorPtr(2), Status: models.RegistrationStatusPending})
	store.put(models.Registration{StudentID: 3, SubjectID: 11, TutorID: tutorPtr(2), Status: models.RegistrationStatusApproved})
	store.put(models.Registration{StudentID: 1, SubjectID: 12, TutorID: tutorPtr(5), Status: models.RegistrationStatusPending})

	pending, err := svc.PendingForTutor(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	approved, err := svc.ApprovedForTutor(ctx, 2)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, int64(3), approved[0].StudentID)

	mine, err := svc.ListByStudent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestSuggestTutorsDelegates(t *testing.T) {
	suggester := &stubSuggester{out: []models.TutorSuggestion{{TutorID: 2}}}
	svc := NewRegistrationService(newMemRegistrationStore(), stubRoles{}, suggester, nil, nil, nil, 0)

	out, err := svc.SuggestTutors(context.Background(), "math")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, []string{"math"}, suggester.calls)
}
