package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/dto"
	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	applog "github.com/Nhien18112/system-with-dbs/pkg/logger"
)

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id int64) (*models.Registration, error)
	ListByTutorAndStatus(ctx context.Context, tutorID int64, status models.RegistrationStatus) ([]models.Registration, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error)
	UpdateStatus(ctx context.Context, reg *models.Registration, observed models.RegistrationStatus, expectedVersion int64) (bool, error)
}

type roleResolver interface {
	ResolveRoles(ctx context.Context, ids ...int64) (map[int64]models.UserRole, error)
}

type tutorSuggester interface {
	SuggestTutors(ctx context.Context, subject string) ([]models.TutorSuggestion, error)
}

// RegistrationService owns the tutor registration lifecycle. Mutations report a
// boolean outcome: false covers unknown ids, actors who do not own the record
// and transitions the state machine forbids. Errors are reserved for storage
// failures and invalid creation requests.
type RegistrationService struct {
	store         registrationStore
	roles         roleResolver
	matcher       tutorSuggester
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	expiryHorizon time.Duration
	now           func() time.Time
}

// NewRegistrationService wires the lifecycle. expiryHorizon stamps expiresAt on new records.
func NewRegistrationService(
	store registrationStore,
	roles roleResolver,
	matcher tutorSuggester,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	expiryHorizon time.Duration,
) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if expiryHorizon <= 0 {
		expiryHorizon = 12 * time.Hour
	}
	return &RegistrationService{
		store:         store,
		roles:         roles,
		matcher:       matcher,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		expiryHorizon: expiryHorizon,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest records a new PENDING registration after checking that the
// student and tutor exist with the expected roles.
func (s *RegistrationService) CreateRequest(ctx context.Context, req dto.CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid registration payload")
	}
	roles, err := s.roles.ResolveRoles(ctx, req.StudentID, req.TutorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(roles, req.StudentID, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := requireRole(roles, req.TutorID, models.RoleTutor); err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.expiryHorizon)
	tutorID := req.TutorID
	reg := &models.Registration{
		StudentID:   req.StudentID,
		SubjectID:   req.SubjectID,
		TutorID:     &tutorID,
		Status:      models.RegistrationStatusPending,
		RequestTime: now,
		ExpiresAt:   &expiresAt,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, appErrors.Internal(err, "failed to create registration")
	}
	s.metrics.RecordTransition(string(models.RegistrationStatusPending), true)
	applog.FromContext(ctx, s.logger).Info("registration created",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("student_id", reg.StudentID),
		zap.Int64("tutor_id", tutorID),
		zap.Time("expires_at", expiresAt),
	)
	return reg, nil
}

// CancelRequest withdraws a PENDING or CREATING registration on behalf of its student.
func (s *RegistrationService) CancelRequest(ctx context.Context, registrationID, studentID int64) (bool, error) {
	reg, err := s.load(ctx, registrationID)
	if err != nil || reg == nil {
		return false, err
	}
	if reg.StudentID != studentID {
		return false, nil
	}
	return s.transition(ctx, reg, models.RegistrationStatusCancelled, nil)
}

// ApproveByID approves a PENDING registration on behalf of its assigned tutor.
func (s *RegistrationService) ApproveByID(ctx context.Context, registrationID, tutorID int64) (bool, error) {
	reg, err := s.load(ctx, registrationID)
	if err != nil || reg == nil {
		return false, err
	}
	if !reg.OwnedByTutor(tutorID) {
		return false, nil
	}
	return s.approve(ctx, reg)
}

// RejectByID rejects a PENDING registration on behalf of its assigned tutor.
func (s *RegistrationService) RejectByID(ctx context.Context, registrationID, tutorID int64, reason string) (bool, error) {
	reg, err := s.load(ctx, registrationID)
	if err != nil || reg == nil {
		return false, err
	}
	if !reg.OwnedByTutor(tutorID) {
		return false, nil
	}
	return s.transition(ctx, reg, models.RegistrationStatusRejected, func(r *models.Registration) {
		if reason != "" {
			r.ReasonForRejection = &reason
		}
	})
}

// ForceApprove approves reg without an ownership check. reg must be the record as
// last read by the caller; if it changed since, the approval does not apply.
func (s *RegistrationService) ForceApprove(ctx context.Context, reg *models.Registration) (bool, error) {
	if reg == nil {
		return false, nil
	}
	return s.approve(ctx, reg)
}

// PendingForTutor lists registrations awaiting the tutor's decision.
func (s *RegistrationService) PendingForTutor(ctx context.Context, tutorID int64) ([]models.Registration, error) {
	return s.listForTutor(ctx, tutorID, models.RegistrationStatusPending)
}

// ApprovedForTutor lists the tutor's approved registrations, one per accepted student request.
func (s *RegistrationService) ApprovedForTutor(ctx context.Context, tutorID int64) ([]models.Registration, error) {
	return s.listForTutor(ctx, tutorID, models.RegistrationStatusApproved)
}

// ListByStudent lists every registration a student has made.
func (s *RegistrationService) ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error) {
	regs, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list registrations")
	}
	return regs, nil
}

// SuggestTutors delegates to the matching engine.
func (s *RegistrationService) SuggestTutors(ctx context.Context, subject string) ([]models.TutorSuggestion, error) {
	return s.matcher.SuggestTutors(ctx, subject)
}

func (s *RegistrationService) approve(ctx context.Context, reg *models.Registration) (bool, error) {
	return s.transition(ctx, reg, models.RegistrationStatusApproved, func(r *models.Registration) {
		approvedAt := s.now()
		r.ApprovedAt = &approvedAt
	})
}

// transition applies one state machine edge and persists it with compare-and-set
// against the status and version that were read.
func (s *RegistrationService) transition(ctx context.Context, reg *models.Registration, next models.RegistrationStatus, mutate func(*models.Registration)) (bool, error) {
	if !reg.Status.CanTransitionTo(next) {
		s.metrics.RecordTransition(string(next), false)
		return false, nil
	}
	observed := reg.Status
	updated := *reg
	updated.Status = next
	if mutate != nil {
		mutate(&updated)
	}

	ok, err := s.store.UpdateStatus(ctx, &updated, observed, reg.Version)
	if err != nil {
		return false, appErrors.Internal(err, "failed to update registration")
	}
	s.metrics.RecordTransition(string(next), ok)
	if !ok {
		applog.FromContext(ctx, s.logger).Debug("registration changed concurrently",
			zap.Int64("registration_id", reg.ID),
			zap.String("from", string(observed)),
			zap.String("to", string(next)),
		)
		return false, nil
	}
	*reg = updated
	return true, nil
}

func (s *RegistrationService) load(ctx context.Context, id int64) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load registration")
	}
	return reg, nil
}

func (s *RegistrationService) listForTutor(ctx context.Context, tutorID int64, status models.RegistrationStatus) ([]models.Registration, error) {
	regs, err := s.store.ListByTutorAndStatus(ctx, tutorID, status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list registrations")
	}
	return regs, nil
}

func requireRole(roles map[int64]models.UserRole, userID int64, want models.UserRole) error {
	role, ok := roles[userID]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %d not found", userID))
	}
	if role != want {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %d is not a %s", userID, want))
	}
	return nil
}
