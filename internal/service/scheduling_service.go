package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Nhien18112/system-with-dbs/internal/dto"
	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	applog "github.com/Nhien18112/system-with-dbs/pkg/logger"
)

type meetingStore interface {
	Create(ctx context.Context, m *models.Meeting) error
	FindByID(ctx context.Context, id int64) (*models.Meeting, error)
	ListAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error)
	ListApprovedAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error)
	ListCancellableAppointmentsByStudent(ctx context.Context, studentID int64, now time.Time) ([]models.Meeting, error)
	ListActiveByTutorWithin(ctx context.Context, tutorID int64, start, end time.Time) ([]models.Meeting, error)
	UpdateCancellation(ctx context.Context, m *models.Meeting, expectedVersion int64, now time.Time) (bool, error)
	UpdateAppointmentStatus(ctx context.Context, m *models.Meeting, observed models.AppointmentStatus, expectedVersion int64) (bool, error)
}

// SchedulingService books, cancels and inspects meetings.
type SchedulingService struct {
	store           meetingStore
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	rejectConflicts bool
	now             func() time.Time
}

// NewSchedulingService constructs the service. When rejectConflicts is false
// overlapping bookings are accepted and only reported.
func NewSchedulingService(store meetingStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, rejectConflicts bool) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		store:           store,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
		rejectConflicts: rejectConflicts,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// BookAppointment persists a new appointment awaiting tutor approval.
func (s *SchedulingService) BookAppointment(ctx context.Context, req dto.BookAppointmentRequest) (*dto.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid appointment payload")
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	meeting, err := models.NewAppointment(req.TutorID, req.StudentID, date, start, end, req.Topic)
	if err != nil {
		return nil, appErrors.Invalid(err, err.Error())
	}

	conflicts, err := s.overlapping(ctx, meeting)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordBookingConflict()
		applog.FromContext(ctx, s.logger).Warn("appointment overlaps existing meetings",
			zap.Int64("tutor_id", meeting.TutorID),
			zap.Int("conflicts", len(conflicts)),
			zap.Bool("rejected", s.rejectConflicts),
		)
		if s.rejectConflicts {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tutor already has a meeting in this time range")
		}
	}

	meeting.CreatedAt = s.now()
	if err := s.store.Create(ctx, meeting); err != nil {
		return nil, appErrors.Internal(err, "failed to book appointment")
	}
	applog.FromContext(ctx, s.logger).Info("appointment booked",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("tutor_id", meeting.TutorID),
		zap.Int64("student_id", req.StudentID),
	)
	return &dto.BookingResult{Meeting: meeting, Conflicts: conflicts}, nil
}

// CancelMeeting cancels a meeting unless it is unknown, already cancelled or completed.
func (s *SchedulingService) CancelMeeting(ctx context.Context, meetingID, actorID int64, reason string) (bool, error) {
	meeting, err := s.load(ctx, meetingID)
	if err != nil || meeting == nil {
		return false, err
	}
	if meeting.Cancelled {
		return false, nil
	}
	expected := meeting.Version
	meeting.UpdateStatus(s.now())
	if !meeting.Cancel(actorID, reason) {
		return false, nil
	}
	ok, err := s.store.UpdateCancellation(ctx, meeting, expected, s.now())
	if err != nil {
		return false, appErrors.Internal(err, "failed to cancel meeting")
	}
	if ok {
		applog.FromContext(ctx, s.logger).Info("meeting cancelled", zap.Int64("meeting_id", meetingID), zap.Int64("actor_id", actorID), zap.String("reason", reason))
	}
	return ok, nil
}

// ApproveAppointment lets the owning tutor accept a pending appointment.
func (s *SchedulingService) ApproveAppointment(ctx context.Context, meetingID, tutorID int64) (bool, error) {
	return s.decide(ctx, meetingID, func(m *models.Meeting) bool { return m.ApproveAppointment(tutorID) })
}

// RejectAppointment lets the owning tutor decline a pending appointment.
func (s *SchedulingService) RejectAppointment(ctx context.Context, meetingID, tutorID int64) (bool, error) {
	return s.decide(ctx, meetingID, func(m *models.Meeting) bool { return m.RejectAppointment(tutorID) })
}

// GetMeeting returns a meeting with its status derived from the current time.
func (s *SchedulingService) GetMeeting(ctx context.Context, meetingID int64) (*models.Meeting, error) {
	meeting, err := s.load(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
	}
	meeting.UpdateStatus(s.now())
	return meeting, nil
}

// FindConflicts returns active meetings of the same tutor overlapping meetingID.
// A cancelled meeting conflicts with nothing.
func (s *SchedulingService) FindConflicts(ctx context.Context, meetingID int64) ([]models.Meeting, error) {
	meeting, err := s.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !meeting.Active() {
		return []models.Meeting{}, nil
	}
	return s.overlapping(ctx, meeting)
}

// ListApprovedAppointments returns the student's approved appointments.
func (s *SchedulingService) ListApprovedAppointments(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	return s.project(s.store.ListApprovedAppointmentsByStudent(ctx, studentID))
}

// ViewHistory returns every appointment the student has booked.
func (s *SchedulingService) ViewHistory(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	return s.project(s.store.ListAppointmentsByStudent(ctx, studentID))
}

// ListCancellableAppointments returns the student's appointments that can still be cancelled.
func (s *SchedulingService) ListCancellableAppointments(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	return s.project(s.store.ListCancellableAppointmentsByStudent(ctx, studentID, s.now()))
}

func (s *SchedulingService) decide(ctx context.Context, meetingID int64, apply func(*models.Meeting) bool) (bool, error) {
	meeting, err := s.load(ctx, meetingID)
	if err != nil || meeting == nil {
		return false, err
	}
	appt, ok := meeting.AsAppointment()
	if !ok {
		return false, nil
	}
	observed := appt.Status
	expected := meeting.Version
	if !apply(meeting) {
		return false, nil
	}
	ok, err = s.store.UpdateAppointmentStatus(ctx, meeting, observed, expected)
	if err != nil {
		return false, appErrors.Internal(err, "failed to update appointment")
	}
	return ok, nil
}

func (s *SchedulingService) overlapping(ctx context.Context, meeting *models.Meeting) ([]models.Meeting, error) {
	candidates, err := s.store.ListActiveByTutorWithin(ctx, meeting.TutorID, meeting.StartTime, meeting.EndTime)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check tutor schedule")
	}
	conflicts := make([]models.Meeting, 0, len(candidates))
	for i := range candidates {
		other := &candidates[i]
		if other.ID == meeting.ID || !other.Active() || !meeting.OverlapsWith(other) {
			continue
		}
		conflicts = append(conflicts, *other)
	}
	return conflicts, nil
}

func (s *SchedulingService) project(meetings []models.Meeting, err error) ([]models.Meeting, error) {
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list appointments")
	}
	now := s.now()
	for i := range meetings {
		meetings[i].UpdateStatus(now)
	}
	return meetings, nil
}

func (s *SchedulingService) load(ctx context.Context, id int64) (*models.Meeting, error) {
	meeting, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load meeting")
	}
	return meeting, nil
}
