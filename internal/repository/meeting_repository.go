package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

const meetingColumns = `meeting_id, meeting_type, tutor_id, meeting_date, start_time, end_time, topic, cancelled, cancellation_reason, meeting_status, student_id, appointment_status, version, created_at`

// meetingRow is the flat table shape; variant payload columns are nullable.
type meetingRow struct {
	ID                 int64          `db:"meeting_id"`
	Kind               string         `db:"meeting_type"`
	TutorID            int64          `db:"tutor_id"`
	Date               time.Time      `db:"meeting_date"`
	StartTime          time.Time      `db:"start_time"`
	EndTime            time.Time      `db:"end_time"`
	Topic              string         `db:"topic"`
	Cancelled          bool           `db:"cancelled"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	Status             string         `db:"meeting_status"`
	StudentID          sql.NullInt64  `db:"student_id"`
	AppointmentStatus  sql.NullString `db:"appointment_status"`
	Version            int64          `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (row meetingRow) toModel() models.Meeting {
	m := models.Meeting{
		ID:        row.ID,
		Kind:      models.MeetingKind(row.Kind),
		TutorID:   row.TutorID,
		Date:      row.Date,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Topic:     row.Topic,
		Cancelled: row.Cancelled,
		Status:    models.MeetingStatus(row.Status),
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
	}
	if row.CancellationReason.Valid {
		reason := row.CancellationReason.String
		m.CancellationReason = &reason
	}
	if m.Kind == models.MeetingKindAppointment && row.StudentID.Valid {
		m.Appointment = &models.AppointmentDetails{
			StudentID: row.StudentID.Int64,
			Status:    models.AppointmentStatus(row.AppointmentStatus.String),
		}
	}
	return m
}

// MeetingRepository persists meetings of every kind in a single table.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Create inserts the meeting and assigns its id.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	const query = `INSERT INTO meetings (meeting_type, tutor_id, meeting_date, start_time, end_time, topic, cancelled, cancellation_reason, meeting_status, student_id, appointment_status, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING meeting_id`
	var studentID sql.NullInt64
	var apptStatus sql.NullString
	if appt, ok := m.AsAppointment(); ok {
		studentID = sql.NullInt64{Int64: appt.StudentID, Valid: true}
		apptStatus = sql.NullString{String: string(appt.Status), Valid: true}
	}
	if err := r.db.QueryRowxContext(ctx, query,
		m.Kind,
		m.TutorID,
		m.Date,
		m.StartTime,
		m.EndTime,
		m.Topic,
		m.Cancelled,
		m.CancellationReason,
		m.Status,
		studentID,
		apptStatus,
		m.Version,
		m.CreatedAt,
	).Scan(&m.ID); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// FindByID returns a meeting by id.
func (r *MeetingRepository) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE meeting_id = $1`
	var row meetingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	m := row.toModel()
	return &m, nil
}

// ListAppointmentsByStudent returns every appointment booked by a student, latest first.
func (r *MeetingRepository) ListAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE meeting_type = 'APPOINTMENT' AND student_id = $1 ORDER BY start_time DESC, meeting_id DESC`
	return r.list(ctx, "list appointments by student", query, studentID)
}

// ListApprovedAppointmentsByStudent returns the student's approved, non-cancelled appointments.
func (r *MeetingRepository) ListApprovedAppointmentsByStudent(ctx context.Context, studentID int64) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE meeting_type = 'APPOINTMENT' AND student_id = $1 AND appointment_status = 'APPROVED' AND cancelled = FALSE ORDER BY start_time, meeting_id`
	return r.list(ctx, "list approved appointments", query, studentID)
}

// ListCancellableAppointmentsByStudent returns appointments that are neither cancelled nor over at now.
func (r *MeetingRepository) ListCancellableAppointmentsByStudent(ctx context.Context, studentID int64, now time.Time) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE meeting_type = 'APPOINTMENT' AND student_id = $1 AND cancelled = FALSE AND end_time >= $2 ORDER BY start_time, meeting_id`
	return r.list(ctx, "list cancellable appointments", query, studentID, now)
}

// ListActiveByTutorWithin returns the tutor's non-cancelled meetings whose closed
// interval intersects [start, end].
func (r *MeetingRepository) ListActiveByTutorWithin(ctx context.Context, tutorID int64, start, end time.Time) ([]models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE tutor_id = $1 AND cancelled = FALSE AND end_time >= $2 AND start_time <= $3 ORDER BY start_time, meeting_id`
	return r.list(ctx, "list tutor meetings", query, tutorID, start, end)
}

// UpdateCancellation persists a cancellation if the row is still uncancelled at
// expectedVersion and has not ended by now.
func (r *MeetingRepository) UpdateCancellation(ctx context.Context, m *models.Meeting, expectedVersion int64, now time.Time) (bool, error) {
	const query = `UPDATE meetings SET cancelled = $1, cancellation_reason = $2, meeting_status = $3, version = version + 1
WHERE meeting_id = $4 AND version = $5 AND cancelled = FALSE AND end_time >= $6`
	return r.compareAndSet(ctx, "update meeting cancellation", m, expectedVersion, query,
		m.Cancelled, m.CancellationReason, m.Status, m.ID, expectedVersion, now)
}

// UpdateAppointmentStatus persists a tutor decision if the stored appointment
// status is still observed and the version matches.
func (r *MeetingRepository) UpdateAppointmentStatus(ctx context.Context, m *models.Meeting, observed models.AppointmentStatus, expectedVersion int64) (bool, error) {
	appt, ok := m.AsAppointment()
	if !ok {
		return false, nil
	}
	const query = `UPDATE meetings SET appointment_status = $1, version = version + 1
WHERE meeting_id = $2 AND version = $3 AND appointment_status = $4 AND cancelled = FALSE`
	return r.compareAndSet(ctx, "update appointment status", m, expectedVersion, query,
		appt.Status, m.ID, expectedVersion, observed)
}

func (r *MeetingRepository) compareAndSet(ctx context.Context, op string, m *models.Meeting, expectedVersion int64, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	if affected != 1 {
		return false, nil
	}
	m.Version = expectedVersion + 1
	return true, nil
}

func (r *MeetingRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Meeting, error) {
	var rows []meetingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	meetings := make([]models.Meeting, 0, len(rows))
	for _, row := range rows {
		meetings = append(meetings, row.toModel())
	}
	return meetings, nil
}
