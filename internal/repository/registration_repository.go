package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

const registrationColumns = `registration_id, student_id, subject_id, tutor_id, registration_status, created_at, approved_at, expires_at, reason_for_rejection, version`

// RegistrationRepository persists tutor registrations. It holds no business rules;
// transitions are validated by the caller and applied with UpdateStatus.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration and assigns the generated id.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	const query = `INSERT INTO tutor_registrations (student_id, subject_id, tutor_id, registration_status, created_at, approved_at, expires_at, reason_for_rejection, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING registration_id`
	if err := r.db.QueryRowxContext(ctx, query,
		reg.StudentID,
		reg.SubjectID,
		reg.TutorID,
		reg.Status,
		reg.RequestTime,
		reg.ApprovedAt,
		reg.ExpiresAt,
		reg.ReasonForRejection,
		reg.Version,
	).Scan(&reg.ID); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a registration by id.
func (r *RegistrationRepository) FindByID(ctx context.Context, id int64) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE registration_id = $1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &reg, nil
}

// ListByStatus returns every registration in the given status.
func (r *RegistrationRepository) ListByStatus(ctx context.Context, status models.RegistrationStatus) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE registration_status = $1 ORDER BY created_at, registration_id`
	return r.list(ctx, "list registrations by status", query, status)
}

// ListByTutorAndStatus returns registrations assigned to a tutor in the given status.
func (r *RegistrationRepository) ListByTutorAndStatus(ctx context.Context, tutorID int64, status models.RegistrationStatus) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE tutor_id = $1 AND registration_status = $2 ORDER BY created_at, registration_id`
	return r.list(ctx, "list registrations by tutor", query, tutorID, status)
}

// ListByStudentAndStatus returns a student's registrations in the given status.
func (r *RegistrationRepository) ListByStudentAndStatus(ctx context.Context, studentID int64, status models.RegistrationStatus) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE student_id = $1 AND registration_status = $2 ORDER BY created_at, registration_id`
	return r.list(ctx, "list registrations by student and status", query, studentID, status)
}

// ListByStudent returns all registrations a student has made, newest first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE student_id = $1 ORDER BY created_at DESC, registration_id DESC`
	return r.list(ctx, "list registrations by student", query, studentID)
}

// ListByStatusRequestedBefore returns registrations in status whose request time is at or before cutoff.
func (r *RegistrationRepository) ListByStatusRequestedBefore(ctx context.Context, status models.RegistrationStatus, cutoff time.Time) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM tutor_registrations WHERE registration_status = $1 AND created_at <= $2 ORDER BY created_at, registration_id`
	return r.list(ctx, "list stale registrations", query, status, cutoff)
}

// UpdateStatus writes reg's mutable fields only if the stored row still carries
// expectedVersion and observed status. It reports whether the row was changed; a
// false result means another writer got there first. On success reg.Version is advanced.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, reg *models.Registration, observed models.RegistrationStatus, expectedVersion int64) (bool, error) {
	const query = `UPDATE tutor_registrations
SET registration_status = $1, approved_at = $2, reason_for_rejection = $3, version = version + 1
WHERE registration_id = $4 AND version = $5 AND registration_status = $6`
	res, err := r.db.ExecContext(ctx, query,
		reg.Status,
		reg.ApprovedAt,
		reg.ReasonForRejection,
		reg.ID,
		expectedVersion,
		observed,
	)
	if err != nil {
		return false, fmt.Errorf("update registration status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update registration status rows: %w", err)
	}
	if affected != 1 {
		return false, nil
	}
	reg.Version = expectedVersion + 1
	return true, nil
}

func (r *RegistrationRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Registration, error) {
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return regs, nil
}
