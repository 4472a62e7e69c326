package models

import "time"

// RegistrationStatus represents the lifecycle of a tutor registration.
type RegistrationStatus string

// Registration statuses. CREATING is a transient pre-state treated like PENDING for cancellation.
const (
	RegistrationStatusCreating  RegistrationStatus = "CREATING"
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusApproved  RegistrationStatus = "APPROVED"
	RegistrationStatusRejected  RegistrationStatus = "REJECTED"
	RegistrationStatusCancelled RegistrationStatus = "CANCELLED"
)

// RegistrationTransition is one allowed edge of the registration state machine.
type RegistrationTransition struct {
	From RegistrationStatus
	To   RegistrationStatus
}

var registrationTransitions = []RegistrationTransition{
	{From: RegistrationStatusCreating, To: RegistrationStatusCancelled},
	{From: RegistrationStatusPending, To: RegistrationStatusApproved},
	{From: RegistrationStatusPending, To: RegistrationStatusRejected},
	{From: RegistrationStatusPending, To: RegistrationStatusCancelled},
}

// CanTransitionTo reports whether the state machine has an edge from s to next.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	for _, tr := range registrationTransitions {
		if tr.From == s && tr.To == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s RegistrationStatus) Terminal() bool {
	switch s {
	case RegistrationStatusApproved, RegistrationStatusRejected, RegistrationStatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusCreating, RegistrationStatusPending, RegistrationStatusApproved,
		RegistrationStatusRejected, RegistrationStatusCancelled:
		return true
	default:
		return false
	}
}

// Registration is a student's request to be paired with a tutor for a subject.
// Version increments on every persisted transition and guards compare-and-set updates.
type Registration struct {
	ID                 int64              `db:"registration_id" json:"registration_id"`
	StudentID          int64              `db:"student_id" json:"student_id"`
	SubjectID          int64              `db:"subject_id" json:"subject_id"`
	TutorID            *int64             `db:"tutor_id" json:"tutor_id,omitempty"`
	Status             RegistrationStatus `db:"registration_status" json:"registration_status"`
	RequestTime        time.Time          `db:"created_at" json:"created_at"`
	ApprovedAt         *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	ExpiresAt          *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	ReasonForRejection *string            `db:"reason_for_rejection" json:"reason_for_rejection,omitempty"`
	Version            int64              `db:"version" json:"-"`
}

// OwnedByTutor reports whether tutorID is the registration's assigned tutor.
// An unassigned registration is owned by no tutor.
func (r *Registration) OwnedByTutor(tutorID int64) bool {
	return r.TutorID != nil && *r.TutorID == tutorID
}
