package models

import (
	"errors"
	"time"
)

// MeetingKind discriminates the variant payload carried by a Meeting.
type MeetingKind string

const (
	MeetingKindAppointment MeetingKind = "APPOINTMENT"
)

// MeetingStatus is derived from the clock unless the meeting was cancelled.
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "SCHEDULED"
	MeetingStatusOngoing   MeetingStatus = "ONGOING"
	MeetingStatusCompleted MeetingStatus = "COMPLETED"
	MeetingStatusCancelled MeetingStatus = "CANCELLED"
)

// AppointmentStatus tracks the tutor's decision on a student's appointment,
// independently of meeting cancellation.
type AppointmentStatus string

const (
	AppointmentStatusPending  AppointmentStatus = "PENDING"
	AppointmentStatusApproved AppointmentStatus = "APPROVED"
	AppointmentStatusRejected AppointmentStatus = "REJECTED"
)

// ErrInvalidInterval is returned when a meeting would end before it starts.
var ErrInvalidInterval = errors.New("meeting start time must not be after end time")

// Schedulable is the capability set shared by every meeting kind.
type Schedulable interface {
	OverlapsWith(other *Meeting) bool
	Cancel(actorID int64, reason string) bool
	UpdateStatus(now time.Time) MeetingStatus
}

var _ Schedulable = (*Meeting)(nil)

// Meeting is a time-bound session owned by a tutor.
type Meeting struct {
	ID                 int64               `json:"meeting_id"`
	Kind               MeetingKind         `json:"meeting_type"`
	TutorID            int64               `json:"tutor_id"`
	Date               time.Time           `json:"date"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            time.Time           `json:"end_time"`
	Topic              string              `json:"topic"`
	Cancelled          bool                `json:"cancelled"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	Status             MeetingStatus       `json:"status"`
	Appointment        *AppointmentDetails `json:"appointment,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	Version            int64               `json:"-"`
}

// AppointmentDetails is the APPOINTMENT variant payload.
type AppointmentDetails struct {
	StudentID int64             `json:"student_id"`
	Status    AppointmentStatus `json:"appointment_status"`
}

// NewAppointment builds a SCHEDULED meeting whose appointment awaits tutor approval.
func NewAppointment(tutorID, studentID int64, date, start, end time.Time, topic string) (*Meeting, error) {
	if start.After(end) {
		return nil, ErrInvalidInterval
	}
	return &Meeting{
		Kind:      MeetingKindAppointment,
		TutorID:   tutorID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Topic:     topic,
		Status:    MeetingStatusScheduled,
		Appointment: &AppointmentDetails{
			StudentID: studentID,
			Status:    AppointmentStatusPending,
		},
	}, nil
}

// AsAppointment returns the appointment payload when the meeting is an appointment.
func (m *Meeting) AsAppointment() (*AppointmentDetails, bool) {
	if m == nil || m.Kind != MeetingKindAppointment || m.Appointment == nil {
		return nil, false
	}
	return m.Appointment, true
}

// OverlapsWith reports whether both meetings belong to the same tutor and their
// closed intervals intersect. Back-to-back meetings (one ends when the other
// starts) overlap.
func (m *Meeting) OverlapsWith(other *Meeting) bool {
	if m == nil || other == nil {
		return false
	}
	return m.TutorID == other.TutorID &&
		!m.EndTime.Before(other.StartTime) &&
		!m.StartTime.After(other.EndTime)
}

// Cancel marks the meeting cancelled. It returns false without changes when the
// meeting is already completed or cancelled. Ownership is checked by callers.
func (m *Meeting) Cancel(actorID int64, reason string) bool {
	if m.Status == MeetingStatusCompleted || m.Cancelled {
		return false
	}
	m.Cancelled = true
	m.Status = MeetingStatusCancelled
	m.CancellationReason = &reason
	return true
}

// UpdateStatus recomputes the status from now. It is a pure function of the
// clock, the interval and the cancelled flag; nothing calls it in the background.
func (m *Meeting) UpdateStatus(now time.Time) MeetingStatus {
	if m.Cancelled {
		m.Status = MeetingStatusCancelled
		return m.Status
	}
	switch {
	case now.After(m.EndTime):
		m.Status = MeetingStatusCompleted
	case now.After(m.StartTime):
		m.Status = MeetingStatusOngoing
	default:
		m.Status = MeetingStatusScheduled
	}
	return m.Status
}

// Active reports whether the meeting still occupies the tutor's time.
func (m *Meeting) Active() bool {
	return !m.Cancelled
}

// ApproveAppointment accepts a pending appointment on behalf of its tutor.
func (m *Meeting) ApproveAppointment(tutorID int64) bool {
	return m.decide(tutorID, AppointmentStatusApproved)
}

// RejectAppointment declines a pending appointment on behalf of its tutor.
func (m *Meeting) RejectAppointment(tutorID int64) bool {
	return m.decide(tutorID, AppointmentStatusRejected)
}

func (m *Meeting) decide(tutorID int64, next AppointmentStatus) bool {
	appt, ok := m.AsAppointment()
	if !ok || m.Cancelled || m.TutorID != tutorID || appt.Status != AppointmentStatusPending {
		return false
	}
	appt.Status = next
	return true
}
