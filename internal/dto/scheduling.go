package dto

import (
	"time"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

// BookAppointmentRequest books a student into a tutor's time.
type BookAppointmentRequest struct {
	StudentID int64     `json:"studentId" validate:"required,gt=0"`
	TutorID   int64     `json:"tutorId" validate:"required,gt=0"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Topic     string    `json:"topic" validate:"max=255"`
}

// CancelMeetingRequest carries the cancellation reason and, optionally, who asked.
type CancelMeetingRequest struct {
	ActorID int64  `json:"actorId" validate:"omitempty,gt=0"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

// AppointmentDecisionRequest identifies the tutor approving or rejecting an appointment.
type AppointmentDecisionRequest struct {
	TutorID int64 `json:"tutorId" validate:"required,gt=0"`
}

// BookingResult is the outcome of a booking. Conflicts lists active meetings of
// the same tutor overlapping the new appointment.
type BookingResult struct {
	Meeting   *models.Meeting  `json:"meeting"`
	Conflicts []models.Meeting `json:"conflicts"`
}
