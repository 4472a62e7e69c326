package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Nhien18112/system-with-dbs/internal/dto"
	"github.com/Nhien18112/system-with-dbs/internal/middleware"
	"github.com/Nhien18112/system-with-dbs/internal/models"
	"github.com/Nhien18112/system-with-dbs/pkg/response"
)

type schedulingService interface {
	BookAppointment(ctx context.Context, req dto.BookAppointmentRequest) (*dto.BookingResult, error)
	CancelMeeting(ctx context.Context, meetingID, actorID int64, reason string) (bool, error)
	ApproveAppointment(ctx context.Context, meetingID, tutorID int64) (bool, error)
	RejectAppointment(ctx context.Context, meetingID, tutorID int64) (bool, error)
	GetMeeting(ctx context.Context, meetingID int64) (*models.Meeting, error)
	FindConflicts(ctx context.Context, meetingID int64) ([]models.Meeting, error)
	ListApprovedAppointments(ctx context.Context, studentID int64) ([]models.Meeting, error)
	ViewHistory(ctx context.Context, studentID int64) ([]models.Meeting, error)
	ListCancellableAppointments(ctx context.Context, studentID int64) ([]models.Meeting, error)
}

// SchedulingHandler exposes appointment booking and meeting management.
type SchedulingHandler struct {
	service schedulingService
}

// NewSchedulingHandler builds a new handler.
func NewSchedulingHandler(service schedulingService) *SchedulingHandler {
	return &SchedulingHandler{service: service}
}

// Book godoc
// @Summary Book an appointment with a tutor
// @Description Overlapping bookings are reported in the response unless the server rejects them.
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.BookAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *SchedulingHandler) Book(c *gin.Context) {
	var req dto.BookAppointmentRequest
	if !bindJSON(c, &req, "appointment") {
		return
	}
	result, err := h.service.BookAppointment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "conflicts", len(result.Conflicts))
	response.Created(c, result, middleware.ExtractMeta(c))
}

// Approved godoc
// @Summary List a student's approved appointments
// @Tags Appointments
// @Produce json
// @Param student_id query int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/approved [get]
func (h *SchedulingHandler) Approved(c *gin.Context) {
	h.listForStudent(c, h.service.ListApprovedAppointments)
}

// History godoc
// @Summary List every appointment a student booked
// @Tags Appointments
// @Produce json
// @Param student_id query int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/history [get]
func (h *SchedulingHandler) History(c *gin.Context) {
	h.listForStudent(c, h.service.ViewHistory)
}

// Cancellable godoc
// @Summary List a student's appointments that can still be cancelled
// @Tags Appointments
// @Produce json
// @Param student_id query int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/cancellable [get]
func (h *SchedulingHandler) Cancellable(c *gin.Context) {
	h.listForStudent(c, h.service.ListCancellableAppointments)
}

// ApproveAppointment godoc
// @Summary Approve a pending appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body dto.AppointmentDecisionRequest true "Acting tutor"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/approve [post]
func (h *SchedulingHandler) ApproveAppointment(c *gin.Context) {
	h.decide(c, h.service.ApproveAppointment, "appointment cannot be approved")
}

// RejectAppointment godoc
// @Summary Reject a pending appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body dto.AppointmentDecisionRequest true "Acting tutor"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/reject [post]
func (h *SchedulingHandler) RejectAppointment(c *gin.Context) {
	h.decide(c, h.service.RejectAppointment, "appointment cannot be rejected")
}

// GetMeeting godoc
// @Summary Get a meeting with its current status
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *SchedulingHandler) GetMeeting(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	meeting, err := h.service.GetMeeting(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, meeting)
}

// Conflicts godoc
// @Summary List meetings of the same tutor overlapping a meeting
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id}/conflicts [get]
func (h *SchedulingHandler) Conflicts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conflicts, err := h.service.FindConflicts(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, conflicts, nil)
}

// CancelMeeting godoc
// @Summary Cancel a meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body dto.CancelMeetingRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/cancel [post]
func (h *SchedulingHandler) CancelMeeting(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.CancelMeetingRequest
	if !bindJSON(c, &req, "cancellation") {
		return
	}
	applied, err := h.service.CancelMeeting(c.Request.Context(), id, req.ActorID, req.Reason)
	respondTransition(c, id, applied, err, "meeting cannot be cancelled")
}

func (h *SchedulingHandler) decide(c *gin.Context, apply func(context.Context, int64, int64) (bool, error), rejection string) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.AppointmentDecisionRequest
	if !bindJSON(c, &req, "decision") {
		return
	}
	applied, err := apply(c.Request.Context(), id, req.TutorID)
	respondTransition(c, id, applied, err, rejection)
}

func (h *SchedulingHandler) listForStudent(c *gin.Context, list func(context.Context, int64) ([]models.Meeting, error)) {
	studentID, ok := idQuery(c, "student_id")
	if !ok {
		return
	}
	meetings, err := list(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, meetings, nil)
}
