package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Nhien18112/system-with-dbs/internal/dto"
	"github.com/Nhien18112/system-with-dbs/internal/middleware"
	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	"github.com/Nhien18112/system-with-dbs/pkg/response"
)

type registrationService interface {
	CreateRequest(ctx context.Context, req dto.CreateRegistrationRequest) (*models.Registration, error)
	CancelRequest(ctx context.Context, registrationID, studentID int64) (bool, error)
	ApproveByID(ctx context.Context, registrationID, tutorID int64) (bool, error)
	RejectByID(ctx context.Context, registrationID, tutorID int64, reason string) (bool, error)
	PendingForTutor(ctx context.Context, tutorID int64) ([]models.Registration, error)
	ApprovedForTutor(ctx context.Context, tutorID int64) ([]models.Registration, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error)
	SuggestTutors(ctx context.Context, subject string) ([]models.TutorSuggestion, error)
}

// RegistrationHandler exposes the tutor registration lifecycle.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler builds a new handler.
func NewRegistrationHandler(service registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// Create godoc
// @Summary Request a tutor for a subject
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tutor-registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req dto.CreateRegistrationRequest
	if !bindJSON(c, &req, "registration") {
		return
	}
	reg, err := h.service.CreateRequest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.RegistrationResult{ID: reg.ID, Status: string(reg.Status)}, nil)
}

// Cancel godoc
// @Summary Cancel a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path int true "Registration ID"
// @Param payload body dto.CancelRegistrationRequest true "Acting student"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutor-registrations/{id}/cancel [post]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRegistrationRequest
	if !bindJSON(c, &req, "cancel") {
		return
	}
	applied, err := h.service.CancelRequest(c.Request.Context(), id, req.StudentID)
	respondTransition(c, id, applied, err, "registration cannot be cancelled")
}

// Approve godoc
// @Summary Approve a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path int true "Registration ID"
// @Param payload body dto.ApproveRegistrationRequest true "Acting tutor"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutor-registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveRegistrationRequest
	if !bindJSON(c, &req, "approval") {
		return
	}
	applied, err := h.service.ApproveByID(c.Request.Context(), id, req.TutorID)
	respondTransition(c, id, applied, err, "registration cannot be approved")
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path int true "Registration ID"
// @Param payload body dto.RejectRegistrationRequest true "Acting tutor and reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutor-registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.RejectRegistrationRequest
	if !bindJSON(c, &req, "rejection") {
		return
	}
	applied, err := h.service.RejectByID(c.Request.Context(), id, req.TutorID, req.Reason)
	respondTransition(c, id, applied, err, "registration cannot be rejected")
}

// Pending godoc
// @Summary List registrations awaiting a tutor
// @Tags Registrations
// @Produce json
// @Param tutor_id query int true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutor-registrations/pending [get]
func (h *RegistrationHandler) Pending(c *gin.Context) {
	tutorID, ok := idQuery(c, "tutor_id")
	if !ok {
		return
	}
	regs, err := h.service.PendingForTutor(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, regs, nil)
}

// Approved godoc
// @Summary List a tutor's approved registrations
// @Tags Registrations
// @Produce json
// @Param tutor_id query int true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutor-registrations/approved [get]
func (h *RegistrationHandler) Approved(c *gin.Context) {
	tutorID, ok := idQuery(c, "tutor_id")
	if !ok {
		return
	}
	regs, err := h.service.ApprovedForTutor(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, regs, nil)
}

// ListByStudent godoc
// @Summary List a student's registrations
// @Tags Registrations
// @Produce json
// @Param student_id query int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /tutor-registrations [get]
func (h *RegistrationHandler) ListByStudent(c *gin.Context) {
	studentID, ok := idQuery(c, "student_id")
	if !ok {
		return
	}
	regs, err := h.service.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, regs, nil)
}

// Suggest godoc
// @Summary Suggest tutors for a subject
// @Tags Matching
// @Produce json
// @Param subject query string false "Subject name fragment"
// @Success 200 {object} response.Envelope
// @Router /tutors/suggestions [get]
func (h *RegistrationHandler) Suggest(c *gin.Context) {
	suggestions, err := h.service.SuggestTutors(c.Request.Context(), c.Query("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(suggestions) == 0 {
		middleware.SetMeta(c, "message", "no matching tutors")
	}
	response.List(c, suggestions, middleware.ExtractMeta(c))
}

func respondTransition(c *gin.Context, id int64, applied bool, err error, rejection string) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if !applied {
		response.Error(c, appErrors.Clone(appErrors.ErrTransitionRejected, rejection))
		return
	}
	response.OK(c, dto.TransitionResult{ID: id, Success: true})
}
