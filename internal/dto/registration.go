package dto

// CreateRegistrationRequest is the payload for a student's tutor request.
type CreateRegistrationRequest struct {
	StudentID int64 `json:"studentId" validate:"required,gt=0"`
	SubjectID int64 `json:"subjectId" validate:"required,gt=0"`
	TutorID   int64 `json:"tutorId" validate:"required,gt=0"`
}

// CancelRegistrationRequest identifies the student withdrawing a request.
type CancelRegistrationRequest struct {
	StudentID int64 `json:"studentId" validate:"required,gt=0"`
}

// ApproveRegistrationRequest identifies the tutor accepting a request.
type ApproveRegistrationRequest struct {
	TutorID int64 `json:"tutorId" validate:"required,gt=0"`
}

// RejectRegistrationRequest identifies the tutor declining a request and why.
type RejectRegistrationRequest struct {
	TutorID int64  `json:"tutorId" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"max=500"`
}

// RegistrationResult is returned after a successful create.
type RegistrationResult struct {
	ID     int64  `json:"registrationId"`
	Status string `json:"status"`
}

// TransitionResult reports a lifecycle mutation outcome.
type TransitionResult struct {
	ID      int64 `json:"id"`
	Success bool  `json:"success"`
}
