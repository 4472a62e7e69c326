package models

// TutorCandidate is a raw matching row: a tutor offering a subject whose name
// matched the query. AverageRating is nil when the tutor has no feedback yet.
type TutorCandidate struct {
	TutorID        int64    `db:"tutor_id"`
	FullName       string   `db:"full_name"`
	AverageRating  *float64 `db:"average_rating"`
	AvailableSlots int      `db:"available_slots"`
}

// TutorSuggestion is a ranked matching result. It is never persisted.
type TutorSuggestion struct {
	TutorID        int64   `json:"tutor_id"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	AvailableSlots int     `json:"available_slots"`
}
