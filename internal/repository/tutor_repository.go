package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

// TutorRepository answers matching queries over tutor expertise and feedback.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs a TutorRepository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// ListCandidatesBySubject returns tutors offering a subject whose name contains
// the given text, case-insensitively. Ratings are averaged per tutor and left
// NULL when no feedback exists; ranking is the caller's concern.
func (r *TutorRepository) ListCandidatesBySubject(ctx context.Context, subject string) ([]models.TutorCandidate, error) {
	const query = `SELECT u.user_id AS tutor_id, u.full_name,
       (SELECT AVG(f.rating)::float8 FROM feedback f WHERE f.tutor_id = u.user_id) AS average_rating,
       COUNT(*) FILTER (WHERE te.is_available) AS available_slots
FROM users u
JOIN tutor_expertise te ON te.tutor_id = u.user_id
JOIN subjects s ON s.subject_id = te.subject_id
WHERE u.role = 'TUTOR' AND s.subject_name ILIKE $1 ESCAPE '\'
GROUP BY u.user_id, u.full_name`

	pattern := "%" + escapeLike(subject) + "%"
	var candidates []models.TutorCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, pattern); err != nil {
		return nil, fmt.Errorf("list tutor candidates: %w", err)
	}
	return candidates, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
