package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Nhien18112/system-with-dbs/internal/models"
)

// UserRepository reads roles out of the users table. Users are managed elsewhere.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// RolesByID loads the role of every listed user in one round trip. Unknown ids
// are absent from the result.
func (r *UserRepository) RolesByID(ctx context.Context, ids []int64) (map[int64]models.UserRole, error) {
	roles := make(map[int64]models.UserRole, len(ids))
	if len(ids) == 0 {
		return roles, nil
	}

	const query = `SELECT user_id, role FROM users WHERE user_id = ANY($1)`
	var rows []struct {
		ID   int64           `db:"user_id"`
		Role models.UserRole `db:"role"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load roles for %d users: %w", len(ids), err)
	}
	for _, row := range rows {
		roles[row.ID] = row.Role
	}
	return roles, nil
}
