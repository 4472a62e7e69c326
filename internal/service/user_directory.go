package service

import (
	"context"

	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
)

type roleStore interface {
	RolesByID(ctx context.Context, ids []int64) (map[int64]models.UserRole, error)
}

// UserDirectory resolves user identifiers to roles.
type UserDirectory struct {
	users roleStore
}

func NewUserDirectory(users roleStore) *UserDirectory {
	return &UserDirectory{users: users}
}

// ResolveRoles returns the role of each known id. Missing users are left out of
// the map rather than reported as an error.
func (d *UserDirectory) ResolveRoles(ctx context.Context, ids ...int64) (map[int64]models.UserRole, error) {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	roles, err := d.users.RolesByID(ctx, unique)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load users")
	}
	return roles, nil
}
