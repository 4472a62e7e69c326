package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhien18112/system-with-dbs/internal/models"
	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
)

type recordingRoleStore struct {
	asked []int64
	roles map[int64]models.UserRole
	err   error
}

func (s *recordingRoleStore) RolesByID(ctx context.Context, ids []int64) (map[int64]models.UserRole, error) {
	s.asked = append(s.asked, ids...)
	if s.err != nil {
		return nil, s.err
	}
	return s.roles, nil
}

func TestResolveRolesDeduplicatesIDs(t *testing.T) {
	store := &recordingRoleStore{roles: map[int64]models.UserRole{7: models.RoleTutor}}
	dir := NewUserDirectory(store)

	roles, err := dir.ResolveRoles(context.Background(), 7, 7, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, store.asked)
	assert.Equal(t, models.RoleTutor, roles[7])
	_, ok := roles[8]
	assert.False(t, ok)
}

func TestResolveRolesWrapsStorageErrors(t *testing.T) {
	dir := NewUserDirectory(&recordingRoleStore{err: errors.New("pool exhausted")})

	_, err := dir.ResolveRoles(context.Background(), 1)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
