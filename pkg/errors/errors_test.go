package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndMatches(t *testing.T) {
	clone := Clone(ErrValidation, "student not found")

	assert.Equal(t, "student not found", clone.Message)
	assert.Equal(t, ErrValidation.Code, clone.Code)
	assert.True(t, errors.Is(clone, ErrValidation))
	assert.False(t, errors.Is(clone, ErrNotFound))
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)

	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrInternal.Code, ErrInternal.Status, "failed to load registration")
	assert.Equal(t, "failed to load registration: sql: no rows in result set", err.Error())
}

func TestInternalAndInvalidHelpers(t *testing.T) {
	internal := Internal(sql.ErrConnDone, "failed to load meeting")
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.True(t, errors.Is(internal, ErrInternal))
	assert.True(t, errors.Is(internal, sql.ErrConnDone))

	invalid := Invalid(errors.New("bad json"), "invalid appointment payload")
	assert.Equal(t, http.StatusBadRequest, invalid.Status)
	assert.True(t, errors.Is(invalid, ErrValidation))
	assert.Equal(t, "invalid appointment payload: bad json", invalid.Error())
}
