package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load catalog: %w", Clone(ErrPreconditionFailed, "catalog is empty"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrPreconditionFailed.Code, appErr.Code)
	assert.Equal(t, "catalog is empty", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(stderrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "internal server error: boom", appErr.Error())
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "timetable run not found")
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Equal(t, "timetable run not found", clone.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestWrapUnwraps(t *testing.T) {
	cause := stderrors.New("dial tcp")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "redis unavailable")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "redis unavailable: dial tcp", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("grid: %w", Clone(ErrNotFound, "unknown target"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.False(t, stderrors.Is(stderrors.New("plain"), ErrNotFound))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusPreconditionFailed, StatusOf(Clone(ErrPreconditionFailed, "pending")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stderrors.New("boom")))
}
