package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	for _, err := range []error{
		ErrNotFound, ErrUploadNotFound, ErrPageNotFound, ErrAttemptNotFound,
		ErrQuestionNotFound, ErrChapterNotFound, ErrSubjectNotFound,
		fmt.Errorf("loading page: %w", ErrPageNotFound),
	} {
		assert.True(t, IsNotFoundError(err), err.Error())
	}
	assert.False(t, IsNotFoundError(ErrDuplicate))
	assert.False(t, IsNotFoundError(nil))
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrDuplicateAttempt))
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicateBankEntry)))
	assert.False(t, IsDuplicateError(ErrNotFound))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError("page", "update", "failed to update page", cause)

	assert.Equal(t, "update operation on page failed: failed to update page: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var se *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &se))
	assert.Equal(t, "page", se.Entity)

	bare := NewStoreError("question", "delete", "locked", nil)
	assert.Equal(t, "delete operation on question failed: locked", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
