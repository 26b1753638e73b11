package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		status   int
	}{
		{"validation", Validation("TITLE_REQUIRED", "title is required"), ErrValidation, http.StatusBadRequest},
		{"not found", NotFound("COMPLAINT_NOT_FOUND", "complaint 7 not found"), ErrNotFound, http.StatusNotFound},
		{"forbidden", Forbidden("ACCESS_DENIED", "not your complaint"), ErrForbidden, http.StatusForbidden},
		{"conflict", Conflict("CONCURRENT_UPDATE", "retry"), ErrConflict, http.StatusConflict},
		{"internal", Internal("save complaint", errors.New("disk full")), ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.status, Status(wrapped))

			got, ok := As(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.err.Code, got.Code)
		})
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("load complaint", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestValidationFieldErrors(t *testing.T) {
	err := Validation("INVALID_COMPLAINT", "missing fields",
		FieldError{Field: "title", Message: "required"},
		FieldError{Field: "latitude", Message: "required"},
	)

	assert.Len(t, err.FieldErrors, 2)
	assert.Equal(t, "latitude", err.FieldErrors[1].Field)
}

func TestStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("boom")))
}
