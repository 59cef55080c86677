package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkedErrorsClassify(t *testing.T) {
	err := NewError("reason is blank").
		WithHint("A reason is required to reject a document").
		Mark(ErrValidation)

	assert.True(t, IsValidation(err))
	assert.False(t, IsInvalidTransition(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeValidation, CodeFromErr(err))
	assert.Equal(t, "A reason is required to reject a document", DisplayMessage(err))
}

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition", NewError("x").Mark(ErrInvalidTransition), http.StatusConflict},
		{"precondition", NewError("x").Mark(ErrPreconditionFailed), http.StatusUnprocessableEntity},
		{"not found", NewError("x").Mark(ErrNotFound), http.StatusNotFound},
		{"permission", NewError("x").Mark(ErrPermissionDenied), http.StatusForbidden},
		{"unmarked", NewError("x").WithMessage("boom").err, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestSafeDetails(t *testing.T) {
	err := NewError("gap too small").
		WithReportableDetails(map[string]any{"min_next_revision_date": "2024-04-30"}).
		Mark(ErrPreconditionFailed)

	details := SafeDetails(err)
	assert.Equal(t, "2024-04-30", details["min_next_revision_date"])
	assert.Equal(t, "An unexpected error occurred", DisplayMessage(err))
	assert.Nil(t, SafeDetails(NewError("plain").Mark(ErrSystem)))
}
