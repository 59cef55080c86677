package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "sop-portal/portal-backend/internal/errors"
)

type sample struct {
	Name  string `validate:"required"`
	Email string `validate:"omitempty,email"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sample{Name: "Finance SOP"}))

	err := ValidateRequest(sample{Email: "not-an-email"})
	assert.True(t, ierr.IsValidation(err))

	details := ierr.SafeDetails(err)
	assert.Contains(t, details, "Name")
	assert.Contains(t, details, "Email")
}
