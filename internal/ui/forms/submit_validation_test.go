package forms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/e-verify/internal/ui/model"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", "Email is required."},
		{"whitespace", "  \t", "Email is required."},
		{"missing at", "user.example.com", "Enter a valid email address."},
		{"unparseable", "user@", "Enter a valid email address."},
		{"display name", "Bob <bob@example.com>", "Enter a valid email address."},
		{"angle brackets", "<bob@example.com>", "Enter a valid email address."},
		{"valid", "user@example.com", ""},
		{"valid padded", "  user@example.com ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.value))
		})
	}
}

func fieldErrors(t *testing.T, err error) model.FieldErrors {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Fields
}

func TestValidateRegister(t *testing.T) {
	fields := fieldErrors(t, validateRegister(model.FormInput{}))
	assert.True(t, fields.Has(FieldEmail))
	assert.True(t, fields.Has(FieldPassword))

	assert.NoError(t, validateRegister(model.FormInput{Email: "a@example.com", Password: "pw"}))
}

func TestValidateReset(t *testing.T) {
	fields := fieldErrors(t, validateReset(model.FormInput{}))
	assert.True(t, fields.Has(FieldToken))
	assert.True(t, fields.Has(FieldNewPassword))
	assert.False(t, fields.Has(FieldEmail), "email is optional on reset")

	fields = fieldErrors(t, validateReset(model.FormInput{Token: "t", NewPassword: "p", Email: "nope"}))
	assert.Equal(t, "Enter a valid email address.", fields[FieldEmail])

	assert.NoError(t, validateReset(model.FormInput{Token: "t", NewPassword: "p"}))
}

func TestValidateVerify(t *testing.T) {
	fields := fieldErrors(t, validateVerify(model.FormInput{Token: " "}))
	assert.Equal(t, "Verification token is missing.", fields[FieldToken])
	assert.NoError(t, validateVerify(model.FormInput{Token: "abc"}))
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: model.FieldErrors{"password": "b", "email": "a"}}
	assert.Equal(t, "invalid input: email: a; password: b", err.Error())
}
