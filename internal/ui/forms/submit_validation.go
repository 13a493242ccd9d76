package forms

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/Its-donkey/e-verify/internal/ui/model"
)

// Field names shared by templates, validators and the JSON API.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldToken       = "token"
	FieldNewPassword = "newPassword"
)

// ValidationError reports input that failed the local checks. The form stays
// Idle and nothing is sent.
type ValidationError struct {
	Fields model.FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ValidateEmail checks that value is a plausible email address.
func ValidateEmail(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Email is required."
	}
	if !strings.Contains(value, "@") {
		return "Enter a valid email address."
	}
	// A bare address only; "Name <addr>" forms are not forwarded.
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "Enter a valid email address."
	}
	return ""
}

func required(value, message string) string {
	if strings.TrimSpace(value) == "" {
		return message
	}
	return ""
}

func collect(pairs ...string) error {
	errs := model.FieldErrors{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if msg := pairs[i+1]; msg != "" {
			errs[pairs[i]] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func validateEmailOnly(in model.FormInput) error {
	return collect(FieldEmail, ValidateEmail(in.Email))
}

func validateRegister(in model.FormInput) error {
	return collect(
		FieldEmail, ValidateEmail(in.Email),
		FieldPassword, required(in.Password, "Password is required."),
	)
}

func validateReset(in model.FormInput) error {
	email := ""
	if strings.TrimSpace(in.Email) != "" {
		email = ValidateEmail(in.Email)
	}
	return collect(
		FieldToken, required(in.Token, "Reset link is missing its token. Request a new one."),
		FieldNewPassword, required(in.NewPassword, "New password is required."),
		FieldEmail, email,
	)
}

func validateVerify(in model.FormInput) error {
	return collect(FieldToken, required(in.Token, "Verification token is missing."))
}
