package model

// FlowKey identifies one of the account forms rendered by the UI.
type FlowKey string

const (
	// FlowVerify confirms an email address from the token sent by the backend.
	FlowVerify FlowKey = "verify"
	// FlowRegister requests an account (or a fresh verification email) from the landing page.
	FlowRegister FlowKey = "register"
	// FlowForgotPassword requests a password reset link.
	FlowForgotPassword FlowKey = "forgot-password"
	// FlowResetPassword sets a new password using the emailed reset token.
	FlowResetPassword FlowKey = "reset-password"
	// FlowResendVerification asks the backend to resend the verification email.
	FlowResendVerification FlowKey = "resend-verification"
)

// BackendResponse is the JSON envelope every account endpoint answers with.
// Both fields are optional on the wire.
type BackendResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// EmailRequest is posted by the forgot-password and resend-verification forms.
type EmailRequest struct {
	Email string `json:"email"`
}

// RegisterRequest is posted by the landing page account form.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest carries the reset token and the new password. Email is
// forwarded when the user supplied it; older backends match it against the
// reset request.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	Email       string `json:"email,omitempty"`
}

// VerifyRequest confirms an email address using the emailed token.
type VerifyRequest struct {
	Token string `json:"token"`
}

// FormInput is the raw user input of any account form. Each flow reads the
// fields it needs.
type FormInput struct {
	Email       string
	Password    string
	Token       string
	NewPassword string
}

// FieldErrors maps a form field name to its inline validation message.
type FieldErrors map[string]string

// Has reports whether field carries an error.
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}
