package forms

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Its-donkey/e-verify/internal/ui/model"
)

// ErrUnknownFlow is returned when a flow key has no definition.
var ErrUnknownFlow = errors.New("unknown form flow")

// Flow describes one account form: what it validates, where it posts and how
// the answer is judged.
type Flow struct {
	Key        model.FlowKey
	Title      string
	Method     string
	Endpoint   string
	Classifier Classifier
	Validate   func(model.FormInput) error
	Payload    func(model.FormInput) any
}

// Flows returns the definitions of every supported form, keyed by flow.
func Flows() map[model.FlowKey]Flow {
	return map[model.FlowKey]Flow{
		model.FlowVerify: {
			Key:        model.FlowVerify,
			Title:      "Verify your email",
			Method:     http.MethodPost,
			Endpoint:   "/verify",
			Classifier: ExplicitStatus{},
			Validate:   validateVerify,
			Payload: func(in model.FormInput) any {
				return model.VerifyRequest{Token: strings.TrimSpace(in.Token)}
			},
		},
		model.FlowRegister: {
			Key:        model.FlowRegister,
			Title:      "Verify your email",
			Method:     http.MethodPost,
			Endpoint:   "/",
			Classifier: ExplicitStatus{},
			Validate:   validateRegister,
			Payload: func(in model.FormInput) any {
				return model.RegisterRequest{Email: strings.TrimSpace(in.Email), Password: in.Password}
			},
		},
		model.FlowForgotPassword: {
			Key:        model.FlowForgotPassword,
			Title:      "Forgot Password",
			Method:     http.MethodPost,
			Endpoint:   "/forgot-password",
			Classifier: ResetLinkHeuristic{},
			Validate:   validateEmailOnly,
			Payload: func(in model.FormInput) any {
				return model.EmailRequest{Email: strings.TrimSpace(in.Email)}
			},
		},
		model.FlowResetPassword: {
			Key:        model.FlowResetPassword,
			Title:      "Reset Password",
			Method:     http.MethodPost,
			Endpoint:   "/reset-password",
			Classifier: ExplicitStatus{},
			Validate:   validateReset,
			Payload: func(in model.FormInput) any {
				return model.ResetPasswordRequest{
					Token:       strings.TrimSpace(in.Token),
					NewPassword: in.NewPassword,
					Email:       strings.TrimSpace(in.Email),
				}
			},
		},
		model.FlowResendVerification: {
			Key:        model.FlowResendVerification,
			Title:      "Resend Verification",
			Method:     http.MethodPost,
			Endpoint:   "/resend-verification",
			Classifier: ExplicitStatus{},
			Validate:   validateEmailOnly,
			Payload: func(in model.FormInput) any {
				return model.EmailRequest{Email: strings.TrimSpace(in.Email)}
			},
		},
	}
}

// Lookup returns the flow definition for key.
func Lookup(key model.FlowKey) (Flow, error) {
	flow, ok := Flows()[key]
	if !ok {
		return Flow{}, fmt.Errorf("%w: %q", ErrUnknownFlow, key)
	}
	return flow, nil
}
