package forms

import (
	"strings"

	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
)

// Classifier decides whether a decoded backend response counts as success.
type Classifier interface {
	Classify(resp model.BackendResponse) submission.Outcome
}

// ExplicitStatus treats only status "success" as a successful answer.
type ExplicitStatus struct{}

// Classify implements Classifier.
func (ExplicitStatus) Classify(resp model.BackendResponse) submission.Outcome {
	if isSuccessStatus(resp.Status) {
		return submission.Success(resp.Message)
	}
	return submission.Failure(resp.Message)
}

// ResetLinkHeuristic accepts an explicit success status, or any message that
// mentions a "reset link". The forgot-password endpoint answers
// "If the email exists, a reset link will be sent." without a status field,
// so the message text is the only success marker it gives. Drop this once the
// backend always sets status.
type ResetLinkHeuristic struct{}

// Classify implements Classifier.
func (ResetLinkHeuristic) Classify(resp model.BackendResponse) submission.Outcome {
	if isSuccessStatus(resp.Status) || strings.Contains(strings.ToLower(resp.Message), "reset link") {
		return submission.Success(resp.Message)
	}
	return submission.Failure(resp.Message)
}

func isSuccessStatus(status string) bool {
	return status == "success"
}
