package submission

import "strings"

// DefaultFailureMessage is shown when a failure carries no message of its own.
const DefaultFailureMessage = "An error occurred."

// Outcome is the tagged result a finished attempt resolves to.
type Outcome struct {
	ok      bool
	message string
}

// Success builds a successful outcome that carries msg.
func Success(msg string) Outcome {
	return Outcome{ok: true, message: strings.TrimSpace(msg)}
}

// Failure builds a failed outcome. Empty messages fall back to
// DefaultFailureMessage so the error region never renders blank.
func Failure(msg string) Outcome {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = DefaultFailureMessage
	}
	return Outcome{ok: false, message: msg}
}

// Message returns the user-facing message.
func (o Outcome) Message() string { return o.message }

func (o Outcome) status() Status {
	if o.ok {
		return StatusSucceeded
	}
	return StatusFailed
}
