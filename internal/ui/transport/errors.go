package transport

import (
	"errors"
	"fmt"
)

// GenericErrorMessage is what users see for any network-level failure.
const GenericErrorMessage = "Server error. Please try again."

// TransportError reports a failed round trip: the request never completed or
// the response body could not be decoded. The cause stays internal.
type TransportError struct {
	Op    string
	URL   string
	Cause error
	// Detail is a short description of an unparsable body, such as the
	// <title> of an HTML error page.
	Detail string
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Cause)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Cause }

// UserMessage is the message surfaced to the form.
func (e *TransportError) UserMessage() string { return GenericErrorMessage }

// ErrNotJSON marks a response body that is not a JSON object.
var ErrNotJSON = errors.New("response body is not JSON")

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
