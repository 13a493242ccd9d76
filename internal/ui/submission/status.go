// Package submission tracks the lifecycle of one user-initiated request per
// form instance: Idle, Pending, then Succeeded or Failed.
package submission

// Status is the lifecycle position of a form's current submission attempt.
type Status string

const (
	// StatusIdle means no attempt is in flight and nothing is shown.
	StatusIdle Status = "idle"
	// StatusPending means one request is in flight and the form is locked.
	StatusPending Status = "pending"
	// StatusSucceeded means the last attempt resolved with a success indicator.
	StatusSucceeded Status = "success"
	// StatusFailed means the last attempt resolved with a failure or a transport error.
	StatusFailed Status = "error"
)

// String returns the wire form of the status.
func (s Status) String() string {
	return string(s)
}

// Region names the UI region a renderer should show for the status.
func (s Status) Region() string {
	switch s {
	case StatusPending:
		return "progress"
	case StatusSucceeded:
		return "success"
	case StatusFailed:
		return "error"
	default:
		return ""
	}
}

var validTransitions = map[Status][]Status{
	StatusIdle:      {StatusPending},
	StatusPending:   {StatusSucceeded, StatusFailed},
	StatusSucceeded: {StatusPending, StatusIdle},
	StatusFailed:    {StatusPending, StatusIdle},
}

// CanTransition reports whether moving from one status to another is allowed.
// Succeeded and Failed never move directly into each other.
func CanTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
