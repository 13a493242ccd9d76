package forms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
	"github.com/Its-donkey/e-verify/internal/ui/transport"
	"github.com/Its-donkey/e-verify/logging"
)

// ErrSubmitInFlight is returned when Submit is called while the form is
// Pending. Nothing is sent.
var ErrSubmitInFlight = errors.New("form submission already in flight")

// Sender performs the round trip for one attempt.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (model.BackendResponse, error)
}

// Runner executes the transport task of an attempt.
type Runner func(task func())

// GoRunner runs each task on its own goroutine.
func GoRunner(task func()) { go task() }

// SyncRunner runs the task before Submit returns. Tests use it.
func SyncRunner(task func()) { task() }

// Observer is notified about attempt lifecycle events.
type Observer interface {
	AttemptStarted(flow model.FlowKey)
	AttemptFinished(flow model.FlowKey, status submission.Status, duration time.Duration)
	AttemptDiscarded(flow model.FlowKey)
	ValidationFailed(flow model.FlowKey)
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Flow     Flow
	Sender   Sender
	Runner   Runner
	Logger   *logging.Logger
	Observer Observer
	Machine  *submission.Machine
}

// Controller binds one form's input to its submission machine.
type Controller struct {
	flow     Flow
	sender   Sender
	runner   Runner
	logger   *logging.Logger
	observer Observer
	machine  *submission.Machine

	mu    sync.Mutex
	value model.FormInput
}

// NewController builds a Controller in the Idle state.
func NewController(opts ControllerOptions) *Controller {
	machine := opts.Machine
	if machine == nil {
		machine = submission.New()
	}
	runner := opts.Runner
	if runner == nil {
		runner = GoRunner
	}
	return &Controller{
		flow:     opts.Flow,
		sender:   opts.Sender,
		runner:   runner,
		logger:   opts.Logger,
		observer: opts.Observer,
		machine:  machine,
	}
}

// Flow returns the form definition the controller serves.
func (c *Controller) Flow() Flow { return c.flow }

// Snapshot returns the current submission state.
func (c *Controller) Snapshot() submission.Snapshot { return c.machine.Snapshot() }

// Machine exposes the underlying state machine for subscriptions.
func (c *Controller) Machine() *submission.Machine { return c.machine }

// Value returns the last input the user entered.
func (c *Controller) Value() model.FormInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Submit validates in and starts an attempt. The machine is Pending before
// Submit returns; the round trip runs on the controller's Runner. While
// Pending, Submit is a no-op returning ErrSubmitInFlight. Invalid input
// returns a *ValidationError and leaves the state untouched.
func (c *Controller) Submit(ctx context.Context, in model.FormInput) (submission.Attempt, error) {
	attempt, err := c.begin(in)
	if err != nil {
		return submission.Attempt{}, err
	}
	if c.observer != nil {
		c.observer.AttemptStarted(c.flow.Key)
	}

	var payload any
	if c.flow.Payload != nil {
		payload = c.flow.Payload(in)
	}
	req := transport.Request{Method: c.flow.Method, Path: c.flow.Endpoint, Payload: payload}
	requestID := logging.RequestIDFromContext(ctx)
	// The round trip outlives the HTTP request that triggered it.
	taskCtx := context.WithoutCancel(ctx)

	c.runner(func() {
		c.run(taskCtx, attempt, req, requestID)
	})
	return attempt, nil
}

// begin validates in and starts the attempt. The stored input only changes
// when the form is not Pending, so it always matches the attempt in flight.
func (c *Controller) begin(in model.FormInput) (submission.Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Snapshot().Locked() {
		return submission.Attempt{}, ErrSubmitInFlight
	}
	if c.flow.Validate != nil {
		if err := c.flow.Validate(in); err != nil {
			c.value = in
			if c.observer != nil {
				c.observer.ValidationFailed(c.flow.Key)
			}
			return submission.Attempt{}, err
		}
	}
	attempt, err := c.machine.Begin()
	if errors.Is(err, submission.ErrPending) {
		return submission.Attempt{}, ErrSubmitInFlight
	}
	if err != nil {
		return submission.Attempt{}, err
	}
	c.value = in
	return attempt, nil
}

func (c *Controller) run(ctx context.Context, attempt submission.Attempt, req transport.Request, requestID string) {
	log := c.logger.WithRequestID(requestID).
		WithCategory("submit").
		WithField("flow", string(c.flow.Key)).
		WithField("attempt", attempt.ID)

	outcome := c.exchange(ctx, req, log)

	if err := c.machine.Resolve(attempt, outcome); err != nil {
		log.Debug("discarded late response")
		if c.observer != nil {
			c.observer.AttemptDiscarded(c.flow.Key)
		}
		return
	}
	status := c.machine.Snapshot().Status
	log.WithField("status", status.String()).Info("submission resolved")
	if c.observer != nil {
		c.observer.AttemptFinished(c.flow.Key, status, time.Since(attempt.StartedAt))
	}
}

func (c *Controller) exchange(ctx context.Context, req transport.Request, log *logging.LogContext) submission.Outcome {
	if c.sender == nil {
		log.Error("no transport configured", nil)
		return submission.Failure(transport.GenericErrorMessage)
	}
	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		log.Error("transport failed", err)
		return submission.Failure(transport.GenericErrorMessage)
	}
	classifier := c.flow.Classifier
	if classifier == nil {
		classifier = ExplicitStatus{}
	}
	return classifier.Classify(resp)
}

// Edit records new user input. A finished form returns to Idle; a Pending
// form keeps its lock and the stored input is left alone.
func (c *Controller) Edit(in model.FormInput) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Snapshot().Locked() {
		return false
	}
	c.value = in
	return c.machine.Edit()
}

// Reset clears a finished form's status and input.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.machine.Reset() {
		return false
	}
	c.value = model.FormInput{}
	return true
}

// Unmount tears the form down; in-flight responses are discarded.
func (c *Controller) Unmount() {
	c.machine.Unmount()
}
