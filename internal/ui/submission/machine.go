package submission

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrPending is returned by Begin while an attempt is already in flight.
	ErrPending = errors.New("submission already pending")
	// ErrStale is returned by Resolve when the attempt is no longer current,
	// either because a newer attempt started or the machine was unmounted.
	ErrStale = errors.New("stale submission attempt")
	// ErrUnmounted is returned by Begin once the owning form is gone.
	ErrUnmounted = errors.New("submission form unmounted")
)

// Attempt identifies one submission attempt on a Machine.
type Attempt struct {
	ID        uint64
	StartedAt time.Time
}

// Snapshot is an immutable view of a Machine.
type Snapshot struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Attempt   uint64    `json:"attempt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Locked reports whether the form must refuse new submissions.
func (s Snapshot) Locked() bool { return s.Status == StatusPending }

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine is the request status state machine for a single form instance.
// It is safe for concurrent use; the transport goroutine resolves attempts
// while request handlers read snapshots.
type Machine struct {
	mu          sync.Mutex
	status      Status
	message     string
	attempt     uint64
	updatedAt   time.Time
	unmounted   bool
	now         func() time.Time
	subscribers []chan<- Snapshot
}

// New returns a mounted Machine in the Idle state.
func New(opts ...Option) *Machine {
	m := &Machine{status: StatusIdle, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.updatedAt = m.now()
	return m
}

// Begin starts a new attempt. The message is cleared and the machine is
// Pending before Begin returns.
func (m *Machine) Begin() (Attempt, error) {
	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		return Attempt{}, ErrUnmounted
	}
	if !m.transitionLocked(StatusPending, "") {
		m.mu.Unlock()
		return Attempt{}, ErrPending
	}
	m.attempt++
	attempt := Attempt{ID: m.attempt, StartedAt: m.updatedAt}
	snap, subs := m.snapshotLocked(), m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, snap)
	return attempt, nil
}

// Resolve finishes a Pending attempt with the given outcome.
func (m *Machine) Resolve(attempt Attempt, outcome Outcome) error {
	m.mu.Lock()
	if m.unmounted || attempt.ID != m.attempt || !m.transitionLocked(outcome.status(), outcome.Message()) {
		m.mu.Unlock()
		return ErrStale
	}
	snap, subs := m.snapshotLocked(), m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Edit returns a finished form to Idle after the user changes its input.
// It reports whether a transition happened; Idle and Pending are unaffected.
func (m *Machine) Edit() bool {
	return m.toIdle()
}

// Reset clears a finished form back to Idle. A Pending form stays locked.
func (m *Machine) Reset() bool {
	return m.toIdle()
}

func (m *Machine) toIdle() bool {
	m.mu.Lock()
	if m.unmounted || !m.transitionLocked(StatusIdle, "") {
		m.mu.Unlock()
		return false
	}
	snap, subs := m.snapshotLocked(), m.subscribersLocked()
	m.mu.Unlock()

	notify(subs, snap)
	return true
}

// Unmount tears the machine down. An in-flight attempt keeps running but its
// resolution is discarded.
func (m *Machine) Unmount() {
	m.mu.Lock()
	m.unmounted = true
	m.subscribers = nil
	m.mu.Unlock()
}

// Mounted reports whether the machine still has an owning form.
func (m *Machine) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unmounted
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers ch to receive every state change. Sends never block;
// a full channel misses the update. The returned func unsubscribes.
func (m *Machine) Subscribe(ch chan<- Snapshot) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return func() {}
	}
	m.subscribers = append(m.subscribers, ch)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subscribers {
			if sub == ch {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				break
			}
		}
	}
}

// transitionLocked moves to status when the transition table allows it.
func (m *Machine) transitionLocked(to Status, message string) bool {
	if !CanTransition(m.status, to) {
		return false
	}
	m.status = to
	m.message = message
	m.updatedAt = m.now()
	return true
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Status:    m.status,
		Message:   m.message,
		Attempt:   m.attempt,
		UpdatedAt: m.updatedAt,
	}
}

func (m *Machine) subscribersLocked() []chan<- Snapshot {
	if len(m.subscribers) == 0 {
		return nil
	}
	cp := make([]chan<- Snapshot, len(m.subscribers))
	copy(cp, m.subscribers)
	return cp
}

func notify(subs []chan<- Snapshot, snap Snapshot) {
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
