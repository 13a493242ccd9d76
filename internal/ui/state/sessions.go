// Package state keeps the per-browser-session form controllers.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/logging"
)

// DefaultTTL is how long an idle session keeps its forms mounted.
const DefaultTTL = 30 * time.Minute

var (
	// ErrNoFactory is returned when a session has no way to mount a form.
	ErrNoFactory = errors.New("session has no controller factory")
	// ErrSessionClosed is returned when a form is requested from an expired
	// session. Callers start a new session.
	ErrSessionClosed = errors.New("session closed")
)

// Factory mounts a new controller for flow.
type Factory func(flow model.FlowKey) (*forms.Controller, error)

// Options configures Sessions.
type Options struct {
	TTL     time.Duration
	Factory Factory
	Logger  *logging.Logger
	Now     func() time.Time
}

// Sessions is an in-memory registry of browser sessions.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	factory  Factory
	logger   *logging.Logger
	now      func() time.Time
}

// NewSessions constructs an empty registry.
func NewSessions(opts Options) *Sessions {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		ttl:      opts.TTL,
		factory:  opts.Factory,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Get returns the live session id and marks it as seen.
func (s *Sessions) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.expired(s.now(), s.ttl) {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// Ensure returns the session for id, creating a fresh one when id is unknown
// or expired. The boolean reports whether a new session was created.
func (s *Sessions) Ensure(id string) (*Session, bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	sess := &Session{
		id:          uuid.NewString(),
		factory:     s.factory,
		controllers: make(map[model.FlowKey]*forms.Controller),
		tokens:      make(map[string]struct{}),
		lastSeen:    s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logger.Debug("session", "session created", map[string]any{"session": sess.id})
	return sess, true
}

// Expire removes id and unmounts its forms.
func (s *Sessions) Expire(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.unmount()
	s.logger.Debug("session", "session expired", map[string]any{"session": id})
	return true
}

// Sweep expires every session idle for longer than the TTL and returns how
// many were removed.
func (s *Sessions) Sweep() int {
	now := s.now()
	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.unmount()
	}
	if len(stale) > 0 {
		s.logger.Info("session", "expired idle sessions", map[string]any{"count": len(stale)})
	}
	return len(stale)
}

// Run sweeps on every interval until ctx is done, then unmounts everything.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close unmounts and removes every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.unmount()
	}
}

// Len reports the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session holds the mounted forms of one browser.
type Session struct {
	id      string
	factory Factory

	mu          sync.Mutex
	controllers map[model.FlowKey]*forms.Controller
	tokens      map[string]struct{}
	lastSeen    time.Time
	closed      bool
}

// ID returns the session identifier stored in the cookie.
func (s *Session) ID() string { return s.id }

// Controller returns the controller for flow, mounting it on first use.
func (s *Session) Controller(flow model.FlowKey) (*forms.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if c, ok := s.controllers[flow]; ok {
		return c, nil
	}
	if s.factory == nil {
		return nil, ErrNoFactory
	}
	c, err := s.factory(flow)
	if err != nil {
		return nil, err
	}
	s.controllers[flow] = c
	return c, nil
}

// Mounted returns the controller for flow without mounting one.
func (s *Session) Mounted(flow model.FlowKey) (*forms.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controllers[flow]
	return c, ok
}

// ClaimToken reports whether token is seen for the first time in this
// session. Verification links submit once per token.
func (s *Session) ClaimToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.tokens[token]; seen {
		return false
	}
	s.tokens[token] = struct{}{}
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

func (s *Session) unmount() {
	s.mu.Lock()
	s.closed = true
	controllers := make([]*forms.Controller, 0, len(s.controllers))
	for _, c := range s.controllers {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()
	for _, c := range controllers {
		c.Unmount()
	}
}
