package server

import (
	"errors"
	"net/http"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/state"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
)

// session returns the caller's session, starting one and setting the cookie
// when the request carries none (or an expired one).
func (s *server) session(w http.ResponseWriter, r *http.Request) *state.Session {
	id := ""
	if c, err := r.Cookie(s.cookieName); err == nil {
		id = c.Value
	}
	sess, _ := s.sessions.Ensure(id)
	s.setSessionCookie(w, r, sess)
	return sess
}

// freshSession replaces a session that expired while the request was being
// served.
func (s *server) freshSession(w http.ResponseWriter, r *http.Request) *state.Session {
	sess, _ := s.sessions.Ensure("")
	w.Header().Del("Set-Cookie")
	s.setSessionCookie(w, r, sess)
	return sess
}

func (s *server) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.ID(),
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// lookupSession returns the caller's live session without creating one.
func (s *server) lookupSession(r *http.Request) (*state.Session, bool) {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

// mount returns the controller for flow, moving the caller to a new session
// when the sweep closed theirs in the meantime.
func (s *server) mount(w http.ResponseWriter, r *http.Request, sess *state.Session, flow model.FlowKey) (*state.Session, *forms.Controller, error) {
	ctrl, err := sess.Controller(flow)
	if errors.Is(err, state.ErrSessionClosed) {
		sess = s.freshSession(w, r)
		ctrl, err = sess.Controller(flow)
	}
	return sess, ctrl, err
}

// submit mounts flow and starts an attempt. A form unmounted between mount
// and submit is retried once on a new session.
func (s *server) submit(w http.ResponseWriter, r *http.Request, sess *state.Session, flow model.FlowKey, in model.FormInput) (*state.Session, error) {
	sess, ctrl, err := s.mount(w, r, sess, flow)
	if err != nil {
		return sess, err
	}
	_, err = ctrl.Submit(r.Context(), in)
	if !errors.Is(err, submission.ErrUnmounted) {
		return sess, err
	}
	sess = s.freshSession(w, r)
	ctrl, err = sess.Controller(flow)
	if err != nil {
		return sess, err
	}
	_, err = ctrl.Submit(r.Context(), in)
	return sess, err
}
