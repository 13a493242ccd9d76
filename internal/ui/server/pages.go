package server

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/state"
)

func (s *server) handlePage(p page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(w, r)
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if p.hosts(model.FlowVerify) && token != "" && sess.ClaimToken(token) {
			sess = s.autoVerify(w, r, sess, token)
		}
		s.renderPage(w, r, p, sess, nil, http.StatusOK, token)
	}
}

// autoVerify submits the verification token a user arrived with.
func (s *server) autoVerify(w http.ResponseWriter, r *http.Request, sess *state.Session, token string) *state.Session {
	log := s.logger.WithRequestID(requestID(r)).WithCategory("submit").WithField("flow", string(model.FlowVerify))
	sess, err := s.submit(w, r, sess, model.FlowVerify, model.FormInput{Token: token})
	if err != nil && !errors.Is(err, forms.ErrSubmitInFlight) {
		log.WithField("error", err.Error()).Warn("verification link not submitted")
	}
	return sess
}

func (s *server) handleSubmit(p page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(w, r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form submission", http.StatusBadRequest)
			return
		}

		flow := p.Flows[0]
		if named := strings.TrimSpace(r.PostForm.Get("flow")); named != "" {
			flow = model.FlowKey(named)
			if !p.hosts(flow) {
				http.Error(w, "unknown form", http.StatusBadRequest)
				return
			}
		}

		in := inputFromForm(r)
		if p.KeepToken && strings.TrimSpace(in.Token) == "" {
			in.Token = strings.TrimSpace(r.URL.Query().Get("token"))
		}

		log := s.logger.WithRequestID(requestID(r)).WithCategory("submit").WithField("flow", string(flow))
		sess, err := s.submit(w, r, sess, flow, in)
		var verr *forms.ValidationError
		switch {
		case err == nil:
			log.Debug("submission started")
		case errors.As(err, &verr):
			s.renderPage(w, r, p, sess, map[model.FlowKey]model.FieldErrors{flow: verr.Fields}, http.StatusUnprocessableEntity, in.Token)
			return
		case errors.Is(err, forms.ErrSubmitInFlight):
			log.Debug("submit ignored while pending")
		default:
			log.Error("submit failed", err)
			http.Error(w, "form unavailable", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, p.location(in.Token), http.StatusSeeOther)
	}
}

// handleEdit returns a finished form to Idle once the user changes its input.
// A posted "reset" field clears the form instead.
func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	flow := model.FlowKey(mux.Vars(r)["flow"])
	p, ok := pageForFlow(flow)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	token := strings.TrimSpace(r.PostForm.Get(forms.FieldToken))

	sess, ok := s.lookupSession(r)
	if !ok {
		if wantsJSON(r) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		http.Redirect(w, r, p.location(token), http.StatusSeeOther)
		return
	}
	ctrl, err := sess.Controller(flow)
	if errors.Is(err, state.ErrSessionClosed) {
		if wantsJSON(r) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		http.Redirect(w, r, p.location(token), http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, "form unavailable", http.StatusInternalServerError)
		return
	}
	if r.PostForm.Get("reset") != "" {
		ctrl.Reset()
	} else {
		ctrl.Edit(inputFromForm(r))
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, newStateResponse(ctrl.Flow().Key, ctrl.Snapshot()))
		return
	}
	http.Redirect(w, r, p.location(token), http.StatusSeeOther)
}

// handleVerifyLink accepts the link format the backend emails and lands the
// user on the verification page.
func (s *server) handleVerifyLink(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	target := "/"
	if token != "" {
		target = "/?" + url.Values{"token": {token}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	data := pageData{basePageData: s.buildBasePageData(r, "Page not found")}
	s.render(w, r, http.StatusNotFound, "notfound", data)
}

func (s *server) renderPage(w http.ResponseWriter, r *http.Request, p page, sess *state.Session, errs map[model.FlowKey]model.FieldErrors, status int, token string) {
	data := pageData{
		basePageData: s.buildBasePageData(r, p.Title),
		Forms:        make(map[string]formView, len(p.Flows)),
	}
	if p.KeepToken {
		data.Token = token
	}
	locked := false
	for _, flow := range p.Flows {
		var ctrl *forms.Controller
		var err error
		sess, ctrl, err = s.mount(w, r, sess, flow)
		if err != nil {
			s.logger.WithRequestID(requestID(r)).WithCategory("server").Error("mount form", err)
			http.Error(w, "form unavailable", http.StatusInternalServerError)
			return
		}
		view := newFormView(ctrl, errs[flow])
		locked = locked || view.Locked
		data.Forms[view.Flow] = view
	}
	if locked {
		data.RefreshSeconds = refreshSeconds
		data.RefreshURL = p.location(token)
	}
	s.render(w, r, status, p.Template, data)
}

// render buffers the page so a template error never leaves a half-written
// response.
func (s *server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.Render(&buf, name, data); err != nil {
		s.logger.WithRequestID(requestID(r)).WithCategory("templates").Error("render page", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func inputFromForm(r *http.Request) model.FormInput {
	return model.FormInput{
		Email:       strings.TrimSpace(r.PostForm.Get(forms.FieldEmail)),
		Password:    r.PostForm.Get(forms.FieldPassword),
		Token:       strings.TrimSpace(r.PostForm.Get(forms.FieldToken)),
		NewPassword: r.PostForm.Get(forms.FieldNewPassword),
	}
}
