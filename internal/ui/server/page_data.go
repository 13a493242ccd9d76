package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/nav"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
	"github.com/Its-donkey/e-verify/logging"
)

// page is one routed screen of the site.
type page struct {
	Path     string
	Title    string
	Template string
	// Flows lists the forms on the page; the first one receives a POST
	// that does not name a flow.
	Flows []model.FlowKey
	// KeepToken carries ?token= through redirects and refreshes.
	KeepToken bool
}

var pages = []page{
	{Path: "/", Title: "Verify your email", Template: "landing", Flows: []model.FlowKey{model.FlowRegister, model.FlowVerify}},
	{Path: "/forgot-password", Title: "Forgot Password", Template: "forgot", Flows: []model.FlowKey{model.FlowForgotPassword}},
	{Path: "/reset-password", Title: "Reset Password", Template: "reset", Flows: []model.FlowKey{model.FlowResetPassword}, KeepToken: true},
	{Path: "/resend-verification", Title: "Resend Verification", Template: "resend", Flows: []model.FlowKey{model.FlowResendVerification}},
}

// pageForFlow returns the page that hosts flow.
func pageForFlow(flow model.FlowKey) (page, bool) {
	for _, p := range pages {
		if p.hosts(flow) {
			return p, true
		}
	}
	return page{}, false
}

func (p page) hosts(flow model.FlowKey) bool {
	for _, f := range p.Flows {
		if f == flow {
			return true
		}
	}
	return false
}

// location builds the GET URL a POST redirects to.
func (p page) location(token string) string {
	if !p.KeepToken || strings.TrimSpace(token) == "" {
		return p.Path
	}
	return p.Path + "?" + url.Values{"token": {token}}.Encode()
}

type basePageData struct {
	PageTitle      string
	SiteName       string
	StylesheetPath string
	ScriptPath     string
	CurrentYear    int
	Nav            nav.View
	RefreshURL     string
	RefreshSeconds int
	RequestID      string
}

// formView is everything a template needs to draw one form and its status
// region.
type formView struct {
	Flow       string
	Title      string
	Action     string
	EditAction string
	StateURL   string
	Status     string
	Region     string
	Message    string
	Attempt    uint64
	Locked     bool
	Value      model.FormInput
	Errors     model.FieldErrors
}

type pageData struct {
	basePageData
	Forms map[string]formView
	Token string
}

func (s *server) buildBasePageData(r *http.Request, title string) basePageData {
	if strings.TrimSpace(title) == "" {
		title = s.siteName
	}
	return basePageData{
		PageTitle:      title,
		SiteName:       s.siteName,
		StylesheetPath: "/static/styles.css",
		ScriptPath:     "/static/status.js",
		CurrentYear:    s.currentYear,
		Nav:            nav.Render(r.URL.Path, false),
		RequestID:      logging.RequestIDFromContext(r.Context()),
	}
}

func newFormView(ctrl *forms.Controller, errs model.FieldErrors) formView {
	flow := ctrl.Flow()
	snap := ctrl.Snapshot()
	value := ctrl.Value()
	// Secrets are never echoed back into the page.
	value.Password = ""
	value.NewPassword = ""
	return formViewFor(flow, snap, value, errs)
}

func formViewFor(flow forms.Flow, snap submission.Snapshot, value model.FormInput, errs model.FieldErrors) formView {
	key := string(flow.Key)
	action := "/"
	if p, ok := pageForFlow(flow.Key); ok {
		action = p.Path
	}
	return formView{
		Flow:       key,
		Title:      flow.Title,
		Action:     action,
		EditAction: "/" + key + "/edit",
		StateURL:   "/api/forms/" + key,
		Status:     snap.Status.String(),
		Region:     snap.Status.Region(),
		Message:    snap.Message,
		Attempt:    snap.Attempt,
		Locked:     snap.Locked(),
		Value:      value,
		Errors:     errs,
	}
}
