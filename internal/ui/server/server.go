// Package server renders the account pages and drives their form controllers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/metrics"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/state"
	"github.com/Its-donkey/e-verify/internal/ui/transport"
	"github.com/Its-donkey/e-verify/logging"
)

const (
	defaultListen      = "127.0.0.1:8081"
	defaultCookieName  = "everify_session"
	defaultSiteName    = "E-verify"
	defaultPollTimeout = 25 * time.Second
	refreshSeconds     = 2
)

// Options configures the UI HTTP server.
type Options struct {
	Listen         string
	SiteName       string
	CookieName     string
	SessionTTL     time.Duration
	TemplatesDir   string
	WatchTemplates bool
	PollTimeout    time.Duration
	Logger         *logging.Logger

	// Sender performs backend round trips. Run builds a transport.Client
	// for APIBase when it is nil.
	Sender     forms.Sender
	APIBase    string
	HTTPClient *http.Client

	// Runner executes transport calls; defaults to forms.GoRunner.
	Runner  forms.Runner
	Metrics *metrics.PrometheusRecorder
}

type server struct {
	siteName    string
	cookieName  string
	sessionTTL  time.Duration
	pollTimeout time.Duration
	currentYear int
	templates   *templateSet
	sessions    *state.Sessions
	metrics     *metrics.PrometheusRecorder
	logger      *logging.Logger
}

// newServer wires templates, sessions and the backend sender. The caller owns
// the session sweep loop.
func newServer(opts Options) (*server, error) {
	opts = applyDefaults(opts)

	tmpl, err := newTemplateSet(opts.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	srv := &server{
		siteName:    opts.SiteName,
		cookieName:  opts.CookieName,
		sessionTTL:  opts.SessionTTL,
		pollTimeout: opts.PollTimeout,
		currentYear: time.Now().Year(),
		templates:   tmpl,
		logger:      opts.Logger,
	}

	sender := opts.Sender
	if sender == nil {
		client := transport.NewClient(opts.APIBase, opts.HTTPClient)
		if opts.Metrics != nil {
			client.Recorder = opts.Metrics
		}
		sender = client
	}

	var observer forms.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	srv.sessions = state.NewSessions(state.Options{
		TTL:    opts.SessionTTL,
		Logger: opts.Logger,
		Factory: func(key model.FlowKey) (*forms.Controller, error) {
			flow, err := forms.Lookup(key)
			if err != nil {
				return nil, err
			}
			return forms.NewController(forms.ControllerOptions{
				Flow:     flow,
				Sender:   sender,
				Runner:   opts.Runner,
				Logger:   opts.Logger,
				Observer: observer,
			}), nil
		},
	})
	srv.metrics = opts.Metrics
	if srv.metrics != nil {
		if err := srv.metrics.TrackSessions(srv.sessions.Len); err != nil {
			opts.Logger.Warn("server", "session gauge not registered", map[string]any{"error": err.Error()})
		}
	}

	return srv, nil
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(false)

	for _, p := range pages {
		r.HandleFunc(p.Path, s.handlePage(p)).Methods(http.MethodGet, http.MethodHead)
		r.HandleFunc(p.Path, s.handleSubmit(p)).Methods(http.MethodPost)
	}
	r.HandleFunc("/verify", s.handleVerifyLink).Methods(http.MethodGet)
	r.HandleFunc("/{flow}/edit", s.handleEdit).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/forms/{flow}", s.handleFormState).Methods(http.MethodGet)
	api.HandleFunc("/nav", s.handleNav).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticHandler()))
	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	// Known paths hit with the wrong method get the same page.
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)

	return logging.NewHTTPLogger(s.logger).Middleware(r)
}

// Run starts the UI HTTP server and blocks until ctx is done.
func Run(ctx context.Context, opts Options) error {
	opts = applyDefaults(opts)

	srv, err := newServer(opts)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.sessions.Run(runCtx, time.Minute)

	if opts.WatchTemplates && opts.TemplatesDir != "" {
		if err := srv.templates.Watch(runCtx, opts.Logger); err != nil {
			return fmt.Errorf("watch templates: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              opts.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	opts.Logger.Info("server", fmt.Sprintf("Serving %s UI on http://%s", opts.SiteName, opts.Listen), map[string]any{
		"api_base": opts.APIBase,
	})

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = httpServer.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

func applyDefaults(opts Options) Options {
	if strings.TrimSpace(opts.Listen) == "" {
		opts.Listen = defaultListen
	}
	if strings.TrimSpace(opts.SiteName) == "" {
		opts.SiteName = defaultSiteName
	}
	if strings.TrimSpace(opts.CookieName) == "" {
		opts.CookieName = defaultCookieName
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = state.DefaultTTL
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.Runner == nil {
		opts.Runner = forms.GoRunner
	}
	return opts
}
