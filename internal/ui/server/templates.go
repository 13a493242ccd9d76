package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Its-donkey/e-verify/logging"
)

//go:embed web/templates/*.tmpl
var embeddedTemplates embed.FS

//go:embed web/static
var embeddedStatic embed.FS

// Shared layout files parsed into every page template.
var layoutFiles = []string{"base.tmpl", "nav.tmpl", "status.tmpl"}

// pageTemplates maps logical template names to their page file.
var pageTemplates = map[string]string{
	"landing":  "landing.tmpl",
	"forgot":   "forgot_password.tmpl",
	"reset":    "reset_password.tmpl",
	"resend":   "resend_verification.tmpl",
	"notfound": "not_found.tmpl",
}

// templateSet holds the parsed page templates and swaps them on reload.
type templateSet struct {
	dir string

	mu    sync.RWMutex
	pages map[string]*template.Template
}

func newTemplateSet(dir string) (*templateSet, error) {
	ts := &templateSet{dir: strings.TrimSpace(dir)}
	if err := ts.Reload(); err != nil {
		return nil, err
	}
	return ts, nil
}

func (ts *templateSet) source() (fs.FS, error) {
	if ts.dir == "" {
		return fs.Sub(embeddedTemplates, "web/templates")
	}
	abs, err := filepath.Abs(ts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve templates dir: %w", err)
	}
	return os.DirFS(abs), nil
}

// Reload parses every page template. On error the previous set stays live.
func (ts *templateSet) Reload() error {
	fsys, err := ts.source()
	if err != nil {
		return err
	}
	pages, err := loadTemplates(fsys)
	if err != nil {
		return err
	}
	ts.mu.Lock()
	ts.pages = pages
	ts.mu.Unlock()
	return nil
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"hasError": hasError,
		"upper":    strings.ToUpper,
	}
	pages := make(map[string]*template.Template, len(pageTemplates))
	for name, file := range pageTemplates {
		patterns := append(append([]string{}, layoutFiles...), file)
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, patterns...)
		if err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// Render executes the named page into w.
func (ts *templateSet) Render(w io.Writer, name string, data any) error {
	ts.mu.RLock()
	tmpl, ok := ts.pages[name]
	ts.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not loaded", name)
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// Watch reloads the templates whenever a file in the override directory
// changes, until ctx is done.
func (ts *templateSet) Watch(ctx context.Context, logger *logging.Logger) error {
	if ts.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(ts.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", ts.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if !strings.HasSuffix(event.Name, ".tmpl") {
					continue
				}
				if err := ts.Reload(); err != nil {
					logger.Error("templates", "template reload failed", err, map[string]any{"file": event.Name})
					continue
				}
				logger.Info("templates", "templates reloaded", map[string]any{"file": event.Name})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("templates", "template watcher error", map[string]any{"error": err.Error()})
			}
		}
	}()
	return nil
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "web/static")
	if err != nil {
		// The directory is embedded at compile time.
		panic(fmt.Sprintf("static assets: %v", err))
	}
	return http.FileServer(http.FS(sub))
}

func hasError(errs map[string]string, field string) bool {
	_, ok := errs[field]
	return ok
}
