package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Its-donkey/e-verify/internal/ui/forms"
	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/nav"
	"github.com/Its-donkey/e-verify/internal/ui/state"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
	"github.com/Its-donkey/e-verify/logging"
)

type stateResponse struct {
	Flow      string    `json:"flow"`
	Status    string    `json:"status"`
	Region    string    `json:"region"`
	Message   string    `json:"message,omitempty"`
	Attempt   uint64    `json:"attempt"`
	Locked    bool      `json:"locked"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newStateResponse(flow model.FlowKey, snap submission.Snapshot) stateResponse {
	return stateResponse{
		Flow:      string(flow),
		Status:    snap.Status.String(),
		Region:    snap.Status.Region(),
		Message:   snap.Message,
		Attempt:   snap.Attempt,
		Locked:    snap.Locked(),
		UpdatedAt: snap.UpdatedAt,
	}
}

// handleFormState reports a form's submission state. With ?wait=<attempt>
// it holds the request while that attempt is still pending.
func (s *server) handleFormState(w http.ResponseWriter, r *http.Request) {
	key := model.FlowKey(mux.Vars(r)["flow"])
	if _, err := forms.Lookup(key); err != nil {
		writeJSONError(w, http.StatusNotFound, "unknown form")
		return
	}
	sess, ok := s.lookupSession(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	ctrl, err := sess.Controller(key)
	if errors.Is(err, state.ErrSessionClosed) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "form unavailable")
		return
	}

	snap := ctrl.Snapshot()
	if raw := r.URL.Query().Get("wait"); raw != "" {
		attempt, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "wait must be an attempt number")
			return
		}
		snap = awaitChange(r.Context(), ctrl.Machine(), attempt, s.pollTimeout)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, newStateResponse(key, snap))
}

// awaitChange blocks until attempt is no longer the pending one, the timeout
// passes or ctx ends, and returns the latest snapshot.
func awaitChange(ctx context.Context, m *submission.Machine, attempt uint64, timeout time.Duration) submission.Snapshot {
	waiting := func(snap submission.Snapshot) bool {
		return snap.Attempt == attempt && snap.Locked()
	}
	if snap := m.Snapshot(); !waiting(snap) {
		return snap
	}

	ch := make(chan submission.Snapshot, 4)
	cancel := m.Subscribe(ch)
	defer cancel()

	// The attempt may have resolved before the subscription was in place.
	if snap := m.Snapshot(); !waiting(snap) {
		return snap
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case snap := <-ch:
			if !waiting(snap) {
				return snap
			}
		case <-timer.C:
			return m.Snapshot()
		case <-ctx.Done():
			return m.Snapshot()
		}
	}
}

func (s *server) handleNav(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	revealed, _ := strconv.ParseBool(q.Get("revealed"))
	writeJSON(w, http.StatusOK, nav.Render(q.Get("path"), revealed))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func requestID(r *http.Request) string {
	return logging.RequestIDFromContext(r.Context())
}
