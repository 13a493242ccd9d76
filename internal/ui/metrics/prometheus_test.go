package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
)

func TestAttemptLifecycle(t *testing.T) {
	p := NewPrometheusRecorder()
	flow := model.FlowForgotPassword

	p.AttemptStarted(flow)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.inFlight.WithLabelValues(string(flow))))

	p.AttemptFinished(flow, submission.StatusSucceeded, 150*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.inFlight.WithLabelValues(string(flow))))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.attemptsTotal.WithLabelValues(string(flow), "success")))

	p.AttemptStarted(flow)
	p.AttemptDiscarded(flow)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.inFlight.WithLabelValues(string(flow))))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.discardedTotal.WithLabelValues(string(flow))))

	p.ValidationFailed(flow)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.validationTotal.WithLabelValues(string(flow))))
}

func TestObserveRoundTrip(t *testing.T) {
	p := NewPrometheusRecorder()
	p.ObserveRoundTrip("/verify", "ok", 20*time.Millisecond)
	p.ObserveRoundTrip("/verify", "transport_error", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.backendTotal.WithLabelValues("/verify", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.backendTotal.WithLabelValues("/verify", "transport_error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	p := NewPrometheusRecorder()
	require.NoError(t, p.TrackSessions(func() int { return 3 }))
	assert.Error(t, p.TrackSessions(func() int { return 4 }))
	p.AttemptStarted(model.FlowVerify)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `everify_form_attempts_in_flight{flow="verify"} 1`)
	assert.Contains(t, string(body), "everify_sessions_active 3")
	assert.Contains(t, string(body), "go_goroutines")
}
