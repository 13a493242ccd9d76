// Package metrics records form submission and backend round-trip metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Its-donkey/e-verify/internal/ui/model"
	"github.com/Its-donkey/e-verify/internal/ui/submission"
)

// PrometheusRecorder implements forms.Observer and transport.Recorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	attemptsTotal    *prometheus.CounterVec
	attemptsDuration *prometheus.HistogramVec
	inFlight         *prometheus.GaugeVec
	discardedTotal   *prometheus.CounterVec
	validationTotal  *prometheus.CounterVec
	backendTotal     *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder on its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	p := &PrometheusRecorder{
		registry: reg,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everify_form_attempts_total",
				Help: "Total number of resolved form submissions by flow and status",
			},
			[]string{"flow", "status"},
		),
		attemptsDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "everify_form_attempt_duration_seconds",
				Help:    "Time from submit to resolution of a form attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
		inFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "everify_form_attempts_in_flight",
				Help: "Form attempts currently pending",
			},
			[]string{"flow"},
		),
		discardedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everify_form_attempts_discarded_total",
				Help: "Responses that arrived after their form was unmounted",
			},
			[]string{"flow"},
		),
		validationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everify_form_validation_failures_total",
				Help: "Submissions rejected by local validation",
			},
			[]string{"flow"},
		),
		backendTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "everify_backend_requests_total",
				Help: "Backend round trips by path and result",
			},
			[]string{"path", "result"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "everify_backend_request_duration_seconds",
				Help:    "Duration of backend round trips in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
	return p
}

// TrackSessions samples count for the active session gauge. Only the first
// call registers the gauge.
func (p *PrometheusRecorder) TrackSessions(count func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "everify_sessions_active",
		Help: "Browser sessions with mounted forms",
	}, func() float64 { return float64(count()) })
	return p.registry.Register(gauge)
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// AttemptStarted implements forms.Observer.
func (p *PrometheusRecorder) AttemptStarted(flow model.FlowKey) {
	p.inFlight.WithLabelValues(string(flow)).Inc()
}

// AttemptFinished implements forms.Observer.
func (p *PrometheusRecorder) AttemptFinished(flow model.FlowKey, status submission.Status, duration time.Duration) {
	p.inFlight.WithLabelValues(string(flow)).Dec()
	p.attemptsTotal.WithLabelValues(string(flow), status.String()).Inc()
	p.attemptsDuration.WithLabelValues(string(flow)).Observe(duration.Seconds())
}

// AttemptDiscarded implements forms.Observer.
func (p *PrometheusRecorder) AttemptDiscarded(flow model.FlowKey) {
	p.inFlight.WithLabelValues(string(flow)).Dec()
	p.discardedTotal.WithLabelValues(string(flow)).Inc()
}

// ValidationFailed implements forms.Observer.
func (p *PrometheusRecorder) ValidationFailed(flow model.FlowKey) {
	p.validationTotal.WithLabelValues(string(flow)).Inc()
}

// ObserveRoundTrip implements transport.Recorder.
func (p *PrometheusRecorder) ObserveRoundTrip(path, result string, duration time.Duration) {
	p.backendTotal.WithLabelValues(path, result).Inc()
	p.backendDuration.WithLabelValues(path).Observe(duration.Seconds())
}
