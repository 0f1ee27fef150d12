package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can live in one process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	submissions   *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	exports       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventform_submissions_total",
			Help: "Application submissions by result",
		}, []string{"result"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventform_payment_callbacks_total",
			Help: "Payment callbacks by outcome",
		}, []string{"outcome"}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventform_exports_total",
			Help: "Export requests by format and result",
		}, []string{"format", "result"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventform_notifications_total",
			Help: "Notification handling by kind and result",
		}, []string{"kind", "result"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventform_rate_limited_total",
			Help: "Requests rejected by the submission rate limit",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExport(format, result string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, result).Inc()
}

func (m *Metrics) ObserveNotification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
