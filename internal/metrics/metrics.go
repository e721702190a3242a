// Package metrics holds the connector's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "psp_connector"

type Metrics struct {
	registry *prometheus.Registry

	pspRequestDuration *prometheus.HistogramVec
	modifications      *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		pspRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "psp_request_duration_seconds",
			Help:      "Duration of PSP API calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
		modifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_operations_total",
			Help:      "Payment operations by action and outcome.",
		}, []string{"action", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "PSP notifications processed by event type and result.",
		}, []string{"event_type", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stored webhook events by final status.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.pspRequestDuration, m.modifications, m.notifications, m.webhookEvents)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePSPRequest records one PSP call. status is the HTTP status, or 0
// when no response was received.
func (m *Metrics) ObservePSPRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.pspRequestDuration.WithLabelValues(operation, label).Observe(d.Seconds())
}

func (m *Metrics) IncPaymentOperation(action, outcome string) {
	if m == nil {
		return
	}
	m.modifications.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncNotification(eventType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) IncWebhookEvent(status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(status).Inc()
}
