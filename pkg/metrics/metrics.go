// Package metrics exposes Prometheus collectors for the feedback service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cancellation_feedback"

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	submissions  *prometheus.CounterVec
	exchanges    *prometheus.CounterVec
	gatewaySends *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method", "status"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_submissions_total",
				Help:      "Feedback answers submitted, by reason and outcome",
			},
			[]string{"reason", "outcome"}, // outcome: answered, completed, send_failed, rejected
		),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "summary_exchanges_total",
				Help:      "Summary exchanges with the language model, by outcome",
			},
			[]string{"outcome"},
		),
		gatewaySends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_sends_total",
				Help:      "Messages handed to the outbound gateway, by backend and status",
			},
			[]string{"backend", "status"},
		),
	}

	m.registry.MustRegister(m.httpDuration, m.submissions, m.exchanges, m.gatewaySends)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) FeedbackSubmitted(reason, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(reason, outcome).Inc()
}

func (m *Metrics) ExchangeCompleted(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewaySent(backend string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.gatewaySends.WithLabelValues(backend, status).Inc()
}
