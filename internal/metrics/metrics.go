// Package metrics holds the assistant's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	EligibilityChecks     *prometheus.CounterVec
	ConfirmationDecisions *prometheus.CounterVec
	CollaboratorCalls     *prometheus.CounterVec
	IntentsRouted         *prometheus.CounterVec
	KnowledgeQueries      *prometheus.CounterVec
	KnowledgeLatency      prometheus.Histogram
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		EligibilityChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecobot_eligibility_checks_total",
				Help: "Eligibility evaluations by result code",
			},
			[]string{"code"},
		),
		ConfirmationDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecobot_confirmation_decisions_total",
				Help: "Answers to a pending return confirmation",
			},
			[]string{"decision"},
		),
		CollaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecobot_collaborator_calls_total",
				Help: "Label and refund calls by outcome",
			},
			[]string{"service", "result"},
		),
		IntentsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecobot_intents_total",
				Help: "Messages routed by intent",
			},
			[]string{"intent"},
		),
		KnowledgeQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecobot_knowledge_queries_total",
				Help: "Knowledge-base questions by result",
			},
			[]string{"result"},
		),
		KnowledgeLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ecobot_knowledge_answer_seconds",
				Help:    "Time to answer a knowledge-base question",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}

func (m *Metrics) ObserveEligibility(code string) {
	if m != nil {
		m.EligibilityChecks.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ObserveDecision(decision string) {
	if m != nil {
		m.ConfirmationDecisions.WithLabelValues(decision).Inc()
	}
}

// ObserveCollaborator records one label or refund call.
func (m *Metrics) ObserveCollaborator(service string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.CollaboratorCalls.WithLabelValues(service, result).Inc()
}

func (m *Metrics) ObserveIntent(intent string) {
	if m != nil {
		m.IntentsRouted.WithLabelValues(intent).Inc()
	}
}

// ObserveKnowledge records the result and latency of one question.
func (m *Metrics) ObserveKnowledge(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.KnowledgeQueries.WithLabelValues(result).Inc()
	m.KnowledgeLatency.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
