// Package metrics holds the Prometheus instruments of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "caces"

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PackagesGenerated  *prometheus.CounterVec
	QuestionsAssembled prometheus.Counter
	ResponsesImported  prometheus.Counter
	Anomalies          *prometheus.CounterVec
	ImportsFinished    *prometheus.CounterVec
	PendingImports     prometheus.Gauge
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PackagesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_generated_total",
			Help:      "Presentation packages assembled, by outcome.",
		}, []string{"outcome"}),
		QuestionsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_assembled_total",
			Help:      "Question slides written into generated packages.",
		}),
		ResponsesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_imported_total",
			Help:      "Raw responses read from response logs.",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_anomalies_total",
			Help:      "Reconciliation anomalies detected, by kind.",
		}, []string{"kind"}),
		ImportsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_finished_total",
			Help:      "Imports that left the pipeline, by outcome.",
		}, []string{"outcome"}),
		PendingImports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_imports",
			Help:      "Suspended imports awaiting resolution.",
		}),
	}
	reg.MustRegister(
		m.PackagesGenerated,
		m.QuestionsAssembled,
		m.ResponsesImported,
		m.Anomalies,
		m.ImportsFinished,
		m.PendingImports,
	)
	return m
}

func (m *Metrics) PackageGenerated(questions int) {
	if m == nil {
		return
	}
	m.PackagesGenerated.WithLabelValues("ok").Inc()
	m.QuestionsAssembled.Add(float64(questions))
}

func (m *Metrics) PackageFailed() {
	if m == nil {
		return
	}
	m.PackagesGenerated.WithLabelValues("error").Inc()
}

func (m *Metrics) Imported(responses, expectedIssues, unknown int) {
	if m == nil {
		return
	}
	m.ResponsesImported.Add(float64(responses))
	m.Anomalies.WithLabelValues("expected_with_issues").Add(float64(expectedIssues))
	m.Anomalies.WithLabelValues("unknown_responder").Add(float64(unknown))
}

// ImportFinished records outcome as one of completed, resolved, cancelled or failed.
func (m *Metrics) ImportFinished(outcome string) {
	if m == nil {
		return
	}
	m.ImportsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.PendingImports.Set(float64(n))
}
