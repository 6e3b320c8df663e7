package triage

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal        *prometheus.CounterVec
	TriageDuration      *prometheus.HistogramVec
	EmergenciesTotal    *prometheus.CounterVec
	LexicalHitsTotal    *prometheus.CounterVec
	ExtractionsTotal    *prometheus.CounterVec
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	ClassificationTotal *prometheus.CounterVec
	ClassifyDuration    *prometheus.HistogramVec
	SubmitsTotal        *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_triages_total",
			Help: "Total triage runs by final urgency.",
		}, []string{"urgency", "language"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triageline_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~102s
		}, []string{"urgency"}),
		EmergenciesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_emergencies_total",
			Help: "Triage runs that ended as emergencies, by whether the lexical matcher fired.",
		}, []string{"lexical"}),
		LexicalHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_lexical_hits_total",
			Help: "Triage runs with at least one emergency keyword match.",
		}, []string{"language"}),
		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_extractions_total",
			Help: "Records produced by each extraction strategy.",
		}, []string{"strategy"}),
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_generation_calls_total",
			Help: "Generation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triageline_generation_duration_seconds",
			Help:    "Duration of individual generation calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}, []string{"kind"}),
		ClassificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_classification_calls_total",
			Help: "Classification calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triageline_classification_duration_seconds",
			Help:    "Duration of individual classification calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"op"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_submits_total",
			Help: "Total narrative submissions by result.",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageline_notifications_total",
			Help: "Emergency alert notifications by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.EmergenciesTotal,
		m.LexicalHitsTotal,
		m.ExtractionsTotal,
		m.GenerationsTotal,
		m.GenerationDuration,
		m.ClassificationTotal,
		m.ClassifyDuration,
		m.SubmitsTotal,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnGeneration: func(kind string, outcome CallOutcome, d time.Duration) {
			m.GenerationsTotal.WithLabelValues(kind, string(outcome)).Inc()
			m.GenerationDuration.WithLabelValues(kind).Observe(d.Seconds())
		},
		OnClassification: func(op string, outcome CallOutcome, d time.Duration) {
			m.ClassificationTotal.WithLabelValues(op, string(outcome)).Inc()
			m.ClassifyDuration.WithLabelValues(op).Observe(d.Seconds())
		},
		OnExtraction: func(s Strategy) {
			m.ExtractionsTotal.WithLabelValues(string(s)).Inc()
		},
		OnComplete: func(e *CompleteEvent) {
			m.TriagesTotal.WithLabelValues(e.Urgency.String(), string(e.Language)).Inc()
			m.TriageDuration.WithLabelValues(e.Urgency.String()).Observe(e.Duration.Seconds())
			if e.Lexical {
				m.LexicalHitsTotal.WithLabelValues(string(e.Language)).Inc()
			}
			if e.IsEmergency {
				m.EmergenciesTotal.WithLabelValues(strconv.FormatBool(e.Lexical)).Inc()
			}
		},
	}
}
