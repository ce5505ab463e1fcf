package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biagent_questions_total",
			Help: "Total number of answered questions by routed mode.",
		},
		[]string{"mode"},
	)
	structuredExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biagent_structured_executions_total",
			Help: "Structured query executions by outcome.",
		},
		[]string{"status"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biagent_stage_duration_seconds",
			Help:    "Latency of each answering stage.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	sessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "biagent_sessions_created_total",
			Help: "Total number of sessions created from uploads.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "biagent_sessions_active",
			Help: "Current number of registered sessions.",
		},
	)
	ingestionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biagent_ingestion_rejections_total",
			Help: "Uploaded documents that were not indexed, by reason.",
		},
		[]string{"reason"},
	)
	generatorFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "biagent_generator_failures_total",
			Help: "Answer generation calls that returned an error.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		structuredExecutionsTotal,
		stageDurationSeconds,
		sessionsCreatedTotal,
		sessionsActive,
		ingestionRejectionsTotal,
		generatorFailuresTotal,
	)
}

func ObserveQuestion(mode string) {
	questionsTotal.WithLabelValues(mode).Inc()
}

func ObserveExecution(status string) {
	structuredExecutionsTotal.WithLabelValues(status).Inc()
}

func ObserveStage(stage string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

func IncSessionsCreated() {
	sessionsCreatedTotal.Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	sessionsActive.Set(float64(count))
}

func IncIngestionRejection(reason string) {
	ingestionRejectionsTotal.WithLabelValues(reason).Inc()
}

func IncGeneratorFailure() {
	generatorFailuresTotal.Inc()
}
