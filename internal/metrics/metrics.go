// Package metrics holds the Prometheus collectors shared by the Gemini
// service, the worker pool and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GeminiRequests   *prometheus.CounterVec
	GeminiLatency    *prometheus.HistogramVec
	GeminiRetries    prometheus.Counter
	Generations      *prometheus.CounterVec
	Replies          *prometheus.CounterVec
	StaleResults     *prometheus.CounterVec
	InFlightRejected *prometheus.CounterVec
	MalformedReplies *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New registers every collector on reg. Tests pass a fresh registry so that
// repeated construction does not panic on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		GeminiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_gemini_requests_total",
			Help: "Gemini calls by aid type and outcome.",
		}, []string{"aid_type", "outcome"}),
		GeminiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studycompanion_gemini_request_duration_seconds",
			Help:    "Gemini call latency including retries.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"aid_type"}),
		GeminiRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "studycompanion_gemini_retries_total",
			Help: "Transient Gemini failures that were retried.",
		}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_generations_total",
			Help: "Finished study aid generations by aid type and outcome.",
		}, []string{"aid_type", "outcome"}),
		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_qna_replies_total",
			Help: "Finished Q&A follow-ups by outcome.",
		}, []string{"outcome"}),
		StaleResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_stale_results_total",
			Help: "Job results discarded because a newer request superseded them.",
		}, []string{"job_type"}),
		InFlightRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_inflight_rejected_total",
			Help: "Requests rejected because one of the same kind was outstanding.",
		}, []string{"job_type"}),
		MalformedReplies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studycompanion_malformed_responses_total",
			Help: "Structured model replies that failed decoding or validation.",
		}, []string{"aid_type"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "studycompanion_active_sessions",
			Help: "Browsing sessions currently held in memory.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "studycompanion_job_queue_depth",
			Help: "Jobs waiting for a worker.",
		}),
	}
}
