// Package observability exposes prometheus instrumentation for the
// structuring pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	parseOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "parsing",
		Name:      "outcomes_total",
		Help:      "Terminal parse outcomes, labeled by status.",
	}, []string{"status"})

	parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "workout_service",
		Subsystem: "parsing",
		Name:      "duration_seconds",
		Help:      "End-to-end duration of one parse request, including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	inferenceRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "inference",
		Name:      "retries_total",
		Help:      "Inference retries, labeled by tier (transient or soft).",
	}, []string{"tier"})

	workoutsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "api",
		Name:      "workouts_created_total",
		Help:      "Number of workout records accepted for structuring.",
	})
)

func init() {
	prometheus.MustRegister(parseOutcomes, parseDuration, inferenceRetries, workoutsCreated)
}

// RecordParseOutcome counts a terminal parse status and its duration.
func RecordParseOutcome(status string, elapsed time.Duration) {
	parseOutcomes.WithLabelValues(status).Inc()
	parseDuration.Observe(elapsed.Seconds())
}

// RecordInferenceRetry counts one retry in the named tier.
func RecordInferenceRetry(tier string) {
	inferenceRetries.WithLabelValues(tier).Inc()
}

// RecordWorkoutCreated counts an accepted workout.
func RecordWorkoutCreated() {
	workoutsCreated.Inc()
}
