package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Messages handled and committed, labeled by event type.",
	}, []string{"event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Messages dropped because they could not be decoded, labeled by topic.",
	}, []string{"topic"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Handler failures, labeled by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(processedCounter, decodeErrorCounter, handlerErrorCounter)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.EventType).Inc()
}
