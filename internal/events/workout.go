// Package events defines the payloads shared between the API binary and the
// parse worker.
package events

import "time"

// Topic and event-type constants for the workout pipeline.
const (
	TopicWorkoutEvents = "workout_events"

	TypeWorkoutCreated        = "workout.created"
	TypeWorkoutParseCompleted = "workout.parse_completed"
)

// WorkoutCreated is emitted when a new workout is accepted. The parse worker
// consumes it to trigger asynchronous structuring.
type WorkoutCreated struct {
	WorkoutID            string    `json:"workout_id"`
	TenantID             string    `json:"tenant_id"`
	UserID               string    `json:"user_id"`
	Sport                string    `json:"sport"`
	TotalDistanceMeters  *int      `json:"total_distance_meters,omitempty"`
	TotalDurationSeconds *int      `json:"total_duration_seconds,omitempty"`
	HasNotes             bool      `json:"has_notes"`
	CreatedAt            time.Time `json:"created_at"`
}

// WorkoutParseCompleted tracks terminal parse transitions (parsed,
// ambiguous, failed) for downstream consumers and optimistic UI flows.
type WorkoutParseCompleted struct {
	WorkoutID  string    `json:"workout_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	StepCount  int       `json:"step_count"`
	Confidence *float64  `json:"confidence,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
