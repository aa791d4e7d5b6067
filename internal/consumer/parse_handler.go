package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"example.com/workout/internal/domain"
	"example.com/workout/internal/events"
)

// ParseTrigger is the slice of the domain service the handler needs.
type ParseTrigger interface {
	ParseWorkout(ctx context.Context, tenantID, workoutID string) domain.ParseReport
}

// ParseHandler reacts to workout.created events by running the parsing
// state machine. The service resolves every failure to a terminal status, so
// the handler only errors on undecodable payloads.
type ParseHandler struct {
	service ParseTrigger
	logger  *log.Logger
}

// NewParseHandler constructs a ParseHandler.
func NewParseHandler(service ParseTrigger, logger *log.Logger) *ParseHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[parse-handler] ", log.LstdFlags)
	}
	return &ParseHandler{service: service, logger: logger}
}

// Handle processes one decoded event.
func (h *ParseHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeWorkoutCreated {
		return nil
	}

	var event events.WorkoutCreated
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode workout.created: %w", err)
	}

	report := h.service.ParseWorkout(ctx, event.TenantID, event.WorkoutID)
	h.logger.Printf("parsed workout_id=%s status=%s diagnostic=%q", event.WorkoutID, report.Status, report.Diagnostic)
	return nil
}
