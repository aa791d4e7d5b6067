package parsing

import (
	"encoding/json"
	"fmt"
	"strings"

	"example.com/workout/internal/domain"
)

// SchemaError marks a candidate payload that could not be decoded into the
// canonical schema. It is a soft failure: the parser retries once with an
// instruction that echoes the detail.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return "candidate payload rejected: " + e.Detail
}

// candidatePayload is the loosely-typed shape the generation capability is
// asked to produce. Decoding into the canonical schema is where trust is
// established; unrecognized tags are rejected at this boundary.
type candidatePayload struct {
	Sport      string          `json:"sport"`
	Confidence float64         `json:"confidence"`
	Steps      []candidateStep `json:"steps"`
}

type candidateStep struct {
	Order           int    `json:"order"`
	Name            string `json:"name"`
	DurationSeconds *int   `json:"duration_seconds"`
	DistanceMeters  *int   `json:"distance_meters"`
	Intensity       string `json:"intensity"`
	TargetType      string `json:"target_type"`
	Repeat          int    `json:"repeat"`
	IsRecovery      bool   `json:"is_recovery"`
}

// decodeCandidate converts raw candidate text into a canonical workout plus
// the model's confidence estimate. Every decoding problem comes back as a
// *SchemaError so the retry tier classification stays simple.
func decodeCandidate(raw string) (*domain.StructuredWorkout, float64, error) {
	var payload candidatePayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, 0, &SchemaError{Detail: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, 0, &SchemaError{Detail: fmt.Sprintf("confidence %v outside [0,1]", payload.Confidence)}
	}

	workout := domain.StructuredWorkout{
		Sport: payload.Sport,
		Steps: make([]domain.WorkoutStep, 0, len(payload.Steps)),
	}

	for i, raw := range payload.Steps {
		intensity, err := domain.ParseIntensity(raw.Intensity)
		if err != nil {
			return nil, 0, &SchemaError{Detail: fmt.Sprintf("steps[%d]: %v", i, err)}
		}
		targetType, err := domain.ParseTargetType(raw.TargetType)
		if err != nil {
			return nil, 0, &SchemaError{Detail: fmt.Sprintf("steps[%d]: %v", i, err)}
		}

		step := domain.WorkoutStep{
			Order:           raw.Order,
			Name:            raw.Name,
			DurationSeconds: raw.DurationSeconds,
			DistanceMeters:  raw.DistanceMeters,
			Intensity:       intensity,
			TargetType:      targetType,
			Repeat:          raw.Repeat,
			IsRecovery:      raw.IsRecovery,
		}
		if err := step.Check(); err != nil {
			return nil, 0, &SchemaError{Detail: fmt.Sprintf("steps[%d]: %v", i, err)}
		}
		workout.Steps = append(workout.Steps, step)
	}

	return &workout, payload.Confidence, nil
}

// stripFences removes markdown code fencing some models wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
