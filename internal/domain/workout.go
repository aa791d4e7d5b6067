// Package domain defines the canonical workout representation and the
// business logic of the structuring pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxAuthoredSteps bounds the unexpanded step count of a structured workout.
const MaxAuthoredSteps = 50

// Intensity is the closed set of effort categories a step can carry.
type Intensity string

const (
	IntensityEasy      Intensity = "easy"
	IntensityTempo     Intensity = "tempo"
	IntensityLT2       Intensity = "lt2"
	IntensityThreshold Intensity = "threshold"
	IntensityVO2       Intensity = "vo2"
	IntensityFlow      Intensity = "flow"
	IntensityRest      Intensity = "rest"
	IntensityRace      Intensity = "race"
)

var intensities = map[Intensity]struct{}{
	IntensityEasy:      {},
	IntensityTempo:     {},
	IntensityLT2:       {},
	IntensityThreshold: {},
	IntensityVO2:       {},
	IntensityFlow:      {},
	IntensityRest:      {},
	IntensityRace:      {},
}

// ParseIntensity maps a raw tag onto the closed intensity set. Unrecognized
// tags are rejected, never coerced.
func ParseIntensity(raw string) (Intensity, error) {
	candidate := Intensity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := intensities[candidate]; !ok {
		return "", fmt.Errorf("unknown intensity %q", raw)
	}
	return candidate, nil
}

// Valid reports closed-set membership.
func (i Intensity) Valid() bool {
	_, ok := intensities[i]
	return ok
}

// TargetType identifies the unit an execution target is expressed in.
type TargetType string

const (
	TargetTypeNone  TargetType = "none"
	TargetTypePace  TargetType = "pace"
	TargetTypeHR    TargetType = "hr"
	TargetTypePower TargetType = "power"
	TargetTypeRPE   TargetType = "rpe"
)

var targetTypes = map[TargetType]struct{}{
	TargetTypeNone:  {},
	TargetTypePace:  {},
	TargetTypeHR:    {},
	TargetTypePower: {},
	TargetTypeRPE:   {},
}

// ParseTargetType maps a raw tag onto the closed target-type set.
func ParseTargetType(raw string) (TargetType, error) {
	candidate := TargetType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := targetTypes[candidate]; !ok {
		return "", fmt.Errorf("unknown target type %q", raw)
	}
	return candidate, nil
}

// Valid reports closed-set membership.
func (t TargetType) Valid() bool {
	_, ok := targetTypes[t]
	return ok
}

// ParseStatus is the terminal outcome label on a workout's parse record.
type ParseStatus string

const (
	ParseStatusUnparsed  ParseStatus = "unparsed"
	ParseStatusParsed    ParseStatus = "parsed"
	ParseStatusAmbiguous ParseStatus = "ambiguous"
	ParseStatusFailed    ParseStatus = "failed"
)

// WorkoutStep is one authored unit of a structured workout. Exactly one of
// DurationSeconds and DistanceMeters must be set, and the set one positive.
type WorkoutStep struct {
	Order           int
	Name            string
	DurationSeconds *int
	DistanceMeters  *int
	Intensity       Intensity
	TargetType      TargetType
	Repeat          int
	IsRecovery      bool
}

// Check applies construction-time range rejection: negative magnitudes,
// repeat below one, and tags outside the closed sets.
func (s WorkoutStep) Check() error {
	if s.Order < 0 {
		return fmt.Errorf("step %q: order must be >= 0", s.Name)
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("step name must not be empty")
	}
	if s.DurationSeconds != nil && *s.DurationSeconds <= 0 {
		return fmt.Errorf("step %q: duration_seconds must be positive", s.Name)
	}
	if s.DistanceMeters != nil && *s.DistanceMeters <= 0 {
		return fmt.Errorf("step %q: distance_meters must be positive", s.Name)
	}
	if (s.DurationSeconds == nil) == (s.DistanceMeters == nil) {
		return fmt.Errorf("step %q: exactly one of duration_seconds and distance_meters must be set", s.Name)
	}
	if !s.Intensity.Valid() {
		return fmt.Errorf("step %q: unknown intensity %q", s.Name, s.Intensity)
	}
	if !s.TargetType.Valid() {
		return fmt.Errorf("step %q: unknown target type %q", s.Name, s.TargetType)
	}
	if s.Repeat < 1 {
		return fmt.Errorf("step %q: repeat must be >= 1", s.Name)
	}
	return nil
}

// StructuredWorkout is the canonical, persistable representation of a
// training session's structure. Step insertion order is execution order.
type StructuredWorkout struct {
	Sport                string
	TotalDistanceMeters  *int
	TotalDurationSeconds *int
	Steps                []WorkoutStep
}

// ActivityInput is the normalized inbound payload a workout is created from.
type ActivityInput struct {
	Sport                string
	TotalDistanceMeters  *int
	TotalDurationSeconds *int
	Notes                string
}

// Parseable reports whether the input carries enough signal to attempt
// structuring at all.
func (in ActivityInput) Parseable() bool {
	return in.TotalDistanceMeters != nil || in.TotalDurationSeconds != nil || strings.TrimSpace(in.Notes) != ""
}

// TargetBand is a concrete execution target range for one step. Value is set
// only for narrow threshold bands.
type TargetBand struct {
	Type  TargetType
	Min   float64
	Max   float64
	Value *float64
}

// GraphPoint is one sample of the visualization time-series.
type GraphPoint struct {
	TimeSeconds int
	Intensity   Intensity
	StepOrder   int
	StepName    string
	IsRecovery  bool
}

// Thresholds carries the per-user physiological reference values. An absent
// field means the matching sport has no target banding for this user.
type Thresholds struct {
	ThresholdPaceSecPerMeter *float64
	FTPWatts                 *float64
	ThresholdHRBPM           *float64
	UpdatedAt                time.Time
}

// WorkoutRecord is the persisted aggregate: the activity input, the parse
// record, and the authored steps from the last successful structuring.
type WorkoutRecord struct {
	ID                   string
	TenantID             string
	UserID               string
	Sport                string
	TotalDistanceMeters  *int
	TotalDurationSeconds *int
	Notes                string
	Steps                []WorkoutStep
	ParseStatus          ParseStatus
	ParseConfidence      *float64
	ParseDiagnostic      *string
	RawCandidate         *string
	Version              string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Structured projects the persisted record into its canonical workout form.
func (r WorkoutRecord) Structured() StructuredWorkout {
	return StructuredWorkout{
		Sport:                r.Sport,
		TotalDistanceMeters:  r.TotalDistanceMeters,
		TotalDurationSeconds: r.TotalDurationSeconds,
		Steps:                r.Steps,
	}
}
