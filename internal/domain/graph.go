package domain

import (
	"errors"
	"fmt"
)

// ErrDurationRequired is returned when a step selected for graphing carries
// only a distance. Distance-to-time pace modelling is out of scope, so the
// call fails rather than silently defaulting a duration.
var ErrDurationRequired = errors.New("graphing requires an explicit step duration")

// BuildSeries derives the visualization time-series for a workout. Repeats
// are expanded first; a monotonic cursor then advances from zero, emitting
// one point every resolutionSeconds inside [step_start, step_end) plus a
// closing point exactly at step_end if the stride did not already land there.
// The series is finite and freshly computed on every call.
func BuildSeries(w StructuredWorkout, resolutionSeconds int) ([]GraphPoint, error) {
	if resolutionSeconds <= 0 {
		return nil, fmt.Errorf("resolution_seconds must be positive, got %d", resolutionSeconds)
	}

	units := ExpandRepeats(w)
	points := make([]GraphPoint, 0, len(units)*2)
	cursor := 0

	for _, step := range units {
		if step.DurationSeconds == nil {
			return nil, fmt.Errorf("step %q (order %d): %w", step.Name, step.Order, ErrDurationRequired)
		}
		start := cursor
		end := cursor + *step.DurationSeconds

		last := -1
		for t := start; t < end; t += resolutionSeconds {
			points = append(points, graphPointAt(t, step))
			last = t
		}
		if last != end {
			points = append(points, graphPointAt(end, step))
		}

		cursor = end
	}

	return points, nil
}

func graphPointAt(t int, step WorkoutStep) GraphPoint {
	return GraphPoint{
		TimeSeconds: t,
		Intensity:   step.Intensity,
		StepOrder:   step.Order,
		StepName:    step.Name,
		IsRecovery:  step.IsRecovery,
	}
}
