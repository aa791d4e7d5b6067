package domain

import "fmt"

// NormalizeTotals fills an absent workout total from the per-step sum,
// weighted by repeat count. Explicitly supplied totals are never overwritten,
// which also makes the operation idempotent.
func NormalizeTotals(w StructuredWorkout) StructuredWorkout {
	out := w

	if out.TotalDistanceMeters == nil {
		sum := 0
		known := false
		for _, step := range w.Steps {
			if step.DistanceMeters != nil {
				sum += *step.DistanceMeters * step.Repeat
				known = true
			}
		}
		if known {
			out.TotalDistanceMeters = &sum
		}
	}

	if out.TotalDurationSeconds == nil {
		sum := 0
		known := false
		for _, step := range w.Steps {
			if step.DurationSeconds != nil {
				sum += *step.DurationSeconds * step.Repeat
				known = true
			}
		}
		if known {
			out.TotalDurationSeconds = &sum
		}
	}

	return out
}

// ExpandRepeats flattens a workout into unit steps for visualization and
// export. A step with repeat=N emits N consecutive copies with repeat=1,
// renumbered 0..k-1 in emission order; names gain a "(repeat i/N)" suffix
// only when N>1. The authored plan is never persisted in this form.
func ExpandRepeats(w StructuredWorkout) []WorkoutStep {
	expanded := make([]WorkoutStep, 0, len(w.Steps))
	for _, step := range w.Steps {
		for i := 0; i < step.Repeat; i++ {
			unit := step
			unit.Order = len(expanded)
			unit.Repeat = 1
			if step.Repeat > 1 {
				unit.Name = fmt.Sprintf("%s (repeat %d/%d)", step.Name, i+1, step.Repeat)
			}
			expanded = append(expanded, unit)
		}
	}
	return expanded
}
