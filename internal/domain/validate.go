package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Violation is a single structural invariant break found by Validate.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// FormatViolations renders a violation list as one diagnostic string, so a
// caller can relay the complete picture in a single retry round.
func FormatViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}

// Validate checks every structural invariant of a workout and accumulates
// all violations rather than short-circuiting on the first. An empty result
// means the workout is valid.
//
// When distanceHint is supplied, the summed authored distance must not
// exceed it. This is a hard bound with no tolerance, unlike the ±10%
// total-matching check applied by the parsing layer.
func Validate(w StructuredWorkout, distanceHint *int) []Violation {
	var violations []Violation

	add := func(path, format string, args ...any) {
		violations = append(violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(w.Sport) == "" {
		add("sport", "must not be empty")
	}
	if len(w.Steps) == 0 {
		add("steps", "must not be empty")
	}
	if len(w.Steps) > MaxAuthoredSteps {
		add("steps", "authored step count %d exceeds maximum %d", len(w.Steps), MaxAuthoredSteps)
	}

	orders := make([]int, 0, len(w.Steps))
	seen := make(map[int]bool, len(w.Steps))
	distanceSum := 0

	for i, step := range w.Steps {
		path := fmt.Sprintf("steps[%d]", i)

		if step.Order < 0 {
			add(path, "order %d must be >= 0", step.Order)
		}
		if strings.TrimSpace(step.Name) == "" {
			add(path, "name must not be empty")
		}
		switch {
		case step.DurationSeconds == nil && step.DistanceMeters == nil:
			add(path, "one of duration_seconds or distance_meters must be set")
		case step.DurationSeconds != nil && step.DistanceMeters != nil:
			add(path, "duration_seconds and distance_meters are mutually exclusive")
		case step.DurationSeconds != nil && *step.DurationSeconds <= 0:
			add(path, "duration_seconds must be positive")
		case step.DistanceMeters != nil && *step.DistanceMeters <= 0:
			add(path, "distance_meters must be positive")
		}
		if !step.Intensity.Valid() {
			add(path, "unknown intensity %q", step.Intensity)
		}
		if !step.TargetType.Valid() {
			add(path, "unknown target type %q", step.TargetType)
		}
		if step.Repeat < 1 {
			add(path, "repeat %d must be >= 1", step.Repeat)
		}

		if seen[step.Order] {
			add(path, "duplicate order %d", step.Order)
		}
		seen[step.Order] = true
		orders = append(orders, step.Order)

		if step.DistanceMeters != nil && step.Repeat >= 1 {
			distanceSum += *step.DistanceMeters * step.Repeat
		}
	}

	if len(orders) > 0 && !contiguousFromMin(orders) {
		add("steps", "order values must form a contiguous ascending run")
	}

	if distanceHint != nil && distanceSum > *distanceHint {
		add("steps", "summed step distance %dm exceeds activity distance %dm", distanceSum, *distanceHint)
	}

	return violations
}

// contiguousFromMin reports whether the distinct order values form an
// unbroken ascending run starting at their minimum.
func contiguousFromMin(orders []int) bool {
	sorted := append([]int(nil), orders...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return false
		}
	}
	return true
}
