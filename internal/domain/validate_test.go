package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func distanceStep(order, meters, repeat int) WorkoutStep {
	return WorkoutStep{
		Order:          order,
		Name:           "interval",
		DistanceMeters: intPtr(meters),
		Intensity:      IntensityVO2,
		TargetType:     TargetTypePace,
		Repeat:         repeat,
	}
}

func durationStep(order, seconds int) WorkoutStep {
	return WorkoutStep{
		Order:           order,
		Name:            "block",
		DurationSeconds: intPtr(seconds),
		Intensity:       IntensityEasy,
		TargetType:      TargetTypeNone,
		Repeat:          1,
	}
}

func TestValidateAcceptsSoundWorkout(t *testing.T) {
	w := StructuredWorkout{
		Sport: "run",
		Steps: []WorkoutStep{durationStep(0, 600), distanceStep(1, 400, 6), durationStep(2, 300)},
	}
	require.Empty(t, Validate(w, nil))
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	w := StructuredWorkout{
		Sport: "",
		Steps: []WorkoutStep{
			{Order: 0, Name: "", Intensity: "zone2", TargetType: "watts", Repeat: 0},
			{Order: 5, Name: "gap", DurationSeconds: intPtr(60), Intensity: IntensityEasy, TargetType: TargetTypeNone, Repeat: 1},
		},
	}

	violations := Validate(w, nil)
	require.GreaterOrEqual(t, len(violations), 6)

	joined := FormatViolations(violations)
	require.Contains(t, joined, "sport")
	require.Contains(t, joined, "name must not be empty")
	require.Contains(t, joined, "one of duration_seconds or distance_meters")
	require.Contains(t, joined, "unknown intensity")
	require.Contains(t, joined, "unknown target type")
	require.Contains(t, joined, "contiguous ascending run")
}

func TestValidateRejectsMutuallyExclusiveMagnitudes(t *testing.T) {
	step := durationStep(0, 600)
	step.DistanceMeters = intPtr(1000)
	w := StructuredWorkout{Sport: "run", Steps: []WorkoutStep{step}}

	violations := Validate(w, nil)
	require.Len(t, violations, 1)
	require.Contains(t, violations[0].Message, "mutually exclusive")
}

func TestValidateOrderRunMayStartAnywhere(t *testing.T) {
	w := StructuredWorkout{
		Sport: "run",
		Steps: []WorkoutStep{durationStep(3, 60), durationStep(4, 60), durationStep(5, 60)},
	}
	require.Empty(t, Validate(w, nil))
}

func TestValidateRejectsDuplicateOrders(t *testing.T) {
	w := StructuredWorkout{
		Sport: "run",
		Steps: []WorkoutStep{durationStep(0, 60), durationStep(0, 120)},
	}

	joined := FormatViolations(Validate(w, nil))
	require.Contains(t, joined, "duplicate order 0")
}

func TestValidateStepCountCeiling(t *testing.T) {
	steps := make([]WorkoutStep, MaxAuthoredSteps+1)
	for i := range steps {
		steps[i] = durationStep(i, 60)
	}
	w := StructuredWorkout{Sport: "run", Steps: steps}

	joined := FormatViolations(Validate(w, nil))
	require.Contains(t, joined, "exceeds maximum 50")

	require.Empty(t, Validate(StructuredWorkout{Sport: "run", Steps: steps[:MaxAuthoredSteps]}, nil))
}

func TestValidateDistanceHintIsAHardBound(t *testing.T) {
	w := StructuredWorkout{
		Sport: "run",
		Steps: []WorkoutStep{distanceStep(0, 400, 6)},
	}

	// 2400m against a 2400m hint: exactly at the bound is fine.
	require.Empty(t, Validate(w, intPtr(2400)))

	// One meter over: no tolerance applies.
	violations := Validate(w, intPtr(2399))
	require.Len(t, violations, 1)
	require.True(t, strings.Contains(violations[0].Message, "exceeds activity distance"))
}

func TestValidateRepeatWeightsDistanceSum(t *testing.T) {
	w := StructuredWorkout{
		Sport: "run",
		Steps: []WorkoutStep{distanceStep(0, 1000, 3), distanceStep(1, 500, 2)},
	}
	require.Empty(t, Validate(w, intPtr(4000)))
	require.NotEmpty(t, Validate(w, intPtr(3999)))
}
