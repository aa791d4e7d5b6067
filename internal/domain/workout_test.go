package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestParseIntensityRejectsUnknownTags(t *testing.T) {
	for _, raw := range []string{"easy", "TEMPO", " lt2 ", "threshold", "vo2", "flow", "rest", "race"} {
		_, err := ParseIntensity(raw)
		require.NoError(t, err, "tag %q should parse", raw)
	}

	for _, raw := range []string{"", "moderate", "zone2", "hard", "easy-ish"} {
		_, err := ParseIntensity(raw)
		require.Error(t, err, "tag %q should be rejected", raw)
	}
}

func TestParseTargetTypeRejectsUnknownTags(t *testing.T) {
	for _, raw := range []string{"none", "pace", "HR", "power", "rpe"} {
		_, err := ParseTargetType(raw)
		require.NoError(t, err, "tag %q should parse", raw)
	}

	_, err := ParseTargetType("watts")
	require.Error(t, err)
}

func TestWorkoutStepCheck(t *testing.T) {
	valid := WorkoutStep{
		Order:           0,
		Name:            "warmup",
		DurationSeconds: intPtr(600),
		Intensity:       IntensityEasy,
		TargetType:      TargetTypeNone,
		Repeat:          1,
	}
	require.NoError(t, valid.Check())

	tests := []struct {
		name   string
		mutate func(*WorkoutStep)
	}{
		{"negative order", func(s *WorkoutStep) { s.Order = -1 }},
		{"empty name", func(s *WorkoutStep) { s.Name = "  " }},
		{"zero duration", func(s *WorkoutStep) { s.DurationSeconds = intPtr(0) }},
		{"both magnitudes", func(s *WorkoutStep) { s.DistanceMeters = intPtr(1000) }},
		{"neither magnitude", func(s *WorkoutStep) { s.DurationSeconds = nil }},
		{"bad intensity", func(s *WorkoutStep) { s.Intensity = "zone2" }},
		{"bad target type", func(s *WorkoutStep) { s.TargetType = "watts" }},
		{"zero repeat", func(s *WorkoutStep) { s.Repeat = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			step := valid
			tc.mutate(&step)
			require.Error(t, step.Check())
		})
	}
}

func TestActivityInputParseable(t *testing.T) {
	require.False(t, ActivityInput{Sport: "run"}.Parseable())
	require.False(t, ActivityInput{Sport: "run", Notes: "   "}.Parseable())
	require.True(t, ActivityInput{Sport: "run", Notes: "10k easy"}.Parseable())
	require.True(t, ActivityInput{Sport: "run", TotalDistanceMeters: intPtr(10000)}.Parseable())
	require.True(t, ActivityInput{Sport: "run", TotalDurationSeconds: intPtr(3600)}.Parseable())
}
