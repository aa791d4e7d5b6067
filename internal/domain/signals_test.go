package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractSignalsDistanceAndRepeat(t *testing.T) {
	sig := ExtractSignals("10k easy with 6x400m strides")

	require.NotNil(t, sig.DistanceMeters)
	require.Equal(t, 10000, *sig.DistanceMeters)
	require.NotNil(t, sig.RepeatCount)
	require.Equal(t, 6, *sig.RepeatCount)
	require.NotNil(t, sig.RepeatDistanceMeters)
	require.Equal(t, 400, *sig.RepeatDistanceMeters)
	require.Nil(t, sig.DurationSeconds)
}

func TestExtractSignalsRepeatSpanNotMistakenForDistance(t *testing.T) {
	sig := ExtractSignals("6x400m on the track")

	require.Nil(t, sig.DistanceMeters, "the repeat distance is not the session distance")
	require.Equal(t, 6, *sig.RepeatCount)
	require.Equal(t, 400, *sig.RepeatDistanceMeters)
}

func TestExtractSignalsDurations(t *testing.T) {
	sig := ExtractSignals("45min steady")
	require.Equal(t, 45*60, *sig.DurationSeconds)

	sig = ExtractSignals("1h30 long run")
	require.Equal(t, 90*60, *sig.DurationSeconds)

	sig = ExtractSignals("2 hours easy spin")
	require.Equal(t, 2*3600, *sig.DurationSeconds)
}

func TestExtractSignalsUnits(t *testing.T) {
	sig := ExtractSignals("5 km tempo")
	require.Equal(t, 5000, *sig.DistanceMeters)

	sig = ExtractSignals("ran 3.5km home")
	require.Equal(t, 3500, *sig.DistanceMeters)

	sig = ExtractSignals("800m time trial")
	require.Equal(t, 800, *sig.DistanceMeters)
}

func TestExtractSignalsEmptyNotes(t *testing.T) {
	sig := ExtractSignals("   ")
	require.Nil(t, sig.DistanceMeters)
	require.Nil(t, sig.DurationSeconds)
	require.Nil(t, sig.RepeatCount)
}

func TestExtractSignalsPlainProse(t *testing.T) {
	sig := ExtractSignals("felt great today, legs were fresh")
	require.Nil(t, sig.DistanceMeters)
	require.Nil(t, sig.DurationSeconds)
	require.Nil(t, sig.RepeatCount)
}
