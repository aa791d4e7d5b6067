package domain

import "strings"

// sportClass groups open-ended sport strings into the three banding tables.
type sportClass int

const (
	sportRunning sportClass = iota
	sportCycling
	sportOther
)

func classifySport(sport string) sportClass {
	s := strings.ToLower(sport)
	switch {
	case strings.Contains(s, "run") || strings.Contains(s, "jog"):
		return sportRunning
	case strings.Contains(s, "ride") || strings.Contains(s, "bike") || strings.Contains(s, "cycl"):
		return sportCycling
	default:
		return sportOther
	}
}

// zoneFraction is a band expressed as fractions of the user threshold.
// narrow marks the threshold band whose single value is the threshold itself.
type zoneFraction struct {
	lo, hi float64
	narrow bool
}

// Running bands are inverse fractions because pace falls as speed rises.
var runningZones = map[Intensity]zoneFraction{
	IntensityEasy:      {0.70, 0.60, false},
	IntensityFlow:      {0.85, 0.70, false},
	IntensityTempo:     {0.95, 0.85, false},
	IntensityLT2:       {1.00, 0.95, false},
	IntensityThreshold: {1.02, 0.98, true},
	IntensityVO2:       {1.15, 1.05, false},
}

var cyclingZones = map[Intensity]zoneFraction{
	IntensityEasy:      {0.50, 0.65, false},
	IntensityFlow:      {0.65, 0.80, false},
	IntensityTempo:     {0.80, 0.90, false},
	IntensityLT2:       {0.90, 1.00, false},
	IntensityThreshold: {0.95, 1.05, true},
	IntensityVO2:       {1.05, 1.20, false},
}

var heartRateZones = map[Intensity]zoneFraction{
	IntensityEasy:      {0.60, 0.70, false},
	IntensityFlow:      {0.70, 0.85, false},
	IntensityTempo:     {0.85, 0.95, false},
	IntensityLT2:       {0.95, 1.00, false},
	IntensityThreshold: {0.97, 1.03, true},
	IntensityVO2:       {1.00, 1.10, false},
}

// TargetFor resolves an intensity zone into a concrete execution target band
// for the given sport and user thresholds. It is a deterministic table
// lookup: rest always yields none, and a missing sport-relevant threshold
// yields none rather than a fabricated default. Race efforts carry no band.
func TargetFor(intensity Intensity, sport string, thresholds Thresholds) TargetBand {
	none := TargetBand{Type: TargetTypeNone}
	if intensity == IntensityRest || intensity == IntensityRace {
		return none
	}

	switch classifySport(sport) {
	case sportRunning:
		zone, ok := runningZones[intensity]
		if !ok || thresholds.ThresholdPaceSecPerMeter == nil {
			return none
		}
		pace := *thresholds.ThresholdPaceSecPerMeter
		if zone.narrow {
			// The narrow band brackets the threshold pace symmetrically.
			value := pace
			return TargetBand{Type: TargetTypePace, Min: pace * 0.98, Max: pace * 1.02, Value: &value}
		}
		return TargetBand{Type: TargetTypePace, Min: pace / zone.lo, Max: pace / zone.hi}

	case sportCycling:
		zone, ok := cyclingZones[intensity]
		if !ok || thresholds.FTPWatts == nil {
			return none
		}
		ftp := *thresholds.FTPWatts
		band := TargetBand{Type: TargetTypePower, Min: ftp * zone.lo, Max: ftp * zone.hi}
		if zone.narrow {
			value := ftp
			band.Value = &value
		}
		return band

	default:
		zone, ok := heartRateZones[intensity]
		if !ok || thresholds.ThresholdHRBPM == nil {
			return none
		}
		hr := *thresholds.ThresholdHRBPM
		band := TargetBand{Type: TargetTypeHR, Min: hr * zone.lo, Max: hr * zone.hi}
		if zone.narrow {
			value := hr
			band.Value = &value
		}
		return band
	}
}
