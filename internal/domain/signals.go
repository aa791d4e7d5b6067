package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Signals are the deterministic quantities extractable from raw notes
// without any inference: an overall distance or duration, and an interval
// repeat pattern such as "6x400m". They backfill missing activity hints and
// give the instruction builder concrete numbers to anchor on.
type Signals struct {
	DistanceMeters       *int
	DurationSeconds      *int
	RepeatCount          *int
	RepeatDistanceMeters *int
}

var (
	// "10k", "5 km", "10000m", "3.5km"
	distanceRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(km|k|m)\b`)
	// "45min", "90 minutes", "1h", "1h30"
	durationRe = regexp.MustCompile(`(?i)\b(?:(\d+)\s*h(?:ours?)?\s*(\d+)?|(\d+)\s*min(?:utes?)?)\b`)
	// "6x400m", "4 x 1km"
	repeatRe = regexp.MustCompile(`(?i)\b(\d+)\s*x\s*(\d+(?:\.\d+)?)\s*(km|k|m)\b`)
)

// ExtractSignals scans notes for the first distance, duration, and repeat
// pattern. Repeat spans are excluded from the overall-distance match so
// "6x400m" is not mistaken for a 400m session.
func ExtractSignals(notes string) Signals {
	var sig Signals
	if strings.TrimSpace(notes) == "" {
		return sig
	}

	repeatSpan := []int{-1, -1}
	if m := repeatRe.FindStringSubmatchIndex(notes); m != nil {
		repeatSpan = []int{m[0], m[1]}
		count, _ := strconv.Atoi(notes[m[2]:m[3]])
		meters := toMeters(notes[m[4]:m[5]], notes[m[6]:m[7]])
		if count > 0 && meters > 0 {
			sig.RepeatCount = &count
			sig.RepeatDistanceMeters = &meters
		}
	}

	for _, m := range distanceRe.FindAllStringSubmatchIndex(notes, -1) {
		if m[0] >= repeatSpan[0] && m[1] <= repeatSpan[1] {
			continue
		}
		meters := toMeters(notes[m[2]:m[3]], notes[m[4]:m[5]])
		if meters > 0 {
			sig.DistanceMeters = &meters
			break
		}
	}

	if m := durationRe.FindStringSubmatch(notes); m != nil {
		seconds := 0
		if m[1] != "" {
			hours, _ := strconv.Atoi(m[1])
			seconds = hours * 3600
			if m[2] != "" {
				minutes, _ := strconv.Atoi(m[2])
				seconds += minutes * 60
			}
		} else if m[3] != "" {
			minutes, _ := strconv.Atoi(m[3])
			seconds = minutes * 60
		}
		if seconds > 0 {
			sig.DurationSeconds = &seconds
		}
	}

	return sig
}

func toMeters(amount, unit string) int {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil || value <= 0 {
		return 0
	}
	switch strings.ToLower(unit) {
	case "km", "k":
		return int(value * 1000)
	case "m":
		return int(value)
	default:
		return 0
	}
}
