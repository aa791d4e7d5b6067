package parsing

import (
	"fmt"
	"strings"

	"example.com/workout/internal/domain"
)

// systemContract is the fixed generation contract. Every attempt runs under
// the same contract; only the instruction varies between attempts.
const systemContract = `You are a workout structuring engine for an endurance coaching backend.
You convert an athlete's free-form training notes into a structured workout.

Rules:
- Respond with strict JSON only, matching this shape:
  {"sport": string, "confidence": number, "steps": [{"order": int, "name": string,
   "duration_seconds": int|null, "distance_meters": int|null, "intensity": string,
   "target_type": string, "repeat": int, "is_recovery": bool}]}
- Never invent steps that are not implied by the notes.
- Each step sets exactly one of duration_seconds and distance_meters, always positive.
- Express repetitions through the repeat field, never by duplicating steps.
- Set is_recovery true on recovery jogs, spins, and rest intervals.
- intensity must be one of: easy, tempo, lt2, threshold, vo2, flow, rest, race.
- target_type must be one of: none, pace, hr, power, rpe.
- confidence is your own estimate in [0,1] of how faithfully the steps reflect the notes.
- Step order starts at 0 and increases by 1.`

// BuildInstruction renders the per-call instruction from the caller's sport,
// notes, hints, and any deterministically extracted signals.
func BuildInstruction(in domain.ParseInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sport: %s\n", in.Sport)
	fmt.Fprintf(&b, "Notes: %s\n", in.Notes)

	if in.TotalDistanceMeters != nil {
		fmt.Fprintf(&b, "Total activity distance: %d meters. Step distances times repeats should sum close to this.\n", *in.TotalDistanceMeters)
	}
	if in.TotalDurationSeconds != nil {
		fmt.Fprintf(&b, "Total activity duration: %d seconds. Step durations times repeats should sum close to this.\n", *in.TotalDurationSeconds)
	}
	if in.Signals.RepeatCount != nil && in.Signals.RepeatDistanceMeters != nil {
		fmt.Fprintf(&b, "The notes mention an interval block of %d x %d meters; model it as a single step with repeat=%d.\n",
			*in.Signals.RepeatCount, *in.Signals.RepeatDistanceMeters, *in.Signals.RepeatCount)
	}

	b.WriteString("Produce the structured workout JSON.")
	return b.String()
}

// NextInstruction is a pure reducer from the previous instruction and the
// error it produced to the corrective instruction for the next attempt.
// There is no hidden accumulator; each attempt's instruction is derived
// fresh from this function alone.
func NextInstruction(previous string, cause error) string {
	return fmt.Sprintf("%s\n\nYour previous response was rejected: %v\nCorrect the problem and respond again with strict JSON only.", previous, cause)
}
