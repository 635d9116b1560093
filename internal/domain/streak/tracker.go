package streak

import (
	"time"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
)

// Outcome names what a touch did to a track.
type Outcome string

const (
	OutcomeStarted   Outcome = "STARTED"
	OutcomeExtended  Outcome = "EXTENDED"
	OutcomeGrace     Outcome = "GRACE"
	OutcomeReset     Outcome = "RESET"
	OutcomeUnchanged Outcome = "UNCHANGED"
)

// Transition is the result of one Touch.
type Transition struct {
	Kind    Kind
	Outcome Outcome
	Before  Track
	After   Track
}

// Changed reports whether the state needs to be persisted.
func (t Transition) Changed() bool {
	return t.Outcome != OutcomeUnchanged
}

// NewCycle reports whether this touch opened a new cycle.
func (t Transition) NewCycle() bool {
	return t.Outcome == OutcomeStarted || t.Outcome == OutcomeReset
}

// Crossed returns the thresholds reached by this touch and not before it in
// the same cycle.
func (t Transition) Crossed(thresholds []int) []int {
	if !t.Changed() {
		return nil
	}
	from := t.Before.Count
	if t.NewCycle() {
		from = 0
	}

	var out []int
	for _, th := range thresholds {
		if th > from && th <= t.After.Count {
			out = append(out, th)
		}
	}
	return out
}

// Touch records activity of kind on the user-local day today. It mutates
// state and consumes the account grace token when a single missed day is
// bridged.
func Touch(state *State, kind Kind, today calendar.Date, now time.Time) Transition {
	before := state.Track(kind)
	after := before
	tr := Transition{Kind: kind, Before: before}

	switch {
	case before.LastActiveDate.IsZero():
		after = Track{Count: 1, Cycle: before.Cycle + 1, LastActiveDate: today}
		tr.Outcome = OutcomeStarted

	case !today.After(before.LastActiveDate):
		// Same day, or the user's timezone moved backwards past it.
		tr.Outcome = OutcomeUnchanged

	default:
		switch gap := today.DaysSince(before.LastActiveDate); {
		case gap == 1:
			after.Count++
			tr.Outcome = OutcomeExtended
		case gap == 2 && !state.GraceUsed():
			used := now.UTC()
			state.GracePeriodUsedAt = &used
			after.Count++
			tr.Outcome = OutcomeGrace
		default:
			after.Count = 1
			after.Cycle++
			tr.Outcome = OutcomeReset
		}
		after.LastActiveDate = today
	}

	state.setTrack(kind, after)
	tr.After = after
	return tr
}

// IsAlive reports whether a stored track can still be extended on today.
// Display only; Touch is the source of truth.
func IsAlive(t Track, today calendar.Date, graceUsed bool) bool {
	if t.LastActiveDate.IsZero() || t.Count == 0 {
		return false
	}
	gap := today.DaysSince(t.LastActiveDate)
	if gap <= 1 {
		return true
	}
	return gap == 2 && !graceUsed
}
