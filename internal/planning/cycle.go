package planning

import (
	"math"
	"time"

	"alcyxob/stride-planner/internal/domain"
)

// canonicalCycle is the reference length phase fractions are defined on.
const canonicalCycle = 28

// Last day of each phase in a canonical 28-day cycle; luteal runs to the end.
const (
	menstrualEnd  = 5
	follicularEnd = 14
	ovulatoryEnd  = 17
)

// PhaseRange is an inclusive day range within a cycle.
type PhaseRange struct {
	Phase    domain.CyclePhase
	FirstDay int
	LastDay  int
}

// CyclePhaseResult is the calculator output. Known is false when the inputs
// do not allow a prediction; every other field is zero in that case.
type CyclePhaseResult struct {
	Known           bool
	Phase           domain.CyclePhase
	DayInCycle      int
	MenstruationDay int // set only in the menstrual phase
	CycleLength     int
}

// Unknown is the result used when cycle-aware behavior is disabled.
var Unknown = CyclePhaseResult{Phase: domain.PhaseUnknown}

// ValidCycleLength reports whether length is inside the accepted bounds.
func ValidCycleLength(length int) bool {
	return length >= domain.MinCycleLength && length <= domain.MaxCycleLength
}

// PhaseBounds scales the canonical phase boundaries to length and rounds
// them to whole days. The four ranges partition [1, length]. Callers must
// pass a valid length.
func PhaseBounds(length int) [4]PhaseRange {
	m := scaleBound(menstrualEnd, length)
	f := scaleBound(follicularEnd, length)
	o := scaleBound(ovulatoryEnd, length)
	return [4]PhaseRange{
		{Phase: domain.PhaseMenstrual, FirstDay: 1, LastDay: m},
		{Phase: domain.PhaseFollicular, FirstDay: m + 1, LastDay: f},
		{Phase: domain.PhaseOvulatory, FirstDay: f + 1, LastDay: o},
		{Phase: domain.PhaseLuteal, FirstDay: o + 1, LastDay: length},
	}
}

func scaleBound(canonicalDay, length int) int {
	return int(math.Round(float64(canonicalDay) * float64(length) / canonicalCycle))
}

// DayInCycle returns ((date - anchor) mod length) + 1 using a non-negative
// modulo, so dates before the anchor resolve too.
func DayInCycle(date, anchor time.Time, length int) int {
	diff := DaysBetween(anchor, date)
	return ((diff%length)+length)%length + 1
}

// CyclePhaseAt predicts the phase on date from an anchor and length.
func CyclePhaseAt(date time.Time, anchor *time.Time, length *int, regularity domain.CycleRegularity) CyclePhaseResult {
	if anchor == nil || length == nil || regularity == domain.RegularityDoNotTrack {
		return Unknown
	}
	if !ValidCycleLength(*length) {
		return Unknown
	}
	day := DayInCycle(date, *anchor, *length)
	res := CyclePhaseResult{Known: true, DayInCycle: day, CycleLength: *length}
	for _, r := range PhaseBounds(*length) {
		if day >= r.FirstDay && day <= r.LastDay {
			res.Phase = r.Phase
			break
		}
	}
	if res.Phase == domain.PhaseMenstrual {
		res.MenstruationDay = day
	}
	return res
}

// PhaseForRunner is CyclePhaseAt fed from a runner profile.
func PhaseForRunner(r *domain.Runner, date time.Time) CyclePhaseResult {
	if r == nil {
		return Unknown
	}
	return CyclePhaseAt(date, r.CycleAnchor, r.CycleLength, r.Regularity)
}

// Snapshot freezes a result for storage on a session; nil when unknown.
func (r CyclePhaseResult) Snapshot() *domain.CycleSnapshot {
	if !r.Known {
		return nil
	}
	return &domain.CycleSnapshot{
		Phase:           r.Phase,
		DayInCycle:      r.DayInCycle,
		MenstruationDay: r.MenstruationDay,
		CycleLength:     r.CycleLength,
	}
}

// NextPeriodStart returns the first predicted cycle start on or after date.
func NextPeriodStart(date, anchor time.Time, length int) time.Time {
	offset := DayInCycle(date, anchor, length) - 1
	if offset == 0 {
		return Day(date)
	}
	return AddDays(date, length-offset)
}
