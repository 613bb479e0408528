package planning

import (
	"time"

	"alcyxob/stride-planner/internal/domain"
)

// InReductionWindow reports whether date falls within daysBefore days ahead
// of a predicted period start, or on the start day and up to daysAfter days
// past it. Unknown cycle data never yields a window.
func InReductionWindow(r *domain.Runner, w domain.PeriodReduction, date time.Time) bool {
	phase := PhaseForRunner(r, date)
	if !phase.Known {
		return false
	}
	sinceStart := phase.DayInCycle - 1
	untilNext := phase.CycleLength - sinceStart
	return sinceStart <= w.DaysAfter || untilNext <= w.DaysBefore
}
