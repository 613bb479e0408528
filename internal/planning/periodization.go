package planning

import (
	"time"

	"alcyxob/stride-planner/internal/domain"
)

// Stage thresholds in percent of the elapsed plan window. They are a fixed
// contract shared with client progress bars.
const (
	baseUntilPct  = 25
	buildUntilPct = 60
	peakUntilPct  = 85
)

// Progress returns the elapsed fraction of [start, end] at date, clamped to
// [0, 1]. ok is false when date lies outside the window. A single-day
// window counts as fully elapsed.
func Progress(date, start, end time.Time) (fraction float64, ok bool) {
	elapsed, total, ok := windowPosition(date, start, end)
	if !ok {
		return 0, false
	}
	if total == 0 {
		return 1, true
	}
	return float64(elapsed) / float64(total), true
}

// StageAt maps date to its periodization stage. Boundaries belong to the
// later stage: exactly 25% elapsed is Build.
func StageAt(date, start, end time.Time) domain.Stage {
	elapsed, total, ok := windowPosition(date, start, end)
	if !ok {
		return domain.StageNone
	}
	if total == 0 {
		return domain.StageTaper
	}
	// Integer comparison keeps the boundaries exact.
	pct := elapsed * 100
	switch {
	case pct < baseUntilPct*total:
		return domain.StageBase
	case pct < buildUntilPct*total:
		return domain.StageBuild
	case pct < peakUntilPct*total:
		return domain.StagePeak
	default:
		return domain.StageTaper
	}
}

// StageForPlan is StageAt over a plan's window.
func StageForPlan(p *domain.TrainingPlan, date time.Time) domain.Stage {
	if p == nil {
		return domain.StageNone
	}
	return StageAt(date, p.StartDate, p.EndDate)
}

func windowPosition(date, start, end time.Time) (elapsed, total int, ok bool) {
	total = DaysBetween(start, end)
	if total < 0 {
		return 0, 0, false
	}
	elapsed = DaysBetween(start, date)
	if elapsed < 0 || elapsed > total {
		return 0, 0, false
	}
	return elapsed, total, true
}
