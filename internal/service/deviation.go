package service

import (
	"fmt"
	"math"

	"alcyxob/stride-planner/internal/domain"
)

// Verdict classifies one reported session against its targets.
type Verdict string

const (
	VerdictOnTarget Verdict = "on_target"
	VerdictMinor    Verdict = "minor"
	VerdictUnder    Verdict = "under"
	VerdictOver     Verdict = "over"
)

// Decision is what the evaluator asks of the coordinator.
type Decision string

const (
	DecisionNoAction  Decision = "no_action"
	DecisionSilentLog Decision = "silent_log"
	DecisionCandidate Decision = "recalculation_candidate"
)

// Deviation thresholds. Ratios compare actual to target volume; effort gaps
// are RPE points between reported effort and planned intensity.
const (
	onTargetTolerance = 0.10
	underRatio        = 0.80
	overRatio         = 1.20
	onTargetEffortGap = 1
	directionalGap    = 2
	candidateGap      = 3
	severeGap         = 4
	candidateStreak   = 2
	severeStreak      = 5

	// Reported sessions consulted for the streak, beyond the current one.
	deviationHistoryWindow = 6
)

type Evaluation struct {
	Verdict   Verdict  `json:"verdict"`
	Decision  Decision `json:"decision"`
	Streak    int      `json:"streak"`
	EffortGap int      `json:"effortGap"`
	Severe    bool     `json:"severe"`
	// RequiresConfirmation is only meaningful for candidates.
	RequiresConfirmation bool   `json:"requiresConfirmation"`
	Reason               string `json:"reason,omitempty"`
}

// EvaluateDeviation classifies current against its targets and against
// history, the previously reported sessions of the plan newest first.
// A severe deviation is auto-dispatched unless a confirmation is already
// pending, in which case the runner's answer is awaited.
func EvaluateDeviation(current domain.TrainingSession, history []domain.TrainingSession, state domain.RecalcState) Evaluation {
	verdict, gap := classify(current)
	ev := Evaluation{Verdict: verdict, EffortGap: gap}

	switch verdict {
	case VerdictOnTarget:
		ev.Decision = DecisionNoAction
		return ev
	case VerdictMinor:
		ev.Decision = DecisionSilentLog
		return ev
	}

	ev.Streak = 1
	for i := 0; i < len(history) && i < deviationHistoryWindow; i++ {
		if v, _ := classify(history[i]); v != verdict {
			break
		}
		ev.Streak++
	}

	absGap := abs(gap)
	if ev.Streak < candidateStreak && absGap < candidateGap {
		ev.Decision = DecisionSilentLog
		return ev
	}
	ev.Decision = DecisionCandidate
	ev.Severe = ev.Streak >= severeStreak || absGap >= severeGap
	ev.RequiresConfirmation = !(ev.Severe && !state.PendingConfirmation)
	ev.Reason = reasonFor(ev, current)
	return ev
}

// classify returns the verdict and the signed effort gap (reported minus
// planned). Volume uses distance, falling back to duration.
func classify(s domain.TrainingSession) (Verdict, int) {
	if s.Skipped {
		return VerdictUnder, 0
	}
	gap := 0
	if s.Actual.Effort != nil && s.TargetIntensity > 0 {
		gap = *s.Actual.Effort - s.TargetIntensity
	}
	ratio, hasRatio := volumeRatio(s)

	switch {
	case (!hasRatio || math.Abs(ratio-1) <= onTargetTolerance) && abs(gap) <= onTargetEffortGap:
		return VerdictOnTarget, gap
	case hasRatio && ratio < underRatio:
		return VerdictUnder, gap
	case hasRatio && ratio > overRatio:
		return VerdictOver, gap
	case gap <= -directionalGap:
		return VerdictUnder, gap
	case gap >= directionalGap:
		return VerdictOver, gap
	default:
		return VerdictMinor, gap
	}
}

func volumeRatio(s domain.TrainingSession) (float64, bool) {
	if s.Actual.DistanceKm != nil && s.TargetDistanceKm > 0 {
		return *s.Actual.DistanceKm / s.TargetDistanceKm, true
	}
	if s.Actual.DurationMin != nil && s.TargetDurationMin > 0 {
		return *s.Actual.DurationMin / s.TargetDurationMin, true
	}
	return 0, false
}

func reasonFor(ev Evaluation, current domain.TrainingSession) string {
	if ev.Streak >= candidateStreak {
		if current.Skipped && ev.Verdict == VerdictUnder {
			return fmt.Sprintf("%d consecutive sessions missed or under target", ev.Streak)
		}
		return fmt.Sprintf("%d consecutive sessions %s target", ev.Streak, ev.Verdict)
	}
	dir := "above"
	if ev.EffortGap < 0 {
		dir = "below"
	}
	return fmt.Sprintf("reported effort %d points %s planned intensity", abs(ev.EffortGap), dir)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
