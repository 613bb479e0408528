package generator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/planning"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template builds a periodized schedule from fixed tables. Output depends
// only on its inputs.
type Template struct{}

func NewTemplate() *Template { return &Template{} }

// Training days relative to the long-run day, in the order they are added
// as DaysPerWeek grows. Index 1 is the quality day.
var slotOffsets = [7]int{0, 3, 5, 1, 4, 6, 2}

// Long-run distance per stage as a share of the reference distance.
var longRunShare = map[domain.Stage]float64{
	domain.StageBase:  0.45,
	domain.StageBuild: 0.60,
	domain.StagePeak:  0.75,
	domain.StageTaper: 0.50,
}

type workoutProfile struct {
	paceMinPerKm float64
	intensity    int
	title        string
}

var profiles = map[domain.WorkoutType]workoutProfile{
	domain.WorkoutEasy:     {6.5, 3, "Easy run"},
	domain.WorkoutLong:     {6.75, 4, "Long run"},
	domain.WorkoutTempo:    {5.5, 7, "Tempo run"},
	domain.WorkoutInterval: {5.0, 8, "Intervals"},
	domain.WorkoutRecovery: {7.0, 2, "Recovery jog"},
	domain.WorkoutRace:     {5.75, 9, "Race day"},
}

const (
	minReferenceKm = 10.0
	maxReferenceKm = 42.2
	minSessionKm   = 3.0
	// Sessions inside a reduction window are capped at this RPE.
	reducedIntensityCap = 4
	reducedVolumeFactor = 0.85
	cutbackFactor       = 0.8
	adaptHorizonDays    = 14
)

// Slot 3 is the day after the long run; it becomes a recovery jog.
const recoverySlot = 3

func (t *Template) GenerateSessions(ctx context.Context, runner *domain.Runner, race *domain.Race, window PlanWindow) ([]SessionDraft, error) {
	if race == nil {
		return nil, fmt.Errorf("race required")
	}
	start, end := planning.Day(window.Start), planning.Day(window.End)
	if end.Before(start) {
		return nil, fmt.Errorf("plan window ends before it starts")
	}
	perWeek := window.WeeklyStructure.DaysPerWeek
	if perWeek < 1 || perWeek > 7 {
		perWeek = 4
	}
	slots := make(map[time.Weekday]int, perWeek)
	for i := 0; i < perWeek; i++ {
		slots[(window.WeeklyStructure.LongRunDay+time.Weekday(slotOffsets[i]))%7] = i
	}

	ref := math.Min(math.Max(race.DistanceKm, minReferenceKm), maxReferenceKm)
	var drafts []SessionDraft
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if day.Equal(end) {
			drafts = append(drafts, raceDraft(day, race))
			break
		}
		slot, ok := slots[day.Weekday()]
		if !ok {
			continue
		}
		stage := planning.StageAt(day, start, end)
		week := planning.DaysBetween(start, day) / 7
		draft := sessionFor(day, stage, slot, ref, week)
		if planning.InReductionWindow(runner, window.PeriodReduction, day) {
			soften(&draft)
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func raceDraft(day time.Time, race *domain.Race) SessionDraft {
	p := profiles[domain.WorkoutRace]
	return SessionDraft{
		ScheduledDate:     day,
		WorkoutType:       domain.WorkoutRace,
		Title:             race.Name,
		Description:       p.title,
		TargetDistanceKm:  round1(race.DistanceKm),
		TargetDurationMin: math.Round(race.DistanceKm * p.paceMinPerKm),
		TargetIntensity:   p.intensity,
	}
}

func sessionFor(day time.Time, stage domain.Stage, slot int, ref float64, week int) SessionDraft {
	longKm := ref * longRunShare[stage]
	// every fourth week eases off, except in the taper which is already light
	if week%4 == 3 && stage != domain.StageTaper {
		longKm *= cutbackFactor
	}

	wt, km := domain.WorkoutEasy, longKm*0.5
	switch slot {
	case 0:
		wt, km = domain.WorkoutLong, longKm
	case 1:
		switch stage {
		case domain.StageBuild:
			wt, km = domain.WorkoutTempo, longKm*0.5
		case domain.StagePeak:
			wt, km = domain.WorkoutInterval, longKm*0.4
		}
	case recoverySlot:
		wt, km = domain.WorkoutRecovery, longKm*0.35
	}
	if stage == domain.StageTaper && wt == domain.WorkoutEasy {
		km *= cutbackFactor
	}
	km = math.Max(km, minSessionKm)

	p := profiles[wt]
	return SessionDraft{
		ScheduledDate:     day,
		WorkoutType:       wt,
		Title:             p.title,
		Description:       fmt.Sprintf("%s week %d", stage, week+1),
		TargetDistanceKm:  round1(km),
		TargetDurationMin: math.Round(km * p.paceMinPerKm),
		TargetIntensity:   p.intensity,
	}
}

func soften(d *SessionDraft) {
	if d.TargetIntensity > reducedIntensityCap {
		if d.WorkoutType == domain.WorkoutTempo || d.WorkoutType == domain.WorkoutInterval {
			d.WorkoutType = domain.WorkoutEasy
			d.Title = profiles[domain.WorkoutEasy].title
		}
		d.TargetIntensity = reducedIntensityCap
	}
	d.TargetDistanceKm = round1(math.Max(d.TargetDistanceKm*reducedVolumeFactor, minSessionKm))
	d.TargetDurationMin = math.Round(d.TargetDistanceKm * profiles[d.WorkoutType].paceMinPerKm)
	d.Description += ", eased for cycle"
}

// AdaptSessions rescales the unreported sessions of the next two weeks. The
// direction comes from the last three reported sessions: mostly short or
// skipped lowers the load, mostly long raises it slightly.
func (t *Template) AdaptSessions(ctx context.Context, plan *domain.TrainingPlan, sessions []domain.TrainingSession, trigger Trigger) (*Adaptation, error) {
	today := planning.Day(trigger.Now)
	horizon := planning.AddDays(today, adaptHorizonDays)
	factor, verb := adaptFactor(sessions, today)

	out := &Adaptation{Updates: []SessionUpdate{}, Changes: []domain.SessionChange{}}
	for i := range sessions {
		s := &sessions[i]
		d := planning.Day(s.ScheduledDate)
		if s.Reported() || d.Before(today) || d.After(horizon) || s.WorkoutType == domain.WorkoutRace || s.WorkoutType == domain.WorkoutRest {
			continue
		}
		before := s.Targets()
		after := before
		after.TargetDistanceKm = round1(math.Max(before.TargetDistanceKm*factor, minSessionKm))
		after.TargetDurationMin = math.Round(before.TargetDurationMin * factor)
		if factor < 1 && after.TargetIntensity > 2 {
			after.TargetIntensity--
		}
		changes := diffTargets(s.ID, before, after)
		if len(changes) == 0 {
			continue
		}
		out.Updates = append(out.Updates, SessionUpdate{SessionID: s.ID, Targets: after})
		out.Changes = append(out.Changes, changes...)
	}

	if len(out.Updates) == 0 {
		out.Summary = "No upcoming sessions needed changes."
		return out, nil
	}
	pct := int(math.Round(math.Abs(1-factor) * 100))
	out.Summary = fmt.Sprintf("%s volume by %d%% across %d sessions in the next %d days.", verb, pct, len(out.Updates), adaptHorizonDays)
	if trigger.Reason != "" {
		out.Summary += " Reason: " + trigger.Reason + "."
	}
	return out, nil
}

func adaptFactor(sessions []domain.TrainingSession, today time.Time) (float64, string) {
	under, over, seen := 0, 0, 0
	for i := len(sessions) - 1; i >= 0 && seen < 3; i-- {
		s := sessions[i]
		if !s.Reported() || planning.Day(s.ScheduledDate).After(today) {
			continue
		}
		seen++
		switch r := completionRatio(s); {
		case r < 0.9:
			under++
		case r > 1.1:
			over++
		}
	}
	switch {
	case over > under && over >= 2:
		return 1.05, "Raised"
	case under >= over && under > 0:
		return 0.85, "Reduced"
	default:
		return 0.95, "Reduced"
	}
}

func completionRatio(s domain.TrainingSession) float64 {
	if s.Skipped {
		return 0
	}
	if s.Actual.DistanceKm != nil && s.TargetDistanceKm > 0 {
		return *s.Actual.DistanceKm / s.TargetDistanceKm
	}
	if s.Actual.DurationMin != nil && s.TargetDurationMin > 0 {
		return *s.Actual.DurationMin / s.TargetDurationMin
	}
	return 1
}

func diffTargets(id primitive.ObjectID, before, after domain.SessionTargets) []domain.SessionChange {
	var changes []domain.SessionChange
	add := func(field, b, a string) {
		if b != a {
			changes = append(changes, domain.SessionChange{SessionID: id, Field: field, Before: b, After: a})
		}
	}
	add("workoutType", string(before.WorkoutType), string(after.WorkoutType))
	add("targetDistanceKm", formatFloat(before.TargetDistanceKm), formatFloat(after.TargetDistanceKm))
	add("targetDurationMin", formatFloat(before.TargetDurationMin), formatFloat(after.TargetDurationMin))
	add("targetIntensity", strconv.Itoa(before.TargetIntensity), strconv.Itoa(after.TargetIntensity))
	return changes
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
