package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/planning"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recentlyUpdatedWindow bounds the "recently updated" badge on sessions.
const recentlyUpdatedWindow = 7 * 24 * time.Hour

type PlanSummary struct {
	Plan           *domain.TrainingPlan      `json:"plan"`
	Race           *domain.Race              `json:"race,omitempty"`
	Stage          domain.Stage              `json:"stage,omitempty"`
	Progress       float64                   `json:"progress"`
	TodayPhase     planning.CyclePhaseResult `json:"todayPhase"`
	Recalculation  RecalculationStatus       `json:"recalculation"`
	LatestSummary  string                    `json:"latestSummary,omitempty"`
	SummaryUnseen  bool                      `json:"summaryUnseen"`
	SessionCount   int                       `json:"sessionCount"`
	CompletedCount int                       `json:"completedCount"`
	SkippedCount   int                       `json:"skippedCount"`
	NextSession    *domain.TrainingSession   `json:"nextSession,omitempty"`
}

// SessionView is a session with its computed calendar fields.
type SessionView struct {
	Session           domain.TrainingSession `json:"session"`
	Stage             domain.Stage           `json:"stage,omitempty"`
	Phase             domain.CyclePhase      `json:"phase"`
	DayInCycle        int                    `json:"dayInCycle,omitempty"`
	MenstruationDay   int                    `json:"menstruationDay,omitempty"`
	PhaseFrozen       bool                   `json:"phaseFrozen"`
	InReductionWindow bool                   `json:"inReductionWindow"`
	RecentlyUpdated   bool                   `json:"recentlyUpdated"`
}

type PlanReadService interface {
	ActivePlan(ctx context.Context, runnerID primitive.ObjectID) (*PlanSummary, error)
	PlanByRace(ctx context.Context, runnerID, raceID primitive.ObjectID) (*PlanSummary, error)
	ListPlans(ctx context.Context, runnerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	Sessions(ctx context.Context, runnerID, planID primitive.ObjectID) ([]SessionView, error)
}

type planReadService struct {
	clock    clock.Clock
	runners  repository.RunnerRepository
	races    repository.RaceRepository
	plans    repository.TrainingPlanRepository
	sessions repository.TrainingSessionRepository
	recalc   RecalculationService
}

func NewPlanReadService(
	clk clock.Clock,
	runners repository.RunnerRepository,
	races repository.RaceRepository,
	plans repository.TrainingPlanRepository,
	sessions repository.TrainingSessionRepository,
	recalc RecalculationService,
) PlanReadService {
	return &planReadService{
		clock:    clk,
		runners:  runners,
		races:    races,
		plans:    plans,
		sessions: sessions,
		recalc:   recalc,
	}
}

func (s *planReadService) ActivePlan(ctx context.Context, runnerID primitive.ObjectID) (*PlanSummary, error) {
	plan, err := s.plans.GetActiveByRunner(ctx, runnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return s.summarize(ctx, plan)
}

// PlanByRace prefers the active plan for the race and falls back to the most
// recent finished one.
func (s *planReadService) PlanByRace(ctx context.Context, runnerID, raceID primitive.ObjectID) (*PlanSummary, error) {
	plan, err := s.plans.GetActiveByRunner(ctx, runnerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if plan == nil || plan.RaceID != raceID {
		plan, err = s.plans.GetLatestByRace(ctx, runnerID, raceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrPlanNotFound
			}
			return nil, err
		}
	}
	return s.summarize(ctx, plan)
}

func (s *planReadService) ListPlans(ctx context.Context, runnerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	plans, err := s.plans.ListByRunner(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	visible := plans[:0]
	for _, p := range plans {
		if p.Status != domain.PlanDraft {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (s *planReadService) summarize(ctx context.Context, plan *domain.TrainingPlan) (*PlanSummary, error) {
	now := s.clock.Now()
	runner, err := s.runner(ctx, plan.RunnerID)
	if err != nil {
		return nil, err
	}
	race, err := s.races.GetByID(ctx, plan.RaceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	sessions, err := s.sessions.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	progress, _ := planning.Progress(now, plan.StartDate, plan.EndDate)
	if planning.Day(now).After(planning.Day(plan.EndDate)) {
		progress = 1
	}
	sum := &PlanSummary{
		Plan:          plan,
		Race:          race,
		Stage:         planning.StageForPlan(plan, now),
		Progress:      progress,
		TodayPhase:    planning.PhaseForRunner(runner, now),
		Recalculation: s.recalc.StatusFor(ctx, plan),
		LatestSummary: plan.Recalc.LastSummary,
		SummaryUnseen: plan.Recalc.SummaryUnseen(),
		SessionCount:  len(sessions),
	}
	today := planning.Day(now)
	for i := range sessions {
		switch {
		case sessions[i].CompletedAt != nil:
			sum.CompletedCount++
		case sessions[i].Skipped:
			sum.SkippedCount++
		case sum.NextSession == nil && !sessions[i].ScheduledDate.Before(today):
			next := sessions[i]
			sum.NextSession = &next
		}
	}
	return sum, nil
}

func (s *planReadService) Sessions(ctx context.Context, runnerID, planID primitive.ObjectID) ([]SessionView, error) {
	plan, err := ownedPlan(ctx, s.plans, runnerID, planID)
	if err != nil {
		return nil, err
	}
	runner, err := s.runner(ctx, runnerID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, buildSessionView(plan, runner, session, now))
	}
	return views, nil
}

// buildSessionView uses the frozen snapshot when one exists. Only sessions
// from today on fall back to a live prediction; past rows without a snapshot
// stay unknown.
func buildSessionView(plan *domain.TrainingPlan, runner *domain.Runner, session domain.TrainingSession, now time.Time) SessionView {
	v := SessionView{
		Session:           session,
		Stage:             planning.StageForPlan(plan, session.ScheduledDate),
		Phase:             domain.PhaseUnknown,
		InReductionWindow: planning.InReductionWindow(runner, plan.PeriodReduction, session.ScheduledDate),
		RecentlyUpdated:   recentlyUpdated(plan, session, now),
	}
	switch snap := session.PhaseSnapshot; {
	case snap != nil:
		v.Phase, v.DayInCycle, v.MenstruationDay, v.PhaseFrozen = snap.Phase, snap.DayInCycle, snap.MenstruationDay, true
	case !planning.Day(session.ScheduledDate).Before(planning.Day(now)):
		if p := planning.PhaseForRunner(runner, session.ScheduledDate); p.Known {
			v.Phase, v.DayInCycle, v.MenstruationDay = p.Phase, p.DayInCycle, p.MenstruationDay
		}
	}
	return v
}

func recentlyUpdated(plan *domain.TrainingPlan, session domain.TrainingSession, now time.Time) bool {
	at := plan.Recalc.LastRecalculatedAt
	if !session.WasModified || at == nil {
		return false
	}
	if now.Sub(*at) > recentlyUpdatedWindow {
		return false
	}
	d := session.UpdatedAt.Sub(*at)
	if d < 0 {
		d = -d
	}
	return d <= recentlyUpdatedWindow
}

func (s *planReadService) runner(ctx context.Context, id primitive.ObjectID) (*domain.Runner, error) {
	runner, err := s.runners.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.Runner{ID: id}, nil
	}
	return runner, err
}
