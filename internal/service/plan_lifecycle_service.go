package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/generator"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/planning"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanOptions are the runner's choices at creation time. Zero values fall
// back to defaults.
type PlanOptions struct {
	Name            string
	StartDate       *time.Time
	WeeklyStructure *domain.WeeklyStructure
	PeriodReduction *domain.PeriodReduction
}

// PlanAggregate is a plan with everything it owns.
type PlanAggregate struct {
	Plan     *domain.TrainingPlan
	Race     *domain.Race
	Sessions []domain.TrainingSession
}

type LifecycleConfig struct {
	MinLeadDays      int
	DefaultReduction domain.PeriodReduction
}

var defaultWeeklyStructure = domain.WeeklyStructure{DaysPerWeek: 4, LongRunDay: time.Sunday}

type PlanLifecycleService interface {
	CreatePlan(ctx context.Context, runnerID, raceID primitive.ObjectID, opts PlanOptions) (*PlanAggregate, error)
	ArchivePlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	CompletePlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	// CompleteFinishedPlans completes every active plan whose end date has
	// passed and returns how many it moved.
	CompleteFinishedPlans(ctx context.Context) (int, error)
}

type planLifecycleService struct {
	log      *logger.Logger
	clock    clock.Clock
	runners  repository.RunnerRepository
	races    repository.RaceRepository
	plans    repository.TrainingPlanRepository
	sessions repository.TrainingSessionRepository
	drafter  generator.SessionDrafter
	cfg      LifecycleConfig
}

func NewPlanLifecycleService(
	log *logger.Logger,
	clk clock.Clock,
	runners repository.RunnerRepository,
	races repository.RaceRepository,
	plans repository.TrainingPlanRepository,
	sessions repository.TrainingSessionRepository,
	drafter generator.SessionDrafter,
	cfg LifecycleConfig,
) PlanLifecycleService {
	return &planLifecycleService{
		log:      log.With("component", "PlanLifecycleService"),
		clock:    clk,
		runners:  runners,
		races:    races,
		plans:    plans,
		sessions: sessions,
		drafter:  drafter,
		cfg:      cfg,
	}
}

// CreatePlan builds a plan as a draft and then promotes it. The promotion is
// the atomic step: the store refuses a second active plan for the runner, so
// the early active-plan check below is only a fast path.
func (s *planLifecycleService) CreatePlan(ctx context.Context, runnerID, raceID primitive.ObjectID, opts PlanOptions) (*PlanAggregate, error) {
	now := s.clock.Now()
	today := planning.Day(now)

	// 1. Race must be the runner's and far enough away
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	if race.RunnerID != runnerID {
		return nil, ErrRaceNotFound
	}
	if lead := planning.DaysBetween(today, race.Date); lead < s.cfg.MinLeadDays {
		return nil, fmt.Errorf("%w: %d days to race, need %d", ErrRaceTooSoon, lead, s.cfg.MinLeadDays)
	}

	start := today
	if opts.StartDate != nil {
		start = planning.Day(*opts.StartDate)
		if start.Before(today) || !start.Before(planning.Day(race.Date)) {
			return nil, fmt.Errorf("%w: start date must be between today and the race", ErrValidation)
		}
	}
	weekly := defaultWeeklyStructure
	if opts.WeeklyStructure != nil {
		weekly = *opts.WeeklyStructure
		if weekly.DaysPerWeek < 1 || weekly.DaysPerWeek > 7 || weekly.LongRunDay < time.Sunday || weekly.LongRunDay > time.Saturday {
			return nil, fmt.Errorf("%w: weekly structure needs 1-7 days and a valid long-run day", ErrValidation)
		}
	}
	reduction := s.cfg.DefaultReduction
	if opts.PeriodReduction != nil {
		reduction = *opts.PeriodReduction
		if reduction.DaysBefore < 0 || reduction.DaysAfter < 0 {
			return nil, fmt.Errorf("%w: reduction window must not be negative", ErrValidation)
		}
	}

	// 2. Fast path
	if _, err := s.plans.GetActiveByRunner(ctx, runnerID); err == nil {
		return nil, ErrActivePlanExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// A runner without a profile plans without cycle awareness.
	runner, err := s.runners.GetByID(ctx, runnerID)
	if errors.Is(err, repository.ErrNotFound) {
		runner, err = &domain.Runner{ID: runnerID}, nil
	}
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = race.Name + " plan"
	}
	plan := &domain.TrainingPlan{
		RunnerID:        runnerID,
		RaceID:          race.ID,
		Name:            name,
		Status:          domain.PlanDraft,
		StartDate:       start,
		EndDate:         planning.Day(race.Date),
		WeeklyStructure: weekly,
		PeriodReduction: reduction,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// 3. Draft with sessions
	planID, err := s.plans.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = planID
	log := s.log.With("plan_id", planID.Hex(), "runner_id", runnerID.Hex())

	window := generator.PlanWindow{Start: plan.StartDate, End: plan.EndDate, WeeklyStructure: weekly, PeriodReduction: reduction}
	drafts, err := s.drafter.GenerateSessions(ctx, runner, race, window)
	if err != nil {
		s.discardDraft(ctx, plan, now)
		return nil, fmt.Errorf("generate sessions: %w", err)
	}
	sessions := make([]domain.TrainingSession, 0, len(drafts))
	for _, d := range drafts {
		day := planning.Day(d.ScheduledDate)
		sessions = append(sessions, domain.TrainingSession{
			PlanID:            planID,
			RunnerID:          runnerID,
			ScheduledDate:     day,
			WorkoutType:       d.WorkoutType,
			Title:             d.Title,
			Description:       d.Description,
			TargetDistanceKm:  d.TargetDistanceKm,
			TargetDurationMin: d.TargetDurationMin,
			TargetIntensity:   d.TargetIntensity,
			PhaseSnapshot:     planning.PhaseForRunner(runner, day).Snapshot(),
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	if err := s.sessions.CreateMany(ctx, sessions); err != nil {
		s.discardDraft(ctx, plan, now)
		return nil, err
	}

	// 4. Promote
	err = s.plans.Transition(ctx, planID, plan.Version, domain.PlanActive, now)
	if errors.Is(err, repository.ErrDuplicate) {
		log.Info("lost activation race; discarding draft")
		s.discardDraft(ctx, plan, now)
		return nil, ErrActivePlanExists
	}
	if err != nil {
		s.discardDraft(ctx, plan, now)
		return nil, err
	}
	plan.Status = domain.PlanActive
	plan.Version++

	log.Info("plan created", "sessions", len(sessions), "start", plan.StartDate.Format("2006-01-02"), "end", plan.EndDate.Format("2006-01-02"))
	return &PlanAggregate{Plan: plan, Race: race, Sessions: sessions}, nil
}

// discardDraft archives a draft that will never be promoted. Best effort:
// an orphaned draft is invisible to every read path.
func (s *planLifecycleService) discardDraft(ctx context.Context, plan *domain.TrainingPlan, now time.Time) {
	if err := s.plans.Transition(ctx, plan.ID, plan.Version, domain.PlanArchived, now); err != nil {
		s.log.Warn("failed to archive discarded draft", "plan_id", plan.ID.Hex(), "error", err)
	}
}

func (s *planLifecycleService) ArchivePlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	return s.transition(ctx, runnerID, planID, domain.PlanArchive)
}

func (s *planLifecycleService) CompletePlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	return s.transition(ctx, runnerID, planID, domain.PlanComplete)
}

func (s *planLifecycleService) transition(ctx context.Context, runnerID, planID primitive.ObjectID, event domain.PlanEvent) (*domain.TrainingPlan, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		plan, err := ownedPlan(ctx, s.plans, runnerID, planID)
		if err != nil {
			return nil, err
		}
		next, err := domain.NextPlanStatus(plan.Status, event)
		if err != nil {
			return nil, mapDomainErr(err)
		}
		now := s.clock.Now()
		err = s.plans.Transition(ctx, plan.ID, plan.Version, next, now)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plan.Status = next
		if next != domain.PlanActive {
			plan.Recalc = plan.Recalc.Withdraw()
		}
		plan.Version++
		plan.UpdatedAt = now
		switch next {
		case domain.PlanCompleted:
			plan.CompletedAt = &now
		case domain.PlanArchived:
			plan.ArchivedAt = &now
		}
		s.log.Info("plan transitioned", "plan_id", plan.ID.Hex(), "event", event, "status", next)
		return plan, nil
	}
	return nil, ErrConcurrentUpdate
}

func (s *planLifecycleService) CompleteFinishedPlans(ctx context.Context) (int, error) {
	today := planning.Day(s.clock.Now())
	plans, err := s.plans.ListActiveEndingBefore(ctx, today)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, p := range plans {
		if _, err := s.transition(ctx, p.RunnerID, p.ID, domain.PlanComplete); err != nil {
			s.log.Warn("failed to complete finished plan", "plan_id", p.ID.Hex(), "error", err)
			continue
		}
		completed++
	}
	return completed, nil
}
