package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdaptationHistoryService interface {
	// RecordCompletedAdaptation is idempotent by job token: a replay returns
	// the entry recorded the first time.
	RecordCompletedAdaptation(ctx context.Context, planID primitive.ObjectID, jobToken string, changes []domain.SessionChange, summary, trigger string) (*domain.PlanAdaptationHistory, error)
	RecordFailedAdaptation(ctx context.Context, planID primitive.ObjectID, jobToken, reason string) (*domain.PlanAdaptationHistory, error)
	MarkSummaryViewed(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	MarkHistoryEntryViewed(ctx context.Context, runnerID, historyID primitive.ObjectID) (*domain.PlanAdaptationHistory, error)
	ListHistory(ctx context.Context, runnerID, planID primitive.ObjectID) ([]domain.PlanAdaptationHistory, error)
}

type adaptationHistoryService struct {
	log     *logger.Logger
	clock   clock.Clock
	plans   repository.TrainingPlanRepository
	history repository.AdaptationHistoryRepository
}

func NewAdaptationHistoryService(
	log *logger.Logger,
	clk clock.Clock,
	plans repository.TrainingPlanRepository,
	history repository.AdaptationHistoryRepository,
) AdaptationHistoryService {
	return &adaptationHistoryService{
		log:     log.With("component", "AdaptationHistoryService"),
		clock:   clk,
		plans:   plans,
		history: history,
	}
}

func (s *adaptationHistoryService) RecordCompletedAdaptation(ctx context.Context, planID primitive.ObjectID, jobToken string, changes []domain.SessionChange, summary, trigger string) (*domain.PlanAdaptationHistory, error) {
	if changes == nil {
		changes = []domain.SessionChange{}
	}
	entry := &domain.PlanAdaptationHistory{
		PlanID:          planID,
		JobToken:        jobToken,
		TriggerReason:   trigger,
		Status:          domain.AdaptationSucceeded,
		SessionsTouched: domain.CountTouchedSessions(changes),
		Changes:         changes,
		Summary:         summary,
	}
	return s.record(ctx, entry, func(state domain.RecalcState, now time.Time) (domain.RecalcState, error) {
		return state.Complete(jobToken, summary, now)
	})
}

func (s *adaptationHistoryService) RecordFailedAdaptation(ctx context.Context, planID primitive.ObjectID, jobToken, reason string) (*domain.PlanAdaptationHistory, error) {
	entry := &domain.PlanAdaptationHistory{
		PlanID:        planID,
		JobToken:      jobToken,
		Status:        domain.AdaptationFailed,
		Changes:       []domain.SessionChange{},
		FailureReason: reason,
	}
	return s.record(ctx, entry, func(state domain.RecalcState, now time.Time) (domain.RecalcState, error) {
		return state.Fail(jobToken)
	})
}

// record appends entry and then clears the plan's in-flight token. The
// history row goes first so that a crash in between is repaired by the
// replay: the existing row is found and the plan is still cleared.
func (s *adaptationHistoryService) record(ctx context.Context, entry *domain.PlanAdaptationHistory, settle func(domain.RecalcState, time.Time) (domain.RecalcState, error)) (*domain.PlanAdaptationHistory, error) {
	log := s.log.With("plan_id", entry.PlanID.Hex(), "job_token", entry.JobToken, "status", entry.Status)
	now := s.clock.Now()

	// 1. Replay?
	existing, err := s.history.GetByJobToken(ctx, entry.JobToken)
	switch {
	case err == nil:
		if existing.PlanID != entry.PlanID {
			return nil, ErrStaleJobToken
		}
		s.finish(ctx, existing, now, settle, log)
		log.Info("adaptation already recorded; replay ignored")
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	// 2. Only the plan's in-flight job may report
	plan, err := s.plans.GetByID(ctx, entry.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.Recalc.InFlightToken() != entry.JobToken || entry.JobToken == "" {
		log.Warn("stale adaptation report rejected", "in_flight", plan.Recalc.InFlightToken())
		return nil, ErrStaleJobToken
	}

	// 3. Append
	entry.RunnerID = plan.RunnerID
	if entry.TriggerReason == "" {
		entry.TriggerReason = plan.Recalc.DispatchReason
	}
	entry.RecordedAt = now
	id, err := s.history.Create(ctx, entry)
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent replay won the insert
		existing, gerr := s.history.GetByJobToken(ctx, entry.JobToken)
		if gerr != nil {
			return nil, gerr
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	entry.ID = id

	// 4. Clear the in-flight job
	s.finish(ctx, entry, now, settle, log)
	log.Info("adaptation recorded", "sessions_touched", entry.SessionsTouched)
	return entry, nil
}

// finish clears the plan's token for entry if it is still in flight. A token
// that already moved on means another report finished the job.
func (s *adaptationHistoryService) finish(ctx context.Context, entry *domain.PlanAdaptationHistory, now time.Time, settle func(domain.RecalcState, time.Time) (domain.RecalcState, error), log *logger.Logger) {
	_, err := updateRecalc(ctx, s.plans, entry.PlanID, now, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		return settle(p.Recalc, now)
	})
	if err != nil && !errors.Is(err, ErrStaleJobToken) {
		log.Error("failed to clear in-flight job", "error", err)
	}
}

func (s *adaptationHistoryService) MarkSummaryViewed(ctx context.Context, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	now := s.clock.Now()
	plan, err := ownedPlan(ctx, s.plans, runnerID, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Recalc.SummaryUnseen() {
		return plan, nil
	}
	return updateRecalc(ctx, s.plans, planID, now, ownedBy(runnerID, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		return p.Recalc.MarkViewed(now), nil
	}))
}

func (s *adaptationHistoryService) MarkHistoryEntryViewed(ctx context.Context, runnerID, historyID primitive.ObjectID) (*domain.PlanAdaptationHistory, error) {
	entry, err := s.history.GetByID(ctx, historyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHistoryNotFound
		}
		return nil, err
	}
	if entry.RunnerID != runnerID {
		return nil, ErrHistoryNotFound
	}
	if entry.ViewedAt != nil {
		return entry, nil
	}
	now := s.clock.Now()
	if err := s.history.MarkViewed(ctx, historyID, now); err != nil {
		return nil, err
	}
	entry.ViewedAt = &now
	return entry, nil
}

func (s *adaptationHistoryService) ListHistory(ctx context.Context, runnerID, planID primitive.ObjectID) ([]domain.PlanAdaptationHistory, error) {
	if _, err := ownedPlan(ctx, s.plans, runnerID, planID); err != nil {
		return nil, err
	}
	return s.history.ListByPlanID(ctx, planID)
}
