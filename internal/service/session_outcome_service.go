package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outcome is what a runner reports for a completed session.
type Outcome struct {
	DistanceKm  *float64
	DurationMin *float64
	Effort      *int
	Notes       string
	CompletedAt *time.Time
}

// OutcomeResult carries the stored session, the evaluation, and the
// coordinator's status when a recalculation was requested.
type OutcomeResult struct {
	Session       *domain.TrainingSession
	Evaluation    Evaluation
	Recalculation *RecalculationStatus
}

type SessionOutcomeService interface {
	RecordCompletion(ctx context.Context, sessionID, runnerID primitive.ObjectID, outcome Outcome) (*OutcomeResult, error)
	RecordSkip(ctx context.Context, sessionID, runnerID primitive.ObjectID, reason string) (*OutcomeResult, error)
}

type sessionOutcomeService struct {
	log      *logger.Logger
	clock    clock.Clock
	plans    repository.TrainingPlanRepository
	sessions repository.TrainingSessionRepository
	recalc   RecalculationService
}

func NewSessionOutcomeService(
	log *logger.Logger,
	clk clock.Clock,
	plans repository.TrainingPlanRepository,
	sessions repository.TrainingSessionRepository,
	recalc RecalculationService,
) SessionOutcomeService {
	return &sessionOutcomeService{
		log:      log.With("component", "SessionOutcomeService"),
		clock:    clk,
		plans:    plans,
		sessions: sessions,
		recalc:   recalc,
	}
}

func (s *sessionOutcomeService) RecordCompletion(ctx context.Context, sessionID, runnerID primitive.ObjectID, outcome Outcome) (*OutcomeResult, error) {
	if err := validateOutcome(outcome); err != nil {
		return nil, err
	}
	return s.record(ctx, sessionID, runnerID, func(session *domain.TrainingSession, now time.Time) {
		completedAt := now
		if outcome.CompletedAt != nil {
			completedAt = outcome.CompletedAt.UTC()
		}
		session.CompletedAt = &completedAt
		session.Skipped = false
		session.SkipReason = ""
		session.Actual = domain.ActualOutcome{
			DistanceKm:  outcome.DistanceKm,
			DurationMin: outcome.DurationMin,
			Effort:      outcome.Effort,
			Notes:       outcome.Notes,
		}
	})
}

func (s *sessionOutcomeService) RecordSkip(ctx context.Context, sessionID, runnerID primitive.ObjectID, reason string) (*OutcomeResult, error) {
	return s.record(ctx, sessionID, runnerID, func(session *domain.TrainingSession, now time.Time) {
		session.CompletedAt = nil
		session.Skipped = true
		session.SkipReason = reason
		session.Actual = domain.ActualOutcome{}
	})
}

func validateOutcome(o Outcome) error {
	if o.DistanceKm != nil && *o.DistanceKm < 0 {
		return fmt.Errorf("%w: distance must not be negative", ErrInvalidOutcome)
	}
	if o.DurationMin != nil && *o.DurationMin < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidOutcome)
	}
	if o.Effort != nil && (*o.Effort < 1 || *o.Effort > 10) {
		return fmt.Errorf("%w: effort must be between 1 and 10", ErrInvalidOutcome)
	}
	return nil
}

func (s *sessionOutcomeService) record(ctx context.Context, sessionID, runnerID primitive.ObjectID, apply func(*domain.TrainingSession, time.Time)) (*OutcomeResult, error) {
	// 1. Session must belong to an active plan of the runner
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.RunnerID != runnerID {
		return nil, ErrSessionNotFound
	}
	plan, err := s.plans.GetByID(ctx, session.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if plan.RunnerID != runnerID || !plan.IsActive() {
		return nil, ErrSessionNotFound
	}

	// 2. Persist
	now := s.clock.Now()
	apply(session, now)
	session.UpdatedAt = now
	if err := s.sessions.RecordOutcome(ctx, session); err != nil {
		return nil, err
	}

	// 3. Evaluate against recent history
	recent, err := s.sessions.RecentReported(ctx, plan.ID, session.ScheduledDate, deviationHistoryWindow+1)
	if err != nil {
		return nil, err
	}
	history := make([]domain.TrainingSession, 0, len(recent))
	for _, r := range recent {
		if r.ID != session.ID {
			history = append(history, r)
		}
	}
	ev := EvaluateDeviation(*session, history, plan.Recalc)
	result := &OutcomeResult{Session: session, Evaluation: ev}

	log := s.log.With("session_id", session.ID.Hex(), "plan_id", plan.ID.Hex())
	log.Debug("session outcome evaluated", "verdict", ev.Verdict, "decision", ev.Decision, "streak", ev.Streak, "effort_gap", ev.EffortGap)
	if ev.Decision != DecisionCandidate {
		return result, nil
	}

	// 4. Hand over; the outcome is already stored, so coordinator trouble is
	// logged rather than returned.
	status, err := s.recalc.RequestRecalculation(ctx, plan.ID, !ev.RequiresConfirmation, ev.Reason)
	switch {
	case errors.Is(err, ErrConflict):
		log.Info("recalculation not requested", "reason", err)
	case err != nil:
		log.Error("recalculation request failed", "error", err)
	default:
		result.Recalculation = status
	}
	return result, nil
}
