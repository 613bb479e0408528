package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/jobqueue"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecalcView is the coordinator state as shown to read paths.
type RecalcView string

const (
	RecalcViewIdle     RecalcView = "idle"
	RecalcViewPending  RecalcView = "pending_confirmation"
	RecalcViewInFlight RecalcView = "in_flight"
	RecalcViewUnknown  RecalcView = "unknown"
)

type RecalculationStatus struct {
	State         RecalcView     `json:"state"`
	JobToken      string         `json:"jobToken,omitempty"`
	JobState      jobqueue.State `json:"jobState,omitempty"`
	PendingReason string         `json:"pendingReason,omitempty"`
	PendingSince  *time.Time     `json:"pendingSince,omitempty"`
	DispatchedAt  *time.Time     `json:"dispatchedAt,omitempty"`
}

type RecalculationService interface {
	// RequestRecalculation dispatches immediately when autoDispatch is set,
	// otherwise it asks the runner first. Rejected while a job is in flight.
	RequestRecalculation(ctx context.Context, planID primitive.ObjectID, autoDispatch bool, reason string) (*RecalculationStatus, error)
	Confirm(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error)
	Decline(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error)
	// PollStatus never fails because of the job store; it reports unknown.
	PollStatus(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error)
	StatusFor(ctx context.Context, plan *domain.TrainingPlan) RecalculationStatus
}

type recalculationService struct {
	log         *logger.Logger
	clock       clock.Clock
	plans       repository.TrainingPlanRepository
	queue       jobqueue.Queue
	jobs        jobqueue.StatusStore
	pollTimeout time.Duration
	newToken    func() string
}

func NewRecalculationService(
	log *logger.Logger,
	clk clock.Clock,
	plans repository.TrainingPlanRepository,
	queue jobqueue.Queue,
	jobs jobqueue.StatusStore,
	pollTimeout time.Duration,
) RecalculationService {
	return &recalculationService{
		log:         log.With("component", "RecalculationService"),
		clock:       clk,
		plans:       plans,
		queue:       queue,
		jobs:        jobs,
		pollTimeout: pollTimeout,
		newToken:    uuid.NewString,
	}
}

func (s *recalculationService) RequestRecalculation(ctx context.Context, planID primitive.ObjectID, autoDispatch bool, reason string) (*RecalculationStatus, error) {
	now := s.clock.Now()
	if !autoDispatch {
		plan, err := updateRecalc(ctx, s.plans, planID, now, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
			if !p.IsActive() {
				return p.Recalc, ErrPlanNotActive
			}
			return p.Recalc.Propose(reason, now)
		})
		if err != nil {
			return nil, err
		}
		s.log.Info("recalculation awaiting confirmation", "plan_id", planID.Hex(), "reason", reason)
		return s.localStatus(plan.Recalc), nil
	}

	token := s.newToken()
	return s.dispatch(ctx, planID, token, now, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		if !p.IsActive() {
			return p.Recalc, ErrPlanNotActive
		}
		return p.Recalc.Dispatch(token, reason, now)
	})
}

func (s *recalculationService) Confirm(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error) {
	now := s.clock.Now()
	token := s.newToken()
	return s.dispatch(ctx, planID, token, now, ownedBy(runnerID, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		if !p.IsActive() {
			return p.Recalc, ErrPlanNotActive
		}
		return p.Recalc.Confirm(token, now)
	}))
}

// dispatch records token on the plan and then enqueues the job. The token is
// written first so a fast worker always finds it; if the enqueue fails the
// previous state is restored.
func (s *recalculationService) dispatch(ctx context.Context, planID primitive.ObjectID, token string, now time.Time, fn recalcTransition) (*RecalculationStatus, error) {
	var prev domain.RecalcState
	plan, err := updateRecalc(ctx, s.plans, planID, now, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		prev = p.Recalc
		return fn(p)
	})
	if err != nil {
		return nil, err
	}

	job := jobqueue.Job{
		Token:      token,
		Kind:       jobqueue.KindAdaptPlan,
		PlanID:     planID.Hex(),
		Trigger:    plan.Recalc.DispatchReason,
		EnqueuedAt: now,
	}
	log := s.log.With("plan_id", planID.Hex(), "job_token", token)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		log.Error("enqueue failed; restoring recalculation state", "error", err)
		if _, rerr := updateRecalc(ctx, s.plans, planID, s.clock.Now(), func(p *domain.TrainingPlan) (domain.RecalcState, error) {
			return p.Recalc.Revert(token, prev)
		}); rerr != nil {
			log.Error("failed to restore recalculation state", "error", rerr)
		}
		return nil, fmt.Errorf("enqueue adaptation job: %w", err)
	}

	log.Info("adaptation job dispatched", "reason", job.Trigger)
	return &RecalculationStatus{
		State:        RecalcViewInFlight,
		JobToken:     token,
		JobState:     jobqueue.StateQueued,
		DispatchedAt: plan.Recalc.DispatchedAt,
	}, nil
}

func (s *recalculationService) Decline(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error) {
	plan, err := updateRecalc(ctx, s.plans, planID, s.clock.Now(), ownedBy(runnerID, func(p *domain.TrainingPlan) (domain.RecalcState, error) {
		return p.Recalc.Decline()
	}))
	if err != nil {
		return nil, err
	}
	s.log.Info("recalculation declined", "plan_id", planID.Hex())
	return s.localStatus(plan.Recalc), nil
}

func (s *recalculationService) PollStatus(ctx context.Context, runnerID, planID primitive.ObjectID) (*RecalculationStatus, error) {
	plan, err := ownedPlan(ctx, s.plans, runnerID, planID)
	if err != nil {
		return nil, err
	}
	status := s.StatusFor(ctx, plan)
	return &status, nil
}

// StatusFor derives the status from plan, consulting the job store only
// when a job is recorded. The lookup is bounded by the poll timeout.
func (s *recalculationService) StatusFor(ctx context.Context, plan *domain.TrainingPlan) RecalculationStatus {
	if plan.Recalc.Phase() != domain.RecalcDispatched {
		return *s.localStatus(plan.Recalc)
	}
	token := plan.Recalc.InFlightToken()
	status := RecalculationStatus{
		State:        RecalcViewUnknown,
		JobToken:     token,
		JobState:     jobqueue.StateUnknown,
		DispatchedAt: plan.Recalc.DispatchedAt,
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()
	state, err := s.jobs.GetStatus(pollCtx, token)
	if err != nil {
		s.log.Warn("job status lookup failed", "plan_id", plan.ID.Hex(), "job_token", token, "error", err)
		return status
	}
	status.JobState = state
	switch {
	case state.InFlight():
		status.State = RecalcViewInFlight
	case state == jobqueue.StateSucceeded || state == jobqueue.StateFailed:
		status.State = RecalcViewIdle
	}
	return status
}

func (s *recalculationService) localStatus(state domain.RecalcState) *RecalculationStatus {
	if state.Phase() == domain.RecalcPendingConfirmation {
		return &RecalculationStatus{
			State:         RecalcViewPending,
			PendingReason: state.PendingReason,
			PendingSince:  state.PendingSince,
		}
	}
	return &RecalculationStatus{State: RecalcViewIdle}
}
