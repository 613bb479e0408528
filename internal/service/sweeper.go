package service

import (
	"context"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/jobqueue"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"
)

// staleReason is the failure reason recorded for abandoned jobs.
const (
	staleReason = "stale"
	// The worker applied its session updates but the completion record was
	// never written, so the change list is lost.
	unreportedReason = "adaptation applied but completion was not recorded"
)

// SweepReport counts what one pass changed.
type SweepReport struct {
	PlansCompleted int `json:"plansCompleted"`
	JobsFailed     int `json:"jobsFailed"`
	JobsStale      int `json:"jobsStale"`
	JobsUnreported int `json:"jobsUnreported"`
}

// Sweeper reconciles state that no request will touch again: plans past
// their end date and dispatched jobs whose worker report never arrived.
type Sweeper struct {
	log        *logger.Logger
	clock      clock.Clock
	plans      repository.TrainingPlanRepository
	jobs       jobqueue.StatusStore
	lifecycle  PlanLifecycleService
	history    AdaptationHistoryService
	staleAfter time.Duration
}

func NewSweeper(
	log *logger.Logger,
	clk clock.Clock,
	plans repository.TrainingPlanRepository,
	jobs jobqueue.StatusStore,
	lifecycle PlanLifecycleService,
	history AdaptationHistoryService,
	staleAfter time.Duration,
) *Sweeper {
	return &Sweeper{
		log:        log.With("component", "Sweeper"),
		clock:      clk,
		plans:      plans,
		jobs:       jobs,
		lifecycle:  lifecycle,
		history:    history,
		staleAfter: staleAfter,
	}
}

func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	completed, err := s.lifecycle.CompleteFinishedPlans(ctx)
	if err != nil {
		return report, err
	}
	report.PlansCompleted = completed

	dispatched, err := s.plans.ListDispatched(ctx)
	if err != nil {
		return report, err
	}
	now := s.clock.Now()
	for i := range dispatched {
		switch s.reconcile(ctx, &dispatched[i], now) {
		case sweepFailed:
			report.JobsFailed++
		case sweepStale:
			report.JobsStale++
		case sweepUnreported:
			report.JobsUnreported++
		}
	}

	if report != (SweepReport{}) {
		s.log.Info("sweep finished", "plans_completed", report.PlansCompleted, "jobs_failed", report.JobsFailed, "jobs_stale", report.JobsStale, "jobs_unreported", report.JobsUnreported)
	}
	return report, nil
}

type sweepOutcome int

const (
	sweepNone sweepOutcome = iota
	sweepFailed
	sweepStale
	sweepUnreported
)

func (s *Sweeper) reconcile(ctx context.Context, plan *domain.TrainingPlan, now time.Time) sweepOutcome {
	token := plan.Recalc.InFlightToken()
	log := s.log.With("plan_id", plan.ID.Hex(), "job_token", token)

	state, err := s.jobs.GetStatus(ctx, token)
	if err != nil {
		log.Warn("job status lookup failed", "error", err)
		state = jobqueue.StateUnknown
	}

	switch {
	case state == jobqueue.StateFailed:
		if _, err := s.history.RecordFailedAdaptation(ctx, plan.ID, token, "worker reported failure"); err != nil {
			log.Warn("failed to record failed job", "error", err)
			return sweepNone
		}
		return sweepFailed
	case state == jobqueue.StateRunning:
		// a running job is waited out
		return sweepNone
	case plan.Recalc.DispatchedAt == nil || now.Sub(*plan.Recalc.DispatchedAt) <= s.staleAfter:
		return sweepNone
	case state == jobqueue.StateSucceeded:
		if _, err := s.history.RecordFailedAdaptation(ctx, plan.ID, token, unreportedReason); err != nil {
			log.Warn("failed to release unreported job", "error", err)
			return sweepNone
		}
		log.Warn("job succeeded without recording its completion; released", "dispatched_at", plan.Recalc.DispatchedAt)
		return sweepUnreported
	default:
		if _, err := s.history.RecordFailedAdaptation(ctx, plan.ID, token, staleReason); err != nil {
			log.Warn("failed to record stale job", "error", err)
			return sweepNone
		}
		log.Info("stale job released", "job_state", state)
		return sweepStale
	}
}
