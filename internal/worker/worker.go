// Package worker runs adaptation jobs claimed from the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/generator"
	"alcyxob/stride-planner/internal/jobqueue"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"
	"alcyxob/stride-planner/internal/service"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Concurrency int
	// ClaimWait bounds one blocking claim so loops notice cancellation.
	ClaimWait time.Duration
}

type Worker struct {
	log      *logger.Logger
	clock    clock.Clock
	consumer jobqueue.Consumer
	plans    repository.TrainingPlanRepository
	sessions repository.TrainingSessionRepository
	adapter  generator.Adapter
	history  service.AdaptationHistoryService
	opts     Options
}

func New(
	baseLog *logger.Logger,
	clk clock.Clock,
	consumer jobqueue.Consumer,
	plans repository.TrainingPlanRepository,
	sessions repository.TrainingSessionRepository,
	adapter generator.Adapter,
	history service.AdaptationHistoryService,
	opts Options,
) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ClaimWait <= 0 {
		opts.ClaimWait = time.Second
	}
	return &Worker{
		log:      baseLog.With("component", "AdaptationWorker"),
		clock:    clk,
		consumer: consumer,
		plans:    plans,
		sessions: sessions,
		adapter:  adapter,
		history:  history,
		opts:     opts,
	}
}

// Run blocks until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting adaptation worker pool", "concurrency", w.opts.Concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error { return w.runLoop(ctx, workerID) })
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) error {
	log := w.log.With("worker_id", workerID)
	for {
		job, err := w.consumer.Claim(ctx, w.opts.ClaimWait)
		switch {
		case ctx.Err() != nil:
			log.Info("Worker loop stopped")
			return nil
		case errors.Is(err, jobqueue.ErrQueueClosed):
			log.Info("Queue closed; worker loop stopped")
			return nil
		case err != nil:
			log.Warn("Claim failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.ClaimWait):
			}
			continue
		case job == nil:
			continue
		}
		w.Process(ctx, *job)
	}
}

// Process runs one job to a terminal state. Failures are recorded in the
// adaptation history rather than returned.
func (w *Worker) Process(ctx context.Context, job jobqueue.Job) {
	ctx, span := otel.Tracer("worker").Start(ctx, "adapt_plan",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("job.token", job.Token), attribute.String("plan.id", job.PlanID)))
	defer span.End()

	log := w.log.With("job_token", job.Token, "plan_id", job.PlanID)

	// An empty state leaves the job store untouched.
	var state jobqueue.State
	defer func() {
		if r := recover(); r != nil {
			log.Error("Adaptation panic", "panic", r)
			w.fail(ctx, job, fmt.Sprintf("panic: %v", r), log)
			state = jobqueue.StateFailed
		}
		if state == "" {
			return
		}
		if err := w.consumer.SetStatus(ctx, job.Token, state); err != nil {
			log.Warn("failed to store job status", "status", state, "error", err)
		}
	}()

	if job.Kind != jobqueue.KindAdaptPlan {
		log.Warn("No handler for job kind", "kind", job.Kind)
		return
	}
	state = jobqueue.StateFailed
	planID, err := primitive.ObjectIDFromHex(job.PlanID)
	if err != nil {
		log.Warn("job carries an invalid plan id", "error", err)
		return
	}

	// 1. Plan must still be waiting for this job
	plan, err := w.plans.GetByID(ctx, planID)
	if err != nil {
		log.Error("failed to load plan", "error", err)
		w.fail(ctx, job, "load plan: "+err.Error(), log)
		return
	}
	if plan.Recalc.InFlightToken() != job.Token {
		log.Info("job superseded; skipping", "in_flight", plan.Recalc.InFlightToken())
		state = ""
		return
	}
	if err := w.consumer.SetStatus(ctx, job.Token, jobqueue.StateRunning); err != nil {
		log.Warn("failed to mark job running", "error", err)
	}
	if !plan.IsActive() {
		log.Info("plan no longer active; releasing job", "status", plan.Status)
		w.fail(ctx, job, "plan is "+string(plan.Status), log)
		return
	}
	sessions, err := w.sessions.GetByPlanID(ctx, planID)
	if err != nil {
		w.fail(ctx, job, "load sessions: "+err.Error(), log)
		return
	}

	// 2. Adapt
	adaptation, err := w.adapter.AdaptSessions(ctx, plan, sessions, generator.Trigger{Reason: job.Trigger, Now: w.clock.Now()})
	if err != nil {
		log.Warn("adaptation failed", "error", err)
		w.fail(ctx, job, err.Error(), log)
		return
	}

	// 3. Apply in place so session IDs stay stable
	if err := w.apply(ctx, adaptation.Updates); err != nil {
		log.Error("failed to apply adaptation", "error", err)
		w.fail(ctx, job, "apply updates: "+err.Error(), log)
		return
	}

	// 4. Report
	if _, err := w.history.RecordCompletedAdaptation(ctx, planID, job.Token, adaptation.Changes, adaptation.Summary, job.Trigger); err != nil {
		// Sessions are already rewritten; the sweeper releases the plan.
		log.Error("failed to record adaptation", "error", err)
		state = jobqueue.StateSucceeded
		return
	}
	state = jobqueue.StateSucceeded
	log.Info("adaptation applied", "updates", len(adaptation.Updates), "summary", adaptation.Summary)
}

func (w *Worker) apply(ctx context.Context, updates []generator.SessionUpdate) error {
	now := w.clock.Now()
	for _, u := range updates {
		if err := w.sessions.UpdateTargets(ctx, u.SessionID, u.Targets, now); err != nil {
			return fmt.Errorf("session %s: %w", u.SessionID.Hex(), err)
		}
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job jobqueue.Job, reason string, log *logger.Logger) {
	planID, err := primitive.ObjectIDFromHex(job.PlanID)
	if err != nil {
		return
	}
	if _, err := w.history.RecordFailedAdaptation(ctx, planID, job.Token, reason); err != nil && !errors.Is(err, service.ErrStaleJobToken) {
		log.Error("failed to record failed adaptation", "error", err)
	}
}
