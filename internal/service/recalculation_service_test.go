package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alcyxob/stride-planner/internal/jobqueue"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConfirm_DispatchesPendingRecalculation(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	runnerID := agg.Plan.RunnerID
	ctx := context.Background()
	f.skipSessions(t, agg, 3)

	status, err := f.recalc.Confirm(ctx, runnerID, agg.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != RecalcViewInFlight || status.JobToken == "" {
		t.Fatalf("status = %+v", status)
	}
	got := f.plan(t, agg.Plan.ID).Recalc
	if got.PendingConfirmation || got.InFlightToken() != status.JobToken {
		t.Errorf("plan recalc = %+v, want dispatched %q", got, status.JobToken)
	}
	jobs := f.queue.Pending()
	if len(jobs) != 1 || jobs[0].Kind != jobqueue.KindAdaptPlan || jobs[0].Trigger == "" {
		t.Fatalf("queue = %+v", jobs)
	}

	if _, err := f.recalc.Confirm(ctx, runnerID, agg.Plan.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second Confirm err = %v, want ErrConflict", err)
	}
	if _, err := f.recalc.RequestRecalculation(ctx, agg.Plan.ID, true, "again"); !errors.Is(err, ErrRecalcInFlight) {
		t.Errorf("request while in flight err = %v, want ErrRecalcInFlight", err)
	}
	if n := len(f.queue.Pending()); n != 1 {
		t.Errorf("%d jobs enqueued, want 1", n)
	}
}

func TestDecline_ClearsPendingWithoutHistory(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	runnerID := agg.Plan.RunnerID
	ctx := context.Background()
	f.skipSessions(t, agg, 3)

	if _, err := f.recalc.Decline(ctx, primitive.NewObjectID(), agg.Plan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger Decline err = %v, want ErrNotFound", err)
	}
	status, err := f.recalc.Decline(ctx, runnerID, agg.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != RecalcViewIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
	if f.plan(t, agg.Plan.ID).Recalc.PendingConfirmation {
		t.Error("plan still pending after decline")
	}
	entries, err := f.history.ListHistory(ctx, runnerID, agg.Plan.ID)
	if err != nil || len(entries) != 0 {
		t.Errorf("history = %d entries, err %v; want none", len(entries), err)
	}
	if _, err := f.recalc.Decline(ctx, runnerID, agg.Plan.ID); !errors.Is(err, ErrNothingPending) {
		t.Errorf("second Decline err = %v, want ErrNothingPending", err)
	}
}

func TestConfirm_NothingPending(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	_, err := f.recalc.Confirm(context.Background(), agg.Plan.RunnerID, agg.Plan.ID)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestConfirm_EnqueueFailureRestoresPending(t *testing.T) {
	f := newFixture(t, withQueue(failingQueue{}))
	agg := f.activePlan(t, f.cycleRunner(t))
	ctx := context.Background()
	f.skipSessions(t, agg, 3)
	before := f.plan(t, agg.Plan.ID).Recalc

	if _, err := f.recalc.Confirm(ctx, agg.Plan.RunnerID, agg.Plan.ID); err == nil {
		t.Fatal("Confirm succeeded with a failing queue")
	}
	got := f.plan(t, agg.Plan.ID).Recalc
	if got.LastJobRef != nil || !got.PendingConfirmation || got.PendingReason != before.PendingReason {
		t.Errorf("plan recalc = %+v, want the pending proposal back", got)
	}
}

func TestConfirm_ConcurrentOneDispatch(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	ctx := context.Background()
	f.skipSessions(t, agg, 3)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.recalc.Confirm(ctx, agg.Plan.RunnerID, agg.Plan.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d confirmations succeeded, want 1", ok)
	}
	if jobs := f.queue.Pending(); len(jobs) != 1 {
		t.Errorf("%d jobs enqueued, want 1", len(jobs))
	}
}

func TestPollStatus(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	runnerID, planID := agg.Plan.RunnerID, agg.Plan.ID
	ctx := context.Background()

	poll := func() *RecalculationStatus {
		t.Helper()
		status, err := f.recalc.PollStatus(ctx, runnerID, planID)
		if err != nil {
			t.Fatal(err)
		}
		return status
	}

	if s := poll(); s.State != RecalcViewIdle {
		t.Errorf("fresh plan state = %s, want idle", s.State)
	}
	f.skipSessions(t, agg, 2)
	if s := poll(); s.State != RecalcViewPending || s.PendingSince == nil {
		t.Errorf("after skips = %+v, want pending", s)
	}

	dispatched, err := f.recalc.Confirm(ctx, runnerID, planID)
	if err != nil {
		t.Fatal(err)
	}
	if s := poll(); s.State != RecalcViewInFlight || s.JobState != jobqueue.StateQueued {
		t.Errorf("queued = %+v", s)
	}
	_ = f.queue.SetStatus(ctx, dispatched.JobToken, jobqueue.StateRunning)
	if s := poll(); s.State != RecalcViewInFlight || s.JobState != jobqueue.StateRunning {
		t.Errorf("running = %+v", s)
	}
	_ = f.queue.SetStatus(ctx, dispatched.JobToken, jobqueue.StateSucceeded)
	if s := poll(); s.State != RecalcViewIdle {
		t.Errorf("succeeded but unrecorded = %+v, want idle", s)
	}

	if _, err := f.recalc.PollStatus(ctx, primitive.NewObjectID(), planID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger err = %v, want ErrNotFound", err)
	}
}

func TestPollStatus_UnknownJob(t *testing.T) {
	tests := []struct {
		name string
		opts []fixtureOption
	}{
		{"token missing from store", []fixtureOption{withStatusStore(jobqueue.NewMemoryQueue())}},
		{"store unavailable", []fixtureOption{withStatusStore(failingStatusStore{})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			agg := f.activePlan(t, f.cycleRunner(t))
			ctx := context.Background()
			if _, err := f.recalc.RequestRecalculation(ctx, agg.Plan.ID, true, "manual"); err != nil {
				t.Fatal(err)
			}
			status, err := f.recalc.PollStatus(ctx, agg.Plan.RunnerID, agg.Plan.ID)
			if err != nil {
				t.Fatalf("PollStatus err = %v, want nil", err)
			}
			if status.State != RecalcViewUnknown || status.JobToken == "" {
				t.Errorf("status = %+v, want unknown with token", status)
			}
		})
	}
}

func TestRequestRecalculation_InactivePlan(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	ctx := context.Background()
	if _, err := f.lifecycle.ArchivePlan(ctx, agg.Plan.RunnerID, agg.Plan.ID); err != nil {
		t.Fatal(err)
	}
	for _, auto := range []bool{false, true} {
		if _, err := f.recalc.RequestRecalculation(ctx, agg.Plan.ID, auto, "late"); !errors.Is(err, ErrPlanNotActive) {
			t.Errorf("auto=%v err = %v, want ErrPlanNotActive", auto, err)
		}
	}
	if n := len(f.queue.Pending()); n != 0 {
		t.Errorf("%d jobs enqueued for an archived plan", n)
	}
}

func TestConfirm_AfterPlanLeavesActive(t *testing.T) {
	type leave func(f *fixture, ctx context.Context, runnerID, planID primitive.ObjectID) error
	tests := []struct {
		name  string
		leave leave
	}{
		{"archived", func(f *fixture, ctx context.Context, runnerID, planID primitive.ObjectID) error {
			_, err := f.lifecycle.ArchivePlan(ctx, runnerID, planID)
			return err
		}},
		{"completed", func(f *fixture, ctx context.Context, runnerID, planID primitive.ObjectID) error {
			_, err := f.lifecycle.CompletePlan(ctx, runnerID, planID)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			agg := f.activePlan(t, f.cycleRunner(t))
			runnerID := agg.Plan.RunnerID
			ctx := context.Background()
			f.skipSessions(t, agg, 3)
			if !f.plan(t, agg.Plan.ID).Recalc.PendingConfirmation {
				t.Fatal("expected a pending proposal after three skips")
			}

			if err := tt.leave(f, ctx, runnerID, agg.Plan.ID); err != nil {
				t.Fatal(err)
			}
			if got := f.plan(t, agg.Plan.ID).Recalc; got.PendingConfirmation || got.PendingReason != "" {
				t.Errorf("recalc = %+v, want proposal withdrawn", got)
			}

			if _, err := f.recalc.Confirm(ctx, runnerID, agg.Plan.ID); !errors.Is(err, ErrConflict) {
				t.Errorf("Confirm err = %v, want ErrConflict", err)
			}
			if n := len(f.queue.Pending()); n != 0 {
				t.Errorf("%d jobs enqueued for an inactive plan", n)
			}
			if tok := f.plan(t, agg.Plan.ID).Recalc.InFlightToken(); tok != "" {
				t.Errorf("in-flight token %q on an inactive plan", tok)
			}
		})
	}
}
