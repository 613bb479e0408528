package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreatePlan(t *testing.T) {
	f := newFixture(t)
	runnerID := f.cycleRunner(t)

	agg := f.activePlan(t, runnerID)
	if agg.Plan.Status != domain.PlanActive {
		t.Fatalf("status = %s, want active", agg.Plan.Status)
	}
	if !agg.Plan.StartDate.Equal(day(2026, 1, 1)) || !agg.Plan.EndDate.Equal(day(2026, 4, 26)) {
		t.Errorf("window = %s..%s", agg.Plan.StartDate, agg.Plan.EndDate)
	}
	if len(agg.Sessions) == 0 {
		t.Fatal("no sessions generated")
	}
	for _, s := range agg.Sessions {
		if s.PlanID != agg.Plan.ID || s.RunnerID != runnerID {
			t.Fatalf("session %s not linked to plan", s.ID.Hex())
		}
		if s.PhaseSnapshot == nil {
			t.Fatalf("session on %s has no phase snapshot for a cycle-aware runner", s.ScheduledDate.Format("2006-01-02"))
		}
	}

	stored, err := f.store.Sessions().GetByPlanID(context.Background(), agg.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(agg.Sessions) {
		t.Errorf("stored %d sessions, returned %d", len(stored), len(agg.Sessions))
	}

	race := f.race(t, runnerID, day(2026, 6, 7))
	if _, err := f.lifecycle.CreatePlan(context.Background(), runnerID, race.ID, PlanOptions{}); !errors.Is(err, ErrConflict) {
		t.Errorf("second CreatePlan err = %v, want ErrConflict", err)
	}
}

func TestCreatePlan_WithoutProfile(t *testing.T) {
	f := newFixture(t)
	runnerID := primitive.NewObjectID()
	agg := f.activePlan(t, runnerID)
	for _, s := range agg.Sessions {
		if s.PhaseSnapshot != nil {
			t.Fatalf("session on %s has a snapshot for a runner without cycle data", s.ScheduledDate.Format("2006-01-02"))
		}
	}
}

func TestCreatePlan_Validation(t *testing.T) {
	f := newFixture(t)
	runnerID := f.cycleRunner(t)
	other := primitive.NewObjectID()
	ctx := context.Background()

	soon := f.race(t, runnerID, day(2026, 1, 20))
	notMine := f.race(t, other, day(2026, 5, 1))
	later := f.race(t, runnerID, day(2026, 5, 1))
	badStart := day(2025, 12, 1)

	tests := []struct {
		name   string
		raceID primitive.ObjectID
		opts   PlanOptions
	}{
		{"race inside lead time", soon.ID, PlanOptions{}},
		{"race of another runner", notMine.ID, PlanOptions{}},
		{"unknown race", primitive.NewObjectID(), PlanOptions{}},
		{"start in the past", later.ID, PlanOptions{StartDate: &badStart}},
		{"too many days", later.ID, PlanOptions{WeeklyStructure: &domain.WeeklyStructure{DaysPerWeek: 8}}},
		{"negative reduction", later.ID, PlanOptions{PeriodReduction: &domain.PeriodReduction{DaysBefore: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lifecycle.CreatePlan(ctx, runnerID, tt.raceID, tt.opts)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}

	if _, err := f.store.Plans().GetActiveByRunner(ctx, runnerID); err == nil {
		t.Error("a rejected request left an active plan behind")
	}
}

func TestCreatePlan_ConcurrentCreatorsOneWins(t *testing.T) {
	f := newFixture(t)
	runnerID := f.cycleRunner(t)
	race := f.race(t, runnerID, day(2026, 4, 26))
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.CreatePlan(ctx, runnerID, race.ID, PlanOptions{})
		}(i)
	}
	wg.Wait()

	won := 0
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrActivePlanExists):
		default:
			t.Errorf("creator %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d creators succeeded, want exactly 1", won)
	}

	plans, err := f.store.Plans().ListByRunner(ctx, runnerID)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, p := range plans {
		switch p.Status {
		case domain.PlanActive:
			active++
		case domain.PlanDraft:
			t.Errorf("plan %s left in draft", p.ID.Hex())
		}
	}
	if active != 1 {
		t.Errorf("%d active plans stored, want 1", active)
	}
}

func TestCreatePlan_GeneratorFailureDiscardsDraft(t *testing.T) {
	f := newFixture(t, withDrafter(failingDrafter{}))
	runnerID := f.cycleRunner(t)
	race := f.race(t, runnerID, day(2026, 4, 26))
	ctx := context.Background()

	if _, err := f.lifecycle.CreatePlan(ctx, runnerID, race.ID, PlanOptions{}); err == nil {
		t.Fatal("CreatePlan succeeded with a failing generator")
	}
	plans, _ := f.store.Plans().ListByRunner(ctx, runnerID)
	if len(plans) != 1 || plans[0].Status != domain.PlanArchived {
		t.Fatalf("plans = %+v, want one archived draft", plans)
	}
}

func TestArchiveAndComplete(t *testing.T) {
	f := newFixture(t)
	runnerID := f.cycleRunner(t)
	agg := f.activePlan(t, runnerID)
	ctx := context.Background()

	if _, err := f.lifecycle.ArchivePlan(ctx, primitive.NewObjectID(), agg.Plan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("archive by stranger err = %v, want ErrNotFound", err)
	}

	archived, err := f.lifecycle.ArchivePlan(ctx, runnerID, agg.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if archived.Status != domain.PlanArchived || archived.ArchivedAt == nil {
		t.Errorf("archived = %s at %v", archived.Status, archived.ArchivedAt)
	}
	if _, err := f.lifecycle.CompletePlan(ctx, runnerID, agg.Plan.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("complete archived err = %v, want ErrConflict", err)
	}

	// the slot is free again
	next := f.race(t, runnerID, day(2026, 6, 7))
	if _, err := f.lifecycle.CreatePlan(ctx, runnerID, next.ID, PlanOptions{}); err != nil {
		t.Fatalf("CreatePlan after archive: %v", err)
	}
}

func TestCompleteFinishedPlans(t *testing.T) {
	f := newFixture(t)
	runnerID := f.cycleRunner(t)
	agg := f.activePlan(t, runnerID)
	ctx := context.Background()

	n, err := f.lifecycle.CompleteFinishedPlans(ctx)
	if err != nil || n != 0 {
		t.Fatalf("before race: completed %d, err %v", n, err)
	}

	f.clock.Set(day(2026, 4, 27).Add(6 * time.Hour))
	n, err = f.lifecycle.CompleteFinishedPlans(ctx)
	if err != nil || n != 1 {
		t.Fatalf("after race: completed %d, err %v", n, err)
	}
	if p := f.plan(t, agg.Plan.ID); p.Status != domain.PlanCompleted || p.CompletedAt == nil {
		t.Errorf("plan = %s completed at %v", p.Status, p.CompletedAt)
	}
}
