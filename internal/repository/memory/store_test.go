package memory

import (
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/repository"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPlanTransition_OneActivePerRunner(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	plans := store.Plans()
	runnerID := primitive.NewObjectID()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const n = 16
	ids := make([]primitive.ObjectID, n)
	for i := range ids {
		id, err := plans.Create(ctx, &domain.TrainingPlan{RunnerID: runnerID, Status: domain.PlanDraft, CreatedAt: now})
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = plans.Transition(ctx, ids[i], 0, domain.PlanActive, now)
		}(i)
	}
	wg.Wait()

	won := 0
	for i, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, repository.ErrDuplicate):
		default:
			t.Errorf("activation %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d plans activated, want exactly 1", won)
	}
}

func TestPlanUpdateRecalcState_VersionConflict(t *testing.T) {
	ctx := context.Background()
	plans := NewStore().Plans()
	id, _ := plans.Create(ctx, &domain.TrainingPlan{RunnerID: primitive.NewObjectID(), Status: domain.PlanActive})

	state := domain.RecalcState{PendingConfirmation: true}
	if err := plans.UpdateRecalcState(ctx, id, 0, state, time.Now()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := plans.UpdateRecalcState(ctx, id, 0, domain.RecalcState{}, time.Now()); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("stale write err = %v, want ErrVersionConflict", err)
	}
	got, _ := plans.GetByID(ctx, id)
	if got.Version != 1 || !got.Recalc.PendingConfirmation {
		t.Errorf("plan = version %d pending %v, want version 1 pending true", got.Version, got.Recalc.PendingConfirmation)
	}
	if err := plans.UpdateRecalcState(ctx, primitive.NewObjectID(), 0, state, time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing plan err = %v, want ErrNotFound", err)
	}
}

func TestSessionRecentReported(t *testing.T) {
	ctx := context.Background()
	sessions := NewStore().Sessions()
	planID := primitive.NewObjectID()
	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }
	done := day(1)

	err := sessions.CreateMany(ctx, []domain.TrainingSession{
		{PlanID: planID, ScheduledDate: day(1), CompletedAt: &done},
		{PlanID: planID, ScheduledDate: day(2), Skipped: true},
		{PlanID: planID, ScheduledDate: day(3)}, // not reported
		{PlanID: planID, ScheduledDate: day(4), Skipped: true},
		{PlanID: planID, ScheduledDate: day(6), Skipped: true}, // after cutoff
		{PlanID: primitive.NewObjectID(), ScheduledDate: day(2), Skipped: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := sessions.RecentReported(ctx, planID, day(5), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].ScheduledDate.Equal(day(4)) || !got[1].ScheduledDate.Equal(day(2)) {
		t.Errorf("order = %s, %s; want Feb 4 then Feb 2", got[0].ScheduledDate, got[1].ScheduledDate)
	}
}

func TestHistoryCreate_DuplicateToken(t *testing.T) {
	ctx := context.Background()
	history := NewStore().History()
	entry := &domain.PlanAdaptationHistory{PlanID: primitive.NewObjectID(), JobToken: "tok"}
	if _, err := history.Create(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if _, err := history.Create(ctx, &domain.PlanAdaptationHistory{JobToken: "tok"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate err = %v, want ErrDuplicate", err)
	}

	viewedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := history.MarkViewed(ctx, entry.ID, viewedAt); err != nil {
		t.Fatal(err)
	}
	_ = history.MarkViewed(ctx, entry.ID, viewedAt.Add(time.Hour))
	got, _ := history.GetByJobToken(ctx, "tok")
	if got.ViewedAt == nil || !got.ViewedAt.Equal(viewedAt) {
		t.Errorf("ViewedAt = %v, want first view time", got.ViewedAt)
	}
}
