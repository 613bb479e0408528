package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/generator"
	"alcyxob/stride-planner/internal/jobqueue"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository/memory"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixture wires every service against the in-memory store on 2026-01-01.
type fixture struct {
	clock     *clock.Fixed
	store     *memory.Store
	queue     *jobqueue.MemoryQueue
	lifecycle PlanLifecycleService
	recalc    RecalculationService
	outcomes  SessionOutcomeService
	history   AdaptationHistoryService
	reads     PlanReadService
	runners   RunnerService
}

type fixtureOption func(*fixtureDeps)

type fixtureDeps struct {
	drafter generator.SessionDrafter
	queue   jobqueue.Queue
	jobs    jobqueue.StatusStore
}

func withDrafter(d generator.SessionDrafter) fixtureOption {
	return func(deps *fixtureDeps) { deps.drafter = d }
}

func withQueue(q jobqueue.Queue) fixtureOption {
	return func(deps *fixtureDeps) { deps.queue = q }
}

func withStatusStore(s jobqueue.StatusStore) fixtureOption {
	return func(deps *fixtureDeps) { deps.jobs = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		clock: clock.NewFixed(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)),
		store: memory.NewStore(),
		queue: jobqueue.NewMemoryQueue(),
	}
	deps := fixtureDeps{drafter: generator.NewTemplate(), queue: f.queue, jobs: f.queue}
	for _, o := range opts {
		o(&deps)
	}

	f.recalc = NewRecalculationService(log, f.clock, f.store.Plans(), deps.queue, deps.jobs, 50*time.Millisecond)
	f.lifecycle = NewPlanLifecycleService(log, f.clock, f.store.Runners(), f.store.Races(), f.store.Plans(), f.store.Sessions(), deps.drafter,
		LifecycleConfig{MinLeadDays: 28, DefaultReduction: domain.PeriodReduction{DaysBefore: 2, DaysAfter: 2}})
	f.outcomes = NewSessionOutcomeService(log, f.clock, f.store.Plans(), f.store.Sessions(), f.recalc)
	f.history = NewAdaptationHistoryService(log, f.clock, f.store.Plans(), f.store.History())
	f.reads = NewPlanReadService(f.clock, f.store.Runners(), f.store.Races(), f.store.Plans(), f.store.Sessions(), f.recalc)
	f.runners = NewRunnerService(log, f.clock, f.store.Runners(), f.store.Races())
	return f
}

// cycleRunner registers a runner with a regular 28-day cycle starting on
// 2026-01-01.
func (f *fixture) cycleRunner(t *testing.T) primitive.ObjectID {
	t.Helper()
	id := primitive.NewObjectID()
	anchor := day(2026, 1, 1)
	length := 28
	if _, err := f.runners.UpdateCycleProfile(context.Background(), id, CycleProfile{Anchor: &anchor, Length: &length, Regularity: domain.RegularityRegular}); err != nil {
		t.Fatalf("UpdateCycleProfile: %v", err)
	}
	return id
}

func (f *fixture) race(t *testing.T, runnerID primitive.ObjectID, date time.Time) *domain.Race {
	t.Helper()
	race, err := f.runners.RegisterRace(context.Background(), runnerID, RaceInput{Name: "Spring Half", Date: date, DistanceKm: 21.1})
	if err != nil {
		t.Fatalf("RegisterRace: %v", err)
	}
	return race
}

// activePlan creates the 16-week plan ending 2026-04-26.
func (f *fixture) activePlan(t *testing.T, runnerID primitive.ObjectID) *PlanAggregate {
	t.Helper()
	race := f.race(t, runnerID, day(2026, 4, 26))
	agg, err := f.lifecycle.CreatePlan(context.Background(), runnerID, race.ID, PlanOptions{})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return agg
}

func (f *fixture) plan(t *testing.T, id primitive.ObjectID) *domain.TrainingPlan {
	t.Helper()
	p, err := f.store.Plans().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(plan): %v", err)
	}
	return p
}

// firstSessions returns the plan's first n sessions in calendar order.
func firstSessions(t *testing.T, agg *PlanAggregate, n int) []domain.TrainingSession {
	t.Helper()
	if len(agg.Sessions) < n {
		t.Fatalf("plan has %d sessions, need %d", len(agg.Sessions), n)
	}
	sorted := append([]domain.TrainingSession(nil), agg.Sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ScheduledDate.Before(sorted[j].ScheduledDate) })
	return sorted[:n]
}

// easySession returns the first session with room for a large effort gap.
func easySession(t *testing.T, agg *PlanAggregate) domain.TrainingSession {
	t.Helper()
	for _, s := range firstSessions(t, agg, len(agg.Sessions)) {
		if s.TargetIntensity > 0 && s.TargetIntensity <= 5 && s.TargetDistanceKm > 0 {
			return s
		}
	}
	t.Fatal("no easy session in plan")
	return domain.TrainingSession{}
}

// skipSessions skips the first n sessions and returns the last result.
func (f *fixture) skipSessions(t *testing.T, agg *PlanAggregate, n int) *OutcomeResult {
	t.Helper()
	var res *OutcomeResult
	for _, s := range firstSessions(t, agg, n) {
		var err error
		res, err = f.outcomes.RecordSkip(context.Background(), s.ID, agg.Plan.RunnerID, "travel")
		if err != nil {
			t.Fatalf("RecordSkip(%s): %v", s.ScheduledDate.Format("2006-01-02"), err)
		}
	}
	return res
}

type failingDrafter struct{}

func (failingDrafter) GenerateSessions(ctx context.Context, runner *domain.Runner, race *domain.Race, window generator.PlanWindow) ([]generator.SessionDraft, error) {
	return nil, errors.New("content service unavailable")
}

type failingQueue struct{}

func (failingQueue) Enqueue(ctx context.Context, job jobqueue.Job) error {
	return errors.New("redis: connection refused")
}

type failingStatusStore struct{}

func (failingStatusStore) GetStatus(ctx context.Context, token string) (jobqueue.State, error) {
	return jobqueue.StateUnknown, errors.New("redis: i/o timeout")
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
