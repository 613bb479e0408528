// Package memory is an in-process implementation of the repository
// interfaces. A single mutex guards all collections, which makes every
// conditional write atomic the same way the Mongo filters are.
package memory

import (
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu       sync.RWMutex
	runners  map[primitive.ObjectID]domain.Runner
	races    map[primitive.ObjectID]domain.Race
	plans    map[primitive.ObjectID]domain.TrainingPlan
	sessions map[primitive.ObjectID]domain.TrainingSession
	history  map[primitive.ObjectID]domain.PlanAdaptationHistory
}

func NewStore() *Store {
	return &Store{
		runners:  make(map[primitive.ObjectID]domain.Runner),
		races:    make(map[primitive.ObjectID]domain.Race),
		plans:    make(map[primitive.ObjectID]domain.TrainingPlan),
		sessions: make(map[primitive.ObjectID]domain.TrainingSession),
		history:  make(map[primitive.ObjectID]domain.PlanAdaptationHistory),
	}
}

func (s *Store) Runners() repository.RunnerRepository { return runnerRepo{s} }
func (s *Store) Races() repository.RaceRepository { return raceRepo{s} }
func (s *Store) Plans() repository.TrainingPlanRepository { return planRepo{s} }
func (s *Store) Sessions() repository.TrainingSessionRepository { return sessionRepo{s} }
func (s *Store) History() repository.AdaptationHistoryRepository { return historyRepo{s} }

func newID(id primitive.ObjectID) primitive.ObjectID {
	if id.IsZero() {
		return primitive.NewObjectID()
	}
	return id
}

// --- runners ---

type runnerRepo struct{ s *Store }

func (r runnerRepo) Create(ctx context.Context, runner *domain.Runner) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	runner.ID = newID(runner.ID)
	if _, exists := r.s.runners[runner.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	r.s.runners[runner.ID] = *runner
	return runner.ID, nil
}

func (r runnerRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Runner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	runner, ok := r.s.runners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &runner, nil
}

func (r runnerRepo) UpdateCycleProfile(ctx context.Context, id primitive.ObjectID, anchor *time.Time, length *int, regularity domain.CycleRegularity, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	runner, ok := r.s.runners[id]
	if !ok {
		return repository.ErrNotFound
	}
	runner.CycleAnchor = anchor
	runner.CycleLength = length
	runner.Regularity = regularity
	runner.UpdatedAt = at
	r.s.runners[id] = runner
	return nil
}

// --- races ---

type raceRepo struct{ s *Store }

func (r raceRepo) Create(ctx context.Context, race *domain.Race) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	race.ID = newID(race.ID)
	r.s.races[race.ID] = *race
	return race.ID, nil
}

func (r raceRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Race, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	race, ok := r.s.races[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &race, nil
}

func (r raceRepo) SetResult(ctx context.Context, id primitive.ObjectID, result domain.RaceResult, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	race, ok := r.s.races[id]
	if !ok {
		return repository.ErrNotFound
	}
	race.Result = &result
	race.UpdatedAt = at
	r.s.races[id] = race
	return nil
}

// --- plans ---

type planRepo struct{ s *Store }

func (r planRepo) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if plan.Status == domain.PlanActive && r.activeLocked(plan.RunnerID) != nil {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	plan.ID = newID(plan.ID)
	r.s.plans[plan.ID] = *plan
	return plan.ID, nil
}

func (r planRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &plan, nil
}

func (r planRepo) GetActiveByRunner(ctx context.Context, runnerID primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if p := r.activeLocked(runnerID); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r planRepo) activeLocked(runnerID primitive.ObjectID) *domain.TrainingPlan {
	for _, p := range r.s.plans {
		if p.RunnerID == runnerID && p.Status == domain.PlanActive {
			plan := p
			return &plan
		}
	}
	return nil
}

func (r planRepo) GetLatestByRace(ctx context.Context, runnerID, raceID primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *domain.TrainingPlan
	for _, p := range r.s.plans {
		if p.RunnerID != runnerID || p.RaceID != raceID || p.Status == domain.PlanDraft {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			plan := p
			latest = &plan
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r planRepo) ListByRunner(ctx context.Context, runnerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	plans := []domain.TrainingPlan{}
	for _, p := range r.s.plans {
		if p.RunnerID == runnerID {
			plans = append(plans, p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

func (r planRepo) Transition(ctx context.Context, id primitive.ObjectID, expectedVersion int64, status domain.PlanStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	if plan.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	if status == domain.PlanActive {
		if other := r.activeLocked(plan.RunnerID); other != nil && other.ID != id {
			return repository.ErrDuplicate
		}
	}
	plan.Status = status
	switch status {
	case domain.PlanCompleted:
		plan.CompletedAt = &at
	case domain.PlanArchived:
		plan.ArchivedAt = &at
	}
	if status != domain.PlanActive {
		plan.Recalc = plan.Recalc.Withdraw()
	}
	plan.Version++
	plan.UpdatedAt = at
	r.s.plans[id] = plan
	return nil
}

func (r planRepo) UpdateRecalcState(ctx context.Context, id primitive.ObjectID, expectedVersion int64, state domain.RecalcState, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	if plan.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	plan.Recalc = state
	plan.Version++
	plan.UpdatedAt = at
	r.s.plans[id] = plan
	return nil
}

func (r planRepo) ListActiveEndingBefore(ctx context.Context, day time.Time) ([]domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	plans := []domain.TrainingPlan{}
	for _, p := range r.s.plans {
		if p.Status == domain.PlanActive && p.EndDate.Before(day) {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (r planRepo) ListDispatched(ctx context.Context) ([]domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	plans := []domain.TrainingPlan{}
	for _, p := range r.s.plans {
		if p.Recalc.LastJobRef != nil {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

// --- sessions ---

type sessionRepo struct{ s *Store }

func (r sessionRepo) CreateMany(ctx context.Context, sessions []domain.TrainingSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range sessions {
		sessions[i].ID = newID(sessions[i].ID)
		r.s.sessions[sessions[i].ID] = sessions[i]
	}
	return nil
}

func (r sessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r sessionRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.TrainingSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sessions := []domain.TrainingSession{}
	for _, s := range r.s.sessions {
		if s.PlanID == planID {
			sessions = append(sessions, s)
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func (r sessionRepo) RecentReported(ctx context.Context, planID primitive.ObjectID, day time.Time, limit int) ([]domain.TrainingSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sessions := []domain.TrainingSession{}
	for _, s := range r.s.sessions {
		if s.PlanID == planID && s.Reported() && !s.ScheduledDate.After(day) {
			sessions = append(sessions, s)
		}
	}
	sortSessions(sessions)
	// newest first
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r sessionRepo) RecordOutcome(ctx context.Context, session *domain.TrainingSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.sessions[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.CompletedAt = session.CompletedAt
	stored.Skipped = session.Skipped
	stored.SkipReason = session.SkipReason
	stored.Actual = session.Actual
	stored.UpdatedAt = session.UpdatedAt
	r.s.sessions[session.ID] = stored
	return nil
}

func (r sessionRepo) UpdateTargets(ctx context.Context, id primitive.ObjectID, targets domain.SessionTargets, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.WorkoutType = targets.WorkoutType
	stored.Title = targets.Title
	stored.Description = targets.Description
	stored.TargetDistanceKm = targets.TargetDistanceKm
	stored.TargetDurationMin = targets.TargetDurationMin
	stored.TargetIntensity = targets.TargetIntensity
	stored.WasModified = true
	stored.UpdatedAt = at
	r.s.sessions[id] = stored
	return nil
}

func sortSessions(sessions []domain.TrainingSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ScheduledDate.Equal(sessions[j].ScheduledDate) {
			return sessions[i].ScheduledDate.Before(sessions[j].ScheduledDate)
		}
		return sessions[i].ID.Hex() < sessions[j].ID.Hex()
	})
}

// --- adaptation history ---

type historyRepo struct{ s *Store }

func (r historyRepo) Create(ctx context.Context, entry *domain.PlanAdaptationHistory) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.history {
		if h.JobToken == entry.JobToken {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	entry.ID = newID(entry.ID)
	stored := *entry
	stored.Changes = append([]domain.SessionChange(nil), entry.Changes...)
	r.s.history[entry.ID] = stored
	return entry.ID, nil
}

func (r historyRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanAdaptationHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	h, ok := r.s.history[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &h, nil
}

func (r historyRepo) GetByJobToken(ctx context.Context, token string) (*domain.PlanAdaptationHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, h := range r.s.history {
		if h.JobToken == token {
			entry := h
			return &entry, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r historyRepo) ListByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanAdaptationHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entries := []domain.PlanAdaptationHistory{}
	for _, h := range r.s.history {
		if h.PlanID == planID {
			entries = append(entries, h)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RecordedAt.After(entries[j].RecordedAt) })
	return entries, nil
}

func (r historyRepo) MarkViewed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.history[id]
	if !ok {
		return repository.ErrNotFound
	}
	if h.ViewedAt == nil {
		h.ViewedAt = &at
		r.s.history[id] = h
	}
	return nil
}
