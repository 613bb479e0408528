package repository

import (
	"alcyxob/stride-planner/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound        = RepositoryError("not found")
	ErrUpdateFailed    = RepositoryError("update failed")
	ErrDuplicate       = RepositoryError("duplicate key")
	ErrVersionConflict = RepositoryError("version conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Implementations never read the wall clock: every timestamp they persist is
// supplied by the caller, which owns the injected clock.

// RunnerRepository stores the planning-relevant slice of a runner profile.
type RunnerRepository interface {
	Create(ctx context.Context, runner *domain.Runner) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Runner, error)
	UpdateCycleProfile(ctx context.Context, id primitive.ObjectID, anchor *time.Time, length *int, regularity domain.CycleRegularity, at time.Time) error
}

// RaceRepository stores goal events.
type RaceRepository interface {
	Create(ctx context.Context, race *domain.Race) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Race, error)
	SetResult(ctx context.Context, id primitive.ObjectID, result domain.RaceResult, at time.Time) error
}

// TrainingPlanRepository stores plans. Status and recalculation writes are
// conditional on the plan's Version and bump it by one; a stale version
// yields ErrVersionConflict.
type TrainingPlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetActiveByRunner(ctx context.Context, runnerID primitive.ObjectID) (*domain.TrainingPlan, error)
	GetLatestByRace(ctx context.Context, runnerID, raceID primitive.ObjectID) (*domain.TrainingPlan, error)
	ListByRunner(ctx context.Context, runnerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	// Transition moves the plan to status. Activating while the runner
	// already has an active plan yields ErrDuplicate. Any other status also
	// withdraws a pending recalculation proposal in the same write.
	Transition(ctx context.Context, id primitive.ObjectID, expectedVersion int64, status domain.PlanStatus, at time.Time) error
	UpdateRecalcState(ctx context.Context, id primitive.ObjectID, expectedVersion int64, state domain.RecalcState, at time.Time) error
	ListActiveEndingBefore(ctx context.Context, day time.Time) ([]domain.TrainingPlan, error)
	ListDispatched(ctx context.Context) ([]domain.TrainingPlan, error)
}

// TrainingSessionRepository stores sessions. Rows are updated in place.
type TrainingSessionRepository interface {
	CreateMany(ctx context.Context, sessions []domain.TrainingSession) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.TrainingSession, error)
	// RecentReported returns up to limit completed or skipped sessions of the
	// plan scheduled on or before day, newest first.
	RecentReported(ctx context.Context, planID primitive.ObjectID, day time.Time, limit int) ([]domain.TrainingSession, error)
	RecordOutcome(ctx context.Context, session *domain.TrainingSession) error
	// UpdateTargets rewrites targets and sets WasModified.
	UpdateTargets(ctx context.Context, id primitive.ObjectID, targets domain.SessionTargets, at time.Time) error
}

// AdaptationHistoryRepository is append-only apart from the viewed marker.
// JobToken is unique; inserting a second entry for a token yields ErrDuplicate.
type AdaptationHistoryRepository interface {
	Create(ctx context.Context, entry *domain.PlanAdaptationHistory) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanAdaptationHistory, error)
	GetByJobToken(ctx context.Context, token string) (*domain.PlanAdaptationHistory, error)
	ListByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanAdaptationHistory, error)
	MarkViewed(ctx context.Context, id primitive.ObjectID, at time.Time) error
}
