// Package generator defines the plan-content contract and ships two
// implementations: Template, a deterministic built-in planner, and
// HTTPClient, which delegates to an external content service.
package generator

import (
	"context"
	"time"

	"alcyxob/stride-planner/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanWindow is the calendar frame a plan is generated for.
type PlanWindow struct {
	Start           time.Time              `json:"start"`
	End             time.Time              `json:"end"`
	WeeklyStructure domain.WeeklyStructure `json:"weeklyStructure"`
	PeriodReduction domain.PeriodReduction `json:"periodReduction"`
}

// SessionDraft is a generated session before it is persisted.
type SessionDraft struct {
	ScheduledDate     time.Time          `json:"scheduledDate"`
	WorkoutType       domain.WorkoutType `json:"workoutType"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	TargetDistanceKm  float64            `json:"targetDistanceKm"`
	TargetDurationMin float64            `json:"targetDurationMin"`
	TargetIntensity   int                `json:"targetIntensity"`
}

// Trigger tells the adapter why a pass was requested.
type Trigger struct {
	Reason string    `json:"reason"`
	Now    time.Time `json:"now"`
}

// SessionUpdate rewrites the targets of an existing session in place.
type SessionUpdate struct {
	SessionID primitive.ObjectID    `json:"sessionId"`
	Targets   domain.SessionTargets `json:"targets"`
}

// Adaptation is the outcome of one adaptation pass.
type Adaptation struct {
	Updates []SessionUpdate        `json:"updates"`
	Changes []domain.SessionChange `json:"changes"`
	Summary string                 `json:"summary"`
}

type SessionDrafter interface {
	GenerateSessions(ctx context.Context, runner *domain.Runner, race *domain.Race, window PlanWindow) ([]SessionDraft, error)
}

type Adapter interface {
	AdaptSessions(ctx context.Context, plan *domain.TrainingPlan, sessions []domain.TrainingSession, trigger Trigger) (*Adaptation, error)
}

type Generator interface {
	SessionDrafter
	Adapter
}
