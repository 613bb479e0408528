// internal/domain/training_plan.go
package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus is the lifecycle state of a training plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanArchived  PlanStatus = "archived"
)

// PlanEvent triggers a lifecycle transition.
type PlanEvent string

const (
	PlanActivate PlanEvent = "activate"
	PlanComplete PlanEvent = "complete"
	PlanArchive  PlanEvent = "archive"
)

// Key: current status -> event -> new status.
var planTransitions = map[PlanStatus]map[PlanEvent]PlanStatus{
	PlanDraft: {
		PlanActivate: PlanActive,
		PlanArchive:  PlanArchived,
	},
	PlanActive: {
		PlanComplete: PlanCompleted,
		PlanArchive:  PlanArchived,
	},
	PlanCompleted: {
		PlanArchive: PlanArchived,
	},
	PlanArchived: {},
}

var ErrInvalidPlanTransition = errors.New("invalid plan transition")

// NextPlanStatus returns the status reached by applying event to current.
func NextPlanStatus(current PlanStatus, event PlanEvent) (PlanStatus, error) {
	events, ok := planTransitions[current]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidPlanTransition, current)
	}
	next, ok := events[event]
	if !ok {
		return "", fmt.Errorf("%w: %q + %q", ErrInvalidPlanTransition, current, event)
	}
	return next, nil
}

// WeeklyStructure describes how sessions are laid out across a week.
type WeeklyStructure struct {
	DaysPerWeek int          `bson:"daysPerWeek" json:"daysPerWeek"`
	LongRunDay  time.Weekday `bson:"longRunDay" json:"longRunDay"`
}

// PeriodReduction softens intensity on days around a predicted period start.
type PeriodReduction struct {
	DaysBefore int `bson:"daysBefore" json:"daysBefore"`
	DaysAfter  int `bson:"daysAfter" json:"daysAfter"`
}

// TrainingPlan is owned by one runner and one race. At most one plan per
// runner is active. Version is bumped on every conditional write.
type TrainingPlan struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunnerID        primitive.ObjectID `bson:"runnerId" json:"runnerId"`
	RaceID          primitive.ObjectID `bson:"raceId" json:"raceId"`
	Name            string             `bson:"name" json:"name"`
	Status          PlanStatus         `bson:"status" json:"status"`
	StartDate       time.Time          `bson:"startDate" json:"startDate"`
	EndDate         time.Time          `bson:"endDate" json:"endDate"`
	WeeklyStructure WeeklyStructure    `bson:"weeklyStructure" json:"weeklyStructure"`
	PeriodReduction PeriodReduction    `bson:"periodReduction" json:"periodReduction"`
	Recalc          RecalcState        `bson:"recalc" json:"recalc"`
	Version         int64              `bson:"version" json:"version"`
	CompletedAt     *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ArchivedAt      *time.Time         `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the plan is the runner's current plan.
func (p *TrainingPlan) IsActive() bool {
	return p != nil && p.Status == PlanActive
}
