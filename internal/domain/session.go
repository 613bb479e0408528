package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutType classifies a training session.
type WorkoutType string

const (
	WorkoutEasy     WorkoutType = "easy"
	WorkoutLong     WorkoutType = "long"
	WorkoutTempo    WorkoutType = "tempo"
	WorkoutInterval WorkoutType = "interval"
	WorkoutRecovery WorkoutType = "recovery"
	WorkoutRest     WorkoutType = "rest"
	WorkoutRace     WorkoutType = "race"
)

// ActualOutcome is what the runner reported for a session.
type ActualOutcome struct {
	DistanceKm  *float64 `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`
	DurationMin *float64 `bson:"durationMin,omitempty" json:"durationMin,omitempty"`
	Effort      *int     `bson:"effort,omitempty" json:"effort,omitempty"` // RPE 1-10
	Notes       string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// TrainingSession is one scheduled workout within a plan. Rows are updated
// in place by adaptation passes so their IDs stay stable.
type TrainingSession struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID            primitive.ObjectID `bson:"planId" json:"planId"`
	RunnerID          primitive.ObjectID `bson:"runnerId" json:"runnerId"` // denormalized for ownership checks
	ScheduledDate     time.Time          `bson:"scheduledDate" json:"scheduledDate"`
	WorkoutType       WorkoutType        `bson:"workoutType" json:"workoutType"`
	Title             string             `bson:"title" json:"title"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	TargetDistanceKm  float64            `bson:"targetDistanceKm" json:"targetDistanceKm"`
	TargetDurationMin float64            `bson:"targetDurationMin" json:"targetDurationMin"`
	TargetIntensity   int                `bson:"targetIntensity" json:"targetIntensity"` // RPE 1-10
	PhaseSnapshot     *CycleSnapshot     `bson:"phaseSnapshot,omitempty" json:"phaseSnapshot,omitempty"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Skipped           bool               `bson:"skipped" json:"skipped"`
	SkipReason        string             `bson:"skipReason,omitempty" json:"skipReason,omitempty"`
	Actual            ActualOutcome      `bson:"actual" json:"actual"`
	WasModified       bool               `bson:"wasModified" json:"wasModified"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Reported is true once the session was completed or skipped.
func (s *TrainingSession) Reported() bool {
	return s.CompletedAt != nil || s.Skipped
}

// SessionTargets is the subset of a session an adaptation pass may rewrite.
type SessionTargets struct {
	WorkoutType       WorkoutType `bson:"workoutType" json:"workoutType"`
	Title             string      `bson:"title" json:"title"`
	Description       string      `bson:"description,omitempty" json:"description,omitempty"`
	TargetDistanceKm  float64     `bson:"targetDistanceKm" json:"targetDistanceKm"`
	TargetDurationMin float64     `bson:"targetDurationMin" json:"targetDurationMin"`
	TargetIntensity   int         `bson:"targetIntensity" json:"targetIntensity"`
}

// Targets extracts the rewritable fields of s.
func (s *TrainingSession) Targets() SessionTargets {
	return SessionTargets{
		WorkoutType:       s.WorkoutType,
		Title:             s.Title,
		Description:       s.Description,
		TargetDistanceKm:  s.TargetDistanceKm,
		TargetDurationMin: s.TargetDurationMin,
		TargetIntensity:   s.TargetIntensity,
	}
}
