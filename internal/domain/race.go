package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Race is the goal event a plan is anchored to. Apart from Result it is
// immutable once a plan references it.
type Race struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunnerID   primitive.ObjectID `bson:"runnerId" json:"runnerId"`
	Name       string             `bson:"name" json:"name"`
	Date       time.Time          `bson:"date" json:"date"`
	DistanceKm float64            `bson:"distanceKm" json:"distanceKm"`
	GoalTime   *time.Duration     `bson:"goalTime,omitempty" json:"goalTime,omitempty"`
	Result     *RaceResult        `bson:"result,omitempty" json:"result,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RaceResult is recorded after the event.
type RaceResult struct {
	FinishTime time.Duration `bson:"finishTime" json:"finishTime"`
	Notes      string        `bson:"notes,omitempty" json:"notes,omitempty"`
	RecordedAt time.Time     `bson:"recordedAt" json:"recordedAt"`
}
