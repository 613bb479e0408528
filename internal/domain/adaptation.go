package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdaptationStatus string

const (
	AdaptationSucceeded AdaptationStatus = "succeeded"
	AdaptationFailed    AdaptationStatus = "failed"
)

// SessionChange is one before/after pair written by an adaptation pass.
type SessionChange struct {
	SessionID primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	Field     string             `bson:"field" json:"field"`
	Before    string             `bson:"before" json:"before"`
	After     string             `bson:"after" json:"after"`
}

// PlanAdaptationHistory is an append-only record of one finished adaptation
// pass. JobToken is unique across the collection.
type PlanAdaptationHistory struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID          primitive.ObjectID `bson:"planId" json:"planId"`
	RunnerID        primitive.ObjectID `bson:"runnerId" json:"runnerId"`
	JobToken        string             `bson:"jobToken" json:"jobToken"`
	TriggerReason   string             `bson:"triggerReason" json:"triggerReason"`
	Status          AdaptationStatus   `bson:"status" json:"status"`
	SessionsTouched int                `bson:"sessionsTouched" json:"sessionsTouched"`
	Changes         []SessionChange    `bson:"changes" json:"changes"`
	Summary         string             `bson:"summary,omitempty" json:"summary,omitempty"`
	FailureReason   string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	RecordedAt      time.Time          `bson:"recordedAt" json:"recordedAt"`
	ViewedAt        *time.Time         `bson:"viewedAt,omitempty" json:"viewedAt,omitempty"`
}

// CountTouchedSessions returns the number of distinct sessions in changes.
func CountTouchedSessions(changes []SessionChange) int {
	seen := make(map[primitive.ObjectID]struct{}, len(changes))
	for _, c := range changes {
		seen[c.SessionID] = struct{}{}
	}
	return len(seen)
}
