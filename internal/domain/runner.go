package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleRegularity is how the runner describes their cycle.
type CycleRegularity string

const (
	RegularityRegular          CycleRegularity = "regular"
	RegularityIrregular        CycleRegularity = "irregular"
	RegularityPreferNotToShare CycleRegularity = "prefer_not_to_share"
	RegularityDoNotTrack       CycleRegularity = "do_not_track"
)

// Valid reports whether r is one of the known classifiers.
func (r CycleRegularity) Valid() bool {
	switch r {
	case RegularityRegular, RegularityIrregular, RegularityPreferNotToShare, RegularityDoNotTrack:
		return true
	}
	return false
}

// Cycle length bounds accepted on profile updates.
const (
	MinCycleLength = 21
	MaxCycleLength = 45
)

// Runner is the athlete a plan is built for. Identity is issued elsewhere;
// this record only carries what planning needs.
type Runner struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	CycleAnchor *time.Time         `bson:"cycleAnchor,omitempty" json:"cycleAnchor,omitempty"` // last observed cycle start
	CycleLength *int               `bson:"cycleLength,omitempty" json:"cycleLength,omitempty"`
	Regularity  CycleRegularity    `bson:"regularity,omitempty" json:"regularity,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CycleAware is false when any input the phase calculator needs is missing
// or the runner opted out of tracking.
func (r *Runner) CycleAware() bool {
	if r == nil || r.Regularity == RegularityDoNotTrack {
		return false
	}
	return r.CycleAnchor != nil && r.CycleLength != nil
}
