package domain

// CyclePhase is the predicted phase of the runner's cycle on a given day.
type CyclePhase string

const (
	PhaseUnknown    CyclePhase = "unknown"
	PhaseMenstrual  CyclePhase = "menstrual"
	PhaseFollicular CyclePhase = "follicular"
	PhaseOvulatory  CyclePhase = "ovulatory"
	PhaseLuteal     CyclePhase = "luteal"
)

// Stage is the periodization block a date falls into.
type Stage string

const (
	StageNone  Stage = ""
	StageBase  Stage = "base"
	StageBuild Stage = "build"
	StagePeak  Stage = "peak"
	StageTaper Stage = "taper"
)

// CycleSnapshot is the phase a session was generated under. It is written
// once and never recomputed.
type CycleSnapshot struct {
	Phase           CyclePhase `bson:"phase" json:"phase"`
	DayInCycle      int        `bson:"dayInCycle" json:"dayInCycle"`
	MenstruationDay int        `bson:"menstruationDay,omitempty" json:"menstruationDay,omitempty"`
	CycleLength     int        `bson:"cycleLength" json:"cycleLength"`
}
