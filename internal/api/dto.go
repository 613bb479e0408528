package api

import (
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/planning"
	"alcyxob/stride-planner/internal/service"
)

// --- Response DTOs ---

type PlanResponse struct {
	ID              string                 `json:"id"`
	RaceID          string                 `json:"raceId"`
	Name            string                 `json:"name"`
	Status          domain.PlanStatus      `json:"status"`
	StartDate       time.Time              `json:"startDate"`
	EndDate         time.Time              `json:"endDate"`
	WeeklyStructure domain.WeeklyStructure `json:"weeklyStructure"`
	PeriodReduction domain.PeriodReduction `json:"periodReduction"`
	CreatedAt       time.Time              `json:"createdAt"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
	ArchivedAt      *time.Time             `json:"archivedAt,omitempty"`
}

func MapPlanToResponse(p *domain.TrainingPlan) PlanResponse {
	if p == nil {
		return PlanResponse{}
	}
	return PlanResponse{
		ID:              p.ID.Hex(),
		RaceID:          p.RaceID.Hex(),
		Name:            p.Name,
		Status:          p.Status,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		WeeklyStructure: p.WeeklyStructure,
		PeriodReduction: p.PeriodReduction,
		CreatedAt:       p.CreatedAt,
		CompletedAt:     p.CompletedAt,
		ArchivedAt:      p.ArchivedAt,
	}
}

func MapPlansToResponse(plans []domain.TrainingPlan) []PlanResponse {
	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = MapPlanToResponse(&plans[i])
	}
	return out
}

type SessionResponse struct {
	ID                string               `json:"id"`
	PlanID            string               `json:"planId"`
	ScheduledDate     time.Time            `json:"scheduledDate"`
	WorkoutType       domain.WorkoutType   `json:"workoutType"`
	Title             string               `json:"title"`
	Description       string               `json:"description,omitempty"`
	TargetDistanceKm  float64              `json:"targetDistanceKm"`
	TargetDurationMin float64              `json:"targetDurationMin"`
	TargetIntensity   int                  `json:"targetIntensity"`
	CompletedAt       *time.Time           `json:"completedAt,omitempty"`
	Skipped           bool                 `json:"skipped"`
	SkipReason        string               `json:"skipReason,omitempty"`
	Actual            domain.ActualOutcome `json:"actual"`
	WasModified       bool                 `json:"wasModified"`
	// Calendar fields, set on plan session listings only
	Stage             domain.Stage         `json:"stage,omitempty"`
	Phase             domain.CyclePhase    `json:"phase,omitempty"`
	DayInCycle        int                  `json:"dayInCycle,omitempty"`
	MenstruationDay   int                  `json:"menstruationDay,omitempty"`
	PhaseFrozen       bool                 `json:"phaseFrozen,omitempty"`
	InReductionWindow bool                 `json:"inReductionWindow,omitempty"`
	RecentlyUpdated   bool                 `json:"recentlyUpdated,omitempty"`
}

func MapSessionToResponse(s *domain.TrainingSession) SessionResponse {
	if s == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		ID:                s.ID.Hex(),
		PlanID:            s.PlanID.Hex(),
		ScheduledDate:     s.ScheduledDate,
		WorkoutType:       s.WorkoutType,
		Title:             s.Title,
		Description:       s.Description,
		TargetDistanceKm:  s.TargetDistanceKm,
		TargetDurationMin: s.TargetDurationMin,
		TargetIntensity:   s.TargetIntensity,
		CompletedAt:       s.CompletedAt,
		Skipped:           s.Skipped,
		SkipReason:        s.SkipReason,
		Actual:            s.Actual,
		WasModified:       s.WasModified,
	}
}

func MapSessionViewsToResponse(views []service.SessionView) []SessionResponse {
	out := make([]SessionResponse, len(views))
	for i := range views {
		v := &views[i]
		r := MapSessionToResponse(&v.Session)
		r.Stage = v.Stage
		r.Phase = v.Phase
		r.DayInCycle = v.DayInCycle
		r.MenstruationDay = v.MenstruationDay
		r.PhaseFrozen = v.PhaseFrozen
		r.InReductionWindow = v.InReductionWindow
		r.RecentlyUpdated = v.RecentlyUpdated
		out[i] = r
	}
	return out
}

type RaceResultResponse struct {
	FinishTimeSec int64     `json:"finishTimeSec"`
	Notes         string    `json:"notes,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
}

type RaceResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Date        time.Time           `json:"date"`
	DistanceKm  float64             `json:"distanceKm"`
	GoalTimeSec *int64              `json:"goalTimeSec,omitempty"`
	Result      *RaceResultResponse `json:"result,omitempty"`
}

func MapRaceToResponse(r *domain.Race) *RaceResponse {
	if r == nil {
		return nil
	}
	resp := &RaceResponse{
		ID:         r.ID.Hex(),
		Name:       r.Name,
		Date:       r.Date,
		DistanceKm: r.DistanceKm,
	}
	if r.GoalTime != nil {
		sec := int64(r.GoalTime.Seconds())
		resp.GoalTimeSec = &sec
	}
	if r.Result != nil {
		resp.Result = &RaceResultResponse{
			FinishTimeSec: int64(r.Result.FinishTime.Seconds()),
			Notes:         r.Result.Notes,
			RecordedAt:    r.Result.RecordedAt,
		}
	}
	return resp
}

type PhaseResponse struct {
	Known           bool              `json:"known"`
	Phase           domain.CyclePhase `json:"phase"`
	DayInCycle      int               `json:"dayInCycle,omitempty"`
	MenstruationDay int               `json:"menstruationDay,omitempty"`
}

func mapPhase(p planning.CyclePhaseResult) PhaseResponse {
	return PhaseResponse{Known: p.Known, Phase: p.Phase, DayInCycle: p.DayInCycle, MenstruationDay: p.MenstruationDay}
}

type PlanSummaryResponse struct {
	Plan           PlanResponse                `json:"plan"`
	Race           *RaceResponse               `json:"race,omitempty"`
	Stage          domain.Stage                `json:"stage,omitempty"`
	Progress       float64                     `json:"progress"`
	TodayPhase     PhaseResponse               `json:"todayPhase"`
	Recalculation  service.RecalculationStatus `json:"recalculation"`
	LatestSummary  string                      `json:"latestSummary,omitempty"`
	SummaryUnseen  bool                        `json:"summaryUnseen"`
	SessionCount   int                         `json:"sessionCount"`
	CompletedCount int                         `json:"completedCount"`
	SkippedCount   int                         `json:"skippedCount"`
	NextSession    *SessionResponse            `json:"nextSession,omitempty"`
}

func MapSummaryToResponse(s *service.PlanSummary) PlanSummaryResponse {
	resp := PlanSummaryResponse{
		Plan:           MapPlanToResponse(s.Plan),
		Race:           MapRaceToResponse(s.Race),
		Stage:          s.Stage,
		Progress:       s.Progress,
		TodayPhase:     mapPhase(s.TodayPhase),
		Recalculation:  s.Recalculation,
		LatestSummary:  s.LatestSummary,
		SummaryUnseen:  s.SummaryUnseen,
		SessionCount:   s.SessionCount,
		CompletedCount: s.CompletedCount,
		SkippedCount:   s.SkippedCount,
	}
	if s.NextSession != nil {
		next := MapSessionToResponse(s.NextSession)
		resp.NextSession = &next
	}
	return resp
}

type RunnerResponse struct {
	ID          string                 `json:"id"`
	CycleAnchor *time.Time             `json:"cycleAnchor,omitempty"`
	CycleLength *int                   `json:"cycleLength,omitempty"`
	Regularity  domain.CycleRegularity `json:"regularity,omitempty"`
	CycleAware  bool                   `json:"cycleAware"`
}

func MapRunnerToResponse(r *domain.Runner) RunnerResponse {
	return RunnerResponse{
		ID:          r.ID.Hex(),
		CycleAnchor: r.CycleAnchor,
		CycleLength: r.CycleLength,
		Regularity:  r.Regularity,
		CycleAware:  r.CycleAware(),
	}
}

type SessionChangeResponse struct {
	SessionID string `json:"sessionId"`
	Field     string `json:"field"`
	Before    string `json:"before"`
	After     string `json:"after"`
}

type HistoryResponse struct {
	ID              string                  `json:"id"`
	PlanID          string                  `json:"planId"`
	TriggerReason   string                  `json:"triggerReason"`
	Status          domain.AdaptationStatus `json:"status"`
	SessionsTouched int                     `json:"sessionsTouched"`
	Changes         []SessionChangeResponse `json:"changes"`
	Summary         string                  `json:"summary,omitempty"`
	FailureReason   string                  `json:"failureReason,omitempty"`
	RecordedAt      time.Time               `json:"recordedAt"`
	ViewedAt        *time.Time              `json:"viewedAt,omitempty"`
}

func MapHistoryToResponse(h *domain.PlanAdaptationHistory) HistoryResponse {
	changes := make([]SessionChangeResponse, len(h.Changes))
	for i, c := range h.Changes {
		changes[i] = SessionChangeResponse{SessionID: c.SessionID.Hex(), Field: c.Field, Before: c.Before, After: c.After}
	}
	return HistoryResponse{
		ID:              h.ID.Hex(),
		PlanID:          h.PlanID.Hex(),
		TriggerReason:   h.TriggerReason,
		Status:          h.Status,
		SessionsTouched: h.SessionsTouched,
		Changes:         changes,
		Summary:         h.Summary,
		FailureReason:   h.FailureReason,
		RecordedAt:      h.RecordedAt,
		ViewedAt:        h.ViewedAt,
	}
}

type OutcomeResponse struct {
	Session       SessionResponse              `json:"session"`
	Evaluation    service.Evaluation           `json:"evaluation"`
	Recalculation *service.RecalculationStatus `json:"recalculation,omitempty"`
}

func MapOutcomeToResponse(r *service.OutcomeResult) OutcomeResponse {
	return OutcomeResponse{
		Session:       MapSessionToResponse(r.Session),
		Evaluation:    r.Evaluation,
		Recalculation: r.Recalculation,
	}
}
