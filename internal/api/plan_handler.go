package api

import (
	"net/http"
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanHandler struct {
	log       *logger.Logger
	lifecycle service.PlanLifecycleService
	reads     service.PlanReadService
	calendar  service.CalendarService
}

func NewPlanHandler(log *logger.Logger, lifecycle service.PlanLifecycleService, reads service.PlanReadService, calendar service.CalendarService) *PlanHandler {
	return &PlanHandler{
		log:       log.With("component", "PlanHandler"),
		lifecycle: lifecycle,
		reads:     reads,
		calendar:  calendar,
	}
}

// --- DTOs for Plan Management ---

type CreatePlanRequest struct {
	RaceID          string                  `json:"raceId" binding:"required"`
	Name            string                  `json:"name"`
	StartDate       *time.Time              `json:"startDate"`
	WeeklyStructure *domain.WeeklyStructure `json:"weeklyStructure"`
	PeriodReduction *domain.PeriodReduction `json:"periodReduction"`
}

type CreatePlanResponse struct {
	Plan     PlanResponse      `json:"plan"`
	Race     *RaceResponse     `json:"race"`
	Sessions []SessionResponse `json:"sessions"`
}

// CreatePlan godoc
// @Summary Create a training plan for a race
// @Description Builds a plan from today (or startDate) to the race and activates it. A runner has at most one active plan.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreatePlanRequest true "Plan options"
// @Success 201 {object} CreatePlanResponse
// @Failure 400 {object} gin.H "Invalid input or race too soon"
// @Failure 409 {object} gin.H "An active plan already exists"
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	raceID, err := primitive.ObjectIDFromHex(req.RaceID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid raceId format.")
		return
	}

	agg, err := h.lifecycle.CreatePlan(c.Request.Context(), runnerID, raceID, service.PlanOptions{
		Name:            req.Name,
		StartDate:       req.StartDate,
		WeeklyStructure: req.WeeklyStructure,
		PeriodReduction: req.PeriodReduction,
	})
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to create plan.")
		return
	}

	sessions := make([]SessionResponse, len(agg.Sessions))
	for i := range agg.Sessions {
		sessions[i] = MapSessionToResponse(&agg.Sessions[i])
	}
	c.JSON(http.StatusCreated, CreatePlanResponse{
		Plan:     MapPlanToResponse(agg.Plan),
		Race:     MapRaceToResponse(agg.Race),
		Sessions: sessions,
	})
}

// ListPlans godoc
// @Summary List the runner's plans
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PlanResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	plans, err := h.reads.ListPlans(c.Request.Context(), runnerID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve plans.")
		return
	}
	c.JSON(http.StatusOK, MapPlansToResponse(plans))
}

// GetActivePlan godoc
// @Summary Get the active plan with stage, phase and recalculation status
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PlanSummaryResponse
// @Failure 404 {object} gin.H "No active plan"
// @Router /plans/active [get]
func (h *PlanHandler) GetActivePlan(c *gin.Context) {
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	sum, err := h.reads.ActivePlan(c.Request.Context(), runnerID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve active plan.")
		return
	}
	c.JSON(http.StatusOK, MapSummaryToResponse(sum))
}

// GetPlanByRace godoc
// @Summary Get the plan built for a race
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param raceId path string true "Race ID"
// @Success 200 {object} PlanSummaryResponse
// @Failure 404 {object} gin.H "No plan for this race"
// @Router /races/{raceId}/plan [get]
func (h *PlanHandler) GetPlanByRace(c *gin.Context) {
	runnerID, raceID, ok := runnerAndParam(c, "raceId")
	if !ok {
		return
	}
	sum, err := h.reads.PlanByRace(c.Request.Context(), runnerID, raceID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve plan.")
		return
	}
	c.JSON(http.StatusOK, MapSummaryToResponse(sum))
}

// GetPlanSessions godoc
// @Summary List a plan's sessions with their calendar fields
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {array} SessionResponse
// @Router /plans/{planId}/sessions [get]
func (h *PlanHandler) GetPlanSessions(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	views, err := h.reads.Sessions(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve sessions.")
		return
	}
	c.JSON(http.StatusOK, MapSessionViewsToResponse(views))
}

// ArchivePlan godoc
// @Summary Archive a plan
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} PlanResponse
// @Failure 409 {object} gin.H "Plan is already archived"
// @Router /plans/{planId}/archive [post]
func (h *PlanHandler) ArchivePlan(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	plan, err := h.lifecycle.ArchivePlan(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to archive plan.")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// CompletePlan godoc
// @Summary Mark an active plan completed
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} PlanResponse
// @Router /plans/{planId}/complete [post]
func (h *PlanHandler) CompletePlan(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	plan, err := h.lifecycle.CompletePlan(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to complete plan.")
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// ExportCalendar godoc
// @Summary Export the plan as an iCalendar file
// @Description Uploads the calendar and returns a short-lived download URL.
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} service.CalendarExport
// @Router /plans/{planId}/calendar [post]
func (h *PlanHandler) ExportCalendar(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	export, err := h.calendar.ExportPlan(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to export calendar.")
		return
	}
	c.JSON(http.StatusOK, export)
}
