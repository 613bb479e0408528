package api

import (
	"net/http"
	"time"

	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	log      *logger.Logger
	outcomes service.SessionOutcomeService
}

func NewSessionHandler(log *logger.Logger, outcomes service.SessionOutcomeService) *SessionHandler {
	return &SessionHandler{log: log.With("component", "SessionHandler"), outcomes: outcomes}
}

type CompleteSessionRequest struct {
	DistanceKm  *float64   `json:"distanceKm" binding:"omitempty,gte=0"`
	DurationMin *float64   `json:"durationMin" binding:"omitempty,gte=0"`
	Effort      *int       `json:"effort" binding:"omitempty,min=1,max=10"`
	Notes       string     `json:"notes"`
	CompletedAt *time.Time `json:"completedAt"`
}

type SkipSessionRequest struct {
	Reason string `json:"reason"`
}

// CompleteSession godoc
// @Summary Report a completed session
// @Description Stores the outcome and evaluates it against recent sessions. A deviation may propose or dispatch a recalculation.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param outcome body CompleteSessionRequest true "Outcome"
// @Success 200 {object} OutcomeResponse
// @Failure 400 {object} gin.H "Invalid outcome"
// @Failure 404 {object} gin.H "Session not found or plan not active"
// @Router /sessions/{sessionId}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	runnerID, sessionID, ok := runnerAndParam(c, "sessionId")
	if !ok {
		return
	}
	var req CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	res, err := h.outcomes.RecordCompletion(c.Request.Context(), sessionID, runnerID, service.Outcome{
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
		Effort:      req.Effort,
		Notes:       req.Notes,
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to record session.")
		return
	}
	c.JSON(http.StatusOK, MapOutcomeToResponse(res))
}

// SkipSession godoc
// @Summary Report a skipped session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param skip body SkipSessionRequest false "Reason"
// @Success 200 {object} OutcomeResponse
// @Router /sessions/{sessionId}/skip [post]
func (h *SessionHandler) SkipSession(c *gin.Context) {
	runnerID, sessionID, ok := runnerAndParam(c, "sessionId")
	if !ok {
		return
	}
	var req SkipSessionRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	res, err := h.outcomes.RecordSkip(c.Request.Context(), sessionID, runnerID, req.Reason)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to record session.")
		return
	}
	c.JSON(http.StatusOK, MapOutcomeToResponse(res))
}
