package api

import (
	"net/http"

	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type RecalculationHandler struct {
	log     *logger.Logger
	recalc  service.RecalculationService
	history service.AdaptationHistoryService
}

func NewRecalculationHandler(log *logger.Logger, recalc service.RecalculationService, history service.AdaptationHistoryService) *RecalculationHandler {
	return &RecalculationHandler{
		log:     log.With("component", "RecalculationHandler"),
		recalc:  recalc,
		history: history,
	}
}

// GetStatus godoc
// @Summary Poll the recalculation status of a plan
// @Description Reports unknown instead of failing when the job store does not answer in time.
// @Tags Recalculation
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} service.RecalculationStatus
// @Router /plans/{planId}/recalculation [get]
func (h *RecalculationHandler) GetStatus(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	status, err := h.recalc.PollStatus(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve recalculation status.")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Confirm godoc
// @Summary Confirm a pending recalculation
// @Tags Recalculation
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 202 {object} service.RecalculationStatus
// @Failure 409 {object} gin.H "Nothing pending or a job is already in flight"
// @Router /plans/{planId}/recalculation/confirm [post]
func (h *RecalculationHandler) Confirm(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	status, err := h.recalc.Confirm(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to start recalculation.")
		return
	}
	c.JSON(http.StatusAccepted, status)
}

// Decline godoc
// @Summary Decline a pending recalculation
// @Tags Recalculation
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} service.RecalculationStatus
// @Router /plans/{planId}/recalculation/decline [post]
func (h *RecalculationHandler) Decline(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	status, err := h.recalc.Decline(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to decline recalculation.")
		return
	}
	c.JSON(http.StatusOK, status)
}

// MarkSummaryViewed godoc
// @Summary Mark the latest adaptation summary as seen
// @Tags Recalculation
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 204
// @Router /plans/{planId}/summary/viewed [post]
func (h *RecalculationHandler) MarkSummaryViewed(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	if _, err := h.history.MarkSummaryViewed(c.Request.Context(), runnerID, planID); err != nil {
		abortWithServiceError(c, h.log, err, "Failed to update summary.")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListHistory godoc
// @Summary List a plan's adaptation history
// @Tags Recalculation
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {array} HistoryResponse
// @Router /plans/{planId}/history [get]
func (h *RecalculationHandler) ListHistory(c *gin.Context) {
	runnerID, planID, ok := runnerAndParam(c, "planId")
	if !ok {
		return
	}
	entries, err := h.history.ListHistory(c.Request.Context(), runnerID, planID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve history.")
		return
	}
	resp := make([]HistoryResponse, len(entries))
	for i := range entries {
		resp[i] = MapHistoryToResponse(&entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

// MarkHistoryViewed godoc
// @Summary Mark one history entry as seen
// @Tags Recalculation
// @Produce json
// @Security BearerAuth
// @Param historyId path string true "History entry ID"
// @Success 200 {object} HistoryResponse
// @Router /history/{historyId}/viewed [post]
func (h *RecalculationHandler) MarkHistoryViewed(c *gin.Context) {
	runnerID, historyID, ok := runnerAndParam(c, "historyId")
	if !ok {
		return
	}
	entry, err := h.history.MarkHistoryEntryViewed(c.Request.Context(), runnerID, historyID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to update history entry.")
		return
	}
	c.JSON(http.StatusOK, MapHistoryToResponse(entry))
}
