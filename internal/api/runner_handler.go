package api

import (
	"net/http"
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
)

type RunnerHandler struct {
	log     *logger.Logger
	runners service.RunnerService
}

func NewRunnerHandler(log *logger.Logger, runners service.RunnerService) *RunnerHandler {
	return &RunnerHandler{log: log.With("component", "RunnerHandler"), runners: runners}
}

type UpdateCycleRequest struct {
	CycleAnchor *time.Time             `json:"cycleAnchor"`
	CycleLength *int                   `json:"cycleLength"`
	Regularity  domain.CycleRegularity `json:"regularity"`
}

type RegisterRaceRequest struct {
	Name        string    `json:"name" binding:"required"`
	Date        time.Time `json:"date" binding:"required"`
	DistanceKm  float64   `json:"distanceKm" binding:"required,gt=0"`
	GoalTimeSec *int64    `json:"goalTimeSec" binding:"omitempty,gt=0"`
}

type RaceResultRequest struct {
	FinishTimeSec int64  `json:"finishTimeSec" binding:"required,gt=0"`
	Notes         string `json:"notes"`
}

// GetProfile godoc
// @Summary Get the runner's cycle profile
// @Tags Runner
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RunnerResponse
// @Failure 404 {object} gin.H "No profile yet"
// @Router /runner/profile [get]
func (h *RunnerHandler) GetProfile(c *gin.Context) {
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	runner, err := h.runners.GetRunner(c.Request.Context(), runnerID)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to retrieve profile.")
		return
	}
	c.JSON(http.StatusOK, MapRunnerToResponse(runner))
}

// UpdateCycle godoc
// @Summary Update the runner's cycle profile
// @Description Creates the profile on first use. do_not_track clears stored cycle data.
// @Tags Runner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body UpdateCycleRequest true "Cycle profile"
// @Success 200 {object} RunnerResponse
// @Failure 400 {object} gin.H "Invalid cycle profile"
// @Router /runner/cycle [put]
func (h *RunnerHandler) UpdateCycle(c *gin.Context) {
	var req UpdateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	runner, err := h.runners.UpdateCycleProfile(c.Request.Context(), runnerID, service.CycleProfile{
		Anchor:     req.CycleAnchor,
		Length:     req.CycleLength,
		Regularity: req.Regularity,
	})
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to update profile.")
		return
	}
	c.JSON(http.StatusOK, MapRunnerToResponse(runner))
}

// RegisterRace godoc
// @Summary Register a goal race
// @Tags Runner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param race body RegisterRaceRequest true "Race"
// @Success 201 {object} RaceResponse
// @Router /races [post]
func (h *RunnerHandler) RegisterRace(c *gin.Context) {
	var req RegisterRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	runnerID, err := getRunnerIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify runner from token.")
		return
	}
	in := service.RaceInput{Name: req.Name, Date: req.Date, DistanceKm: req.DistanceKm}
	if req.GoalTimeSec != nil {
		goal := time.Duration(*req.GoalTimeSec) * time.Second
		in.GoalTime = &goal
	}
	race, err := h.runners.RegisterRace(c.Request.Context(), runnerID, in)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to register race.")
		return
	}
	c.JSON(http.StatusCreated, MapRaceToResponse(race))
}

// RecordRaceResult godoc
// @Summary Record the finish time of a race
// @Tags Runner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param raceId path string true "Race ID"
// @Param result body RaceResultRequest true "Result"
// @Success 200 {object} RaceResponse
// @Failure 400 {object} gin.H "Race has not taken place yet"
// @Router /races/{raceId}/result [post]
func (h *RunnerHandler) RecordRaceResult(c *gin.Context) {
	runnerID, raceID, ok := runnerAndParam(c, "raceId")
	if !ok {
		return
	}
	var req RaceResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	race, err := h.runners.RecordRaceResult(c.Request.Context(), runnerID, raceID, time.Duration(req.FinishTimeSec)*time.Second, req.Notes)
	if err != nil {
		abortWithServiceError(c, h.log, err, "Failed to record result.")
		return
	}
	c.JSON(http.StatusOK, MapRaceToResponse(race))
}
