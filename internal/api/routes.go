package api

import (
	"net/http"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Lifecycle service.PlanLifecycleService
	Reads     service.PlanReadService
	Outcomes  service.SessionOutcomeService
	Recalc    service.RecalculationService
	History   service.AdaptationHistoryService
	Runners   service.RunnerService
	Calendar  service.CalendarService
}

func SetupRoutes(router *gin.Engine, log *logger.Logger, clk clock.Clock, serviceName, jwtSecret string, svc Services) {
	planHandler := NewPlanHandler(log, svc.Lifecycle, svc.Reads, svc.Calendar)
	sessionHandler := NewSessionHandler(log, svc.Outcomes)
	recalcHandler := NewRecalculationHandler(log, svc.Recalc, svc.History)
	runnerHandler := NewRunnerHandler(log, svc.Runners)

	router.Use(otelgin.Middleware(serviceName))
	router.Use(RequestLogger(log, clk))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret, clk))
	{
		// --- Runner profile and races ---
		protected.GET("/runner/profile", runnerHandler.GetProfile)
		protected.PUT("/runner/cycle", runnerHandler.UpdateCycle)
		protected.POST("/races", runnerHandler.RegisterRace)
		protected.POST("/races/:raceId/result", runnerHandler.RecordRaceResult)
		protected.GET("/races/:raceId/plan", planHandler.GetPlanByRace)

		// --- Plans ---
		plans := protected.Group("/plans")
		{
			plans.POST("", planHandler.CreatePlan)
			plans.GET("", planHandler.ListPlans)
			plans.GET("/active", planHandler.GetActivePlan)
			plans.GET("/:planId/sessions", planHandler.GetPlanSessions)
			plans.POST("/:planId/archive", planHandler.ArchivePlan)
			plans.POST("/:planId/complete", planHandler.CompletePlan)
			plans.POST("/:planId/calendar", planHandler.ExportCalendar)

			// --- Recalculation ---
			plans.GET("/:planId/recalculation", recalcHandler.GetStatus)
			plans.POST("/:planId/recalculation/confirm", recalcHandler.Confirm)
			plans.POST("/:planId/recalculation/decline", recalcHandler.Decline)
			plans.POST("/:planId/summary/viewed", recalcHandler.MarkSummaryViewed)
			plans.GET("/:planId/history", recalcHandler.ListHistory)
		}

		// --- Sessions ---
		protected.POST("/sessions/:sessionId/complete", sessionHandler.CompleteSession)
		protected.POST("/sessions/:sessionId/skip", sessionHandler.SkipSession)

		protected.POST("/history/:historyId/viewed", recalcHandler.MarkHistoryViewed)
	}
}
