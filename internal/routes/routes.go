package routes

import (
	"github.com/gin-gonic/gin"

	"hospital-followup-server/internal/config"
	"hospital-followup-server/internal/handlers"
	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, stores store.Stores, wf handlers.WorkflowClient, cfg *config.Config) {
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn, nil)
	auth := middleware.NewAuthenticator(cfg, tokens, stores.Accounts)

	authHandler := handlers.NewAuthHandler(stores.Accounts, tokens, cfg)
	patientHandler := handlers.NewPatientHandler(stores.Patients, wf)
	statsHandler := handlers.NewStatsHandler(stores.Patients)
	reminderHandler := handlers.NewReminderHandler(stores.Reminders, wf)
	healthHandler := handlers.NewHealthHandler(stores.Health)

	api := router.Group("/api")
	api.GET("/health", healthHandler.Health)

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", auth.RequireAuth(), authHandler.Logout)
		authRoutes.GET("/profile", auth.RequireAuth(), authHandler.GetProfile)
	}

	patientRoutes := api.Group("/patients")
	{
		// Public
		patientRoutes.GET("/", patientHandler.ListPatientOptions)
		patientRoutes.POST("/register", auth.OptionalAuth(), patientHandler.RegisterPatient)
		patientRoutes.GET("/stats/analytics", statsHandler.Analytics)

		protected := patientRoutes.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.GET("/all", patientHandler.GetPatients)
			protected.GET("/stats/dashboard", statsHandler.DashboardStats)
			protected.POST("/mark-done", patientHandler.MarkFollowupDone)
			protected.GET("/patients/:id/dashboard", patientHandler.PatientDashboard)
			protected.GET("/:id", patientHandler.GetPatientByID)
			protected.PUT("/:id", patientHandler.UpdatePatient)
			protected.DELETE("/:id", patientHandler.DeletePatient)
		}
	}

	reminderRoutes := api.Group("/reminders")
	{
		// Called by the workflow engine
		reminderRoutes.GET("/upcoming", reminderHandler.Upcoming)
		reminderRoutes.POST("/create", reminderHandler.Create)
		reminderRoutes.PUT("/update-status/:id", reminderHandler.UpdateStatus)

		protected := reminderRoutes.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.GET("/dashboard", reminderHandler.Dashboard)
			protected.GET("/logs/:reminderId", reminderHandler.Logs)
			protected.POST("/send-manual", reminderHandler.SendManual)
		}
	}
}
