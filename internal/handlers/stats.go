package handlers

import (
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
)

// StatsHandler serves the dashboard counters and system-wide analytics.
type StatsHandler struct {
	Patients store.PatientStore
	Now      func() time.Time
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(patients store.PatientStore) *StatsHandler {
	return &StatsHandler{Patients: patients, Now: time.Now}
}

// AnalyticsResponse is the body of GET /api/patients/stats/analytics.
type AnalyticsResponse struct {
	TotalPatients   int64 `json:"totalPatients"`
	CompletionRate  int64 `json:"completionRate"`
	MissedFollowups int64 `json:"missedFollowups"`
	MissedRate      int64 `json:"missedRate"`
}

// DashboardStats returns the caller's follow-up counters. The counters are
// computed independently and are not a partition of the total.
func (h *StatsHandler) DashboardStats(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	stats, err := h.Patients.DashboardStats(c.Request.Context(), ownerID, models.NewDate(h.Now()))
	if err != nil {
		utils.ServerError(c, "Error fetching statistics", err)
		return
	}
	utils.Success(c, stats)
}

// Analytics returns system-wide completion and missed rates.
func (h *StatsHandler) Analytics(c *gin.Context) {
	totals, err := h.Patients.FollowupTotals(c.Request.Context(), models.NewDate(h.Now()))
	if err != nil {
		utils.ServerError(c, "Failed to fetch stats", err)
		return
	}

	utils.Success(c, AnalyticsResponse{
		TotalPatients:   totals.TotalPatients,
		CompletionRate:  percent(totals.Completed, totals.WithFollowup),
		MissedFollowups: totals.Missed,
		MissedRate:      percent(totals.Missed, totals.WithFollowup),
	})
}

// percent rounds part/whole to the nearest whole percent, 0 when whole is 0.
func percent(part, whole int64) int64 {
	if whole <= 0 {
		return 0
	}
	return int64(math.Round(float64(part) / float64(whole) * 100))
}
