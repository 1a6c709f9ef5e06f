package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
	"hospital-followup-server/internal/workflow"
)

// reminderDashboardLimit caps the rows returned by the reminder dashboard.
const reminderDashboardLimit = 100

// ReminderHandler serves the reminder tracker. The upcoming, create and
// update-status routes are called by the workflow engine.
type ReminderHandler struct {
	Reminders store.ReminderStore
	Workflow  WorkflowClient
	Now       func() time.Time
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(reminders store.ReminderStore, wf WorkflowClient) *ReminderHandler {
	return &ReminderHandler{Reminders: reminders, Workflow: wf, Now: time.Now}
}

// ReminderStats counts reminders by status. Total is the number of rows returned.
type ReminderStats struct {
	Total     int   `json:"total"`
	Pending   int64 `json:"pending"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// ReminderDashboardResponse is the body of GET /api/reminders/dashboard.
type ReminderDashboardResponse struct {
	Reminders []models.ReminderDashboardRow `json:"reminders"`
	Stats     ReminderStats                 `json:"stats"`
}

// Dashboard lists the newest reminders for the caller's patients.
func (h *ReminderHandler) Dashboard(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	rows, counts, err := h.Reminders.ReminderDashboard(c.Request.Context(), ownerID, reminderDashboardLimit)
	if err != nil {
		utils.ServerError(c, "Failed to fetch reminder dashboard", err)
		return
	}

	utils.Success(c, ReminderDashboardResponse{
		Reminders: rows,
		Stats: ReminderStats{
			Total:     len(rows),
			Pending:   counts[models.ReminderPending],
			Sent:      counts[models.ReminderSent],
			Failed:    counts[models.ReminderFailed],
			Cancelled: counts[models.ReminderCancelled],
		},
	})
}

// Upcoming lists patients due tomorrow who have no pending or sent reminder yet.
func (h *ReminderHandler) Upcoming(c *gin.Context) {
	tomorrow := models.NewDate(h.Now().UTC().AddDate(0, 0, 1))
	upcoming, err := h.Reminders.UpcomingFollowups(c.Request.Context(), tomorrow)
	if err != nil {
		utils.ServerError(c, "Failed to fetch upcoming reminders", err)
		return
	}
	utils.Success(c, upcoming)
}

// CreateReminderRequest represents the request body for creating a reminder.
type CreateReminderRequest struct {
	PatientID     uint   `json:"patient_id" binding:"required"`
	ReminderType  string `json:"reminder_type" binding:"required"`
	ReminderDate  string `json:"reminder_date" binding:"required,datetime=2006-01-02"`
	ScheduledTime string `json:"scheduled_time"`
}

// Create records a new pending reminder.
func (h *ReminderHandler) Create(c *gin.Context) {
	var req CreateReminderRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	date, err := models.ParseDate(req.ReminderDate)
	if err != nil {
		utils.BadRequest(c, "reminder_date must be a date in YYYY-MM-DD format")
		return
	}
	at := models.DefaultScheduledTime
	if req.ScheduledTime != "" {
		if at, err = models.ParseClock(req.ScheduledTime); err != nil {
			utils.BadRequest(c, "scheduled_time must be a time in HH:MM or HH:MM:SS format")
			return
		}
	}

	reminder := models.Reminder{
		PatientID:     req.PatientID,
		ReminderType:  req.ReminderType,
		ReminderDate:  date,
		ScheduledTime: at,
		Status:        models.ReminderPending,
	}
	if err := h.Reminders.CreateReminder(c.Request.Context(), &reminder); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Failed to create reminder", err)
		return
	}

	utils.Success(c, gin.H{
		"message":    "Reminder created successfully",
		"reminderId": reminder.ID,
	})
}

// UpdateStatusRequest represents the delivery outcome reported by the workflow engine.
type UpdateStatusRequest struct {
	Status        models.ReminderStatus `json:"status" binding:"required,oneof=sent failed cancelled"`
	FailureReason *string               `json:"failure_reason"`
	LogType       string                `json:"log_type"`
	LogMessage    string                `json:"log_message"`
}

// UpdateStatus moves a reminder to a terminal status and optionally logs a message.
func (h *ReminderHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id", "Invalid reminder id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	update := models.NewReminderStatusUpdate(req.Status, req.FailureReason, h.Now().UTC())

	var entry *models.ReminderLog
	if req.LogMessage != "" {
		logType := req.LogType
		if logType == "" {
			logType = models.DefaultLogType
		}
		entry = &models.ReminderLog{LogType: logType, LogMessage: req.LogMessage}
	}

	if err := h.Reminders.UpdateReminderStatus(c.Request.Context(), id, update, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Reminder not found")
			return
		}
		utils.ServerError(c, "Failed to update reminder status", err)
		return
	}
	utils.Message(c, "Reminder status updated successfully")
}

// Logs returns a reminder's log entries, newest first.
func (h *ReminderHandler) Logs(c *gin.Context) {
	id, ok := parseID(c, "reminderId", "Invalid reminder id")
	if !ok {
		return
	}

	logs, err := h.Reminders.ListReminderLogs(c.Request.Context(), id)
	if err != nil {
		utils.ServerError(c, "Failed to fetch reminder logs", err)
		return
	}
	utils.Success(c, logs)
}

// SendManualRequest represents the request body for a manual reminder.
type SendManualRequest struct {
	PatientID    uint   `json:"patient_id" binding:"required"`
	ReminderType string `json:"reminder_type" binding:"required"`
}

// SendManual asks the workflow engine to deliver a reminder now.
func (h *ReminderHandler) SendManual(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req SendManualRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	err := h.Workflow.SendManualReminder(c.Request.Context(), workflow.ManualReminder{
		PatientID:    req.PatientID,
		ReminderType: req.ReminderType,
		TriggeredBy:  userID,
	})
	if err != nil {
		utils.BadGateway(c, "Failed to send manual reminder", err)
		return
	}
	utils.Message(c, "Manual reminder triggered successfully")
}
