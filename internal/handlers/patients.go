package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
	"hospital-followup-server/internal/workflow"
)

// WorkflowClient is the subset of the workflow engine API the handlers use.
type WorkflowClient interface {
	PatientDashboard(ctx context.Context, patientID uint) ([]byte, error)
	SendManualReminder(ctx context.Context, reminder workflow.ManualReminder) error
}

// PatientHandler handles patient-related requests.
type PatientHandler struct {
	Patients store.PatientStore
	Workflow WorkflowClient
	Now      func() time.Time
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patients store.PatientStore, wf WorkflowClient) *PatientHandler {
	return &PatientHandler{Patients: patients, Workflow: wf, Now: time.Now}
}

const requiredPatientFields = "Required fields: name, age, gender, contact, condition_type, visit_date, next_followup"

// RegisterPatientRequest represents the request body for patient registration.
type RegisterPatientRequest struct {
	Name           string   `json:"name" binding:"required"`
	Age            int      `json:"age" binding:"required"`
	Gender         string   `json:"gender" binding:"required"`
	Contact        string   `json:"contact" binding:"required"`
	Mail           *string  `json:"mail"`
	ConditionType  string   `json:"condition_type" binding:"required"`
	LengthOfStay   *int     `json:"length_of_stay"`
	Outcome        *string  `json:"outcome"`
	Glucose        *float64 `json:"glucose"`
	Insulin        *float64 `json:"insulin"`
	BMI            *float64 `json:"bmi"`
	Diabetes       *bool    `json:"diabetes"`
	HeartRate      *float64 `json:"heart_rate"`
	SystolicBP     *float64 `json:"systolic_bp"`
	DiastolicBP    *float64 `json:"diastolic_bp"`
	BloodSugar     *float64 `json:"blood_sugar"`
	CKMB           *float64 `json:"ck_mb"`
	Troponin       *float64 `json:"troponin"`
	VisitDate      string   `json:"visit_date" binding:"required,datetime=2006-01-02"`
	NextFollowup   string   `json:"next_followup" binding:"required,datetime=2006-01-02"`
	AssignedDoctor *string  `json:"assigned_doctor"`
}

func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return requiredPatientFields
	}
	for _, e := range verrs {
		if e.Tag() == "required" {
			return requiredPatientFields
		}
	}
	return utils.FormatValidationError(verrs)
}

// RegisterPatient stores a new patient owned by the caller. The follow-up
// status is computed once here and not refreshed later.
func (h *PatientHandler) RegisterPatient(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Access denied. No token provided.")
		return
	}

	var req RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, registerMessage(err))
		return
	}

	visit, err := models.ParseDate(req.VisitDate)
	if err != nil {
		utils.BadRequest(c, "visit_date must be a date in YYYY-MM-DD format")
		return
	}
	next, err := models.ParseDate(req.NextFollowup)
	if err != nil {
		utils.BadRequest(c, "next_followup must be a date in YYYY-MM-DD format")
		return
	}

	patient := models.Patient{
		OwnerID:        ownerID,
		Name:           req.Name,
		Age:            req.Age,
		Gender:         req.Gender,
		Contact:        req.Contact,
		Mail:           req.Mail,
		ConditionType:  req.ConditionType,
		LengthOfStay:   req.LengthOfStay,
		Outcome:        req.Outcome,
		Glucose:        req.Glucose,
		Insulin:        req.Insulin,
		BMI:            req.BMI,
		Diabetes:       req.Diabetes,
		HeartRate:      req.HeartRate,
		SystolicBP:     req.SystolicBP,
		DiastolicBP:    req.DiastolicBP,
		BloodSugar:     req.BloodSugar,
		CKMB:           req.CKMB,
		Troponin:       req.Troponin,
		VisitDate:      visit,
		NextFollowup:   next,
		AssignedDoctor: req.AssignedDoctor,
		Status:         models.DeriveFollowupStatus(next, h.Now()),
	}

	if err := h.Patients.CreatePatient(c.Request.Context(), &patient); err != nil {
		utils.ServerError(c, "Error registering patient", err)
		return
	}

	utils.Created(c, gin.H{
		"message":   "Patient registered successfully",
		"patientId": patient.ID,
	})
}

// ListPatientOptions returns every patient's id, name and condition for
// selection controls. It is intentionally not scoped to an owner.
func (h *PatientHandler) ListPatientOptions(c *gin.Context) {
	options, err := h.Patients.ListPatientOptions(c.Request.Context())
	if err != nil {
		utils.ServerError(c, "Failed to fetch patients", err)
		return
	}
	utils.Success(c, options)
}

// GetPatients retrieves the caller's patients ordered by next follow-up.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	patients, err := h.Patients.ListPatients(c.Request.Context(), ownerID)
	if err != nil {
		utils.ServerError(c, "Error fetching patients", err)
		return
	}
	utils.Success(c, gin.H{"patients": patients})
}

// GetPatientByID retrieves one of the caller's patients.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	id, ok := parseID(c, "id", "Invalid patient id")
	if !ok {
		return
	}

	patient, err := h.Patients.GetPatient(c.Request.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Error fetching patient", err)
		return
	}
	utils.Success(c, gin.H{"patient": patient})
}

// UpdatePatient applies the allow-listed fields present in the body.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	id, ok := parseID(c, "id", "Invalid patient id")
	if !ok {
		return
	}

	var req models.PatientUpdate
	if !utils.BindJSON(c, &req) {
		return
	}
	columns, err := req.Columns()
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if len(columns) == 0 {
		utils.BadRequest(c, "No fields to update")
		return
	}

	if err := h.Patients.UpdatePatient(c.Request.Context(), ownerID, id, columns); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Error updating patient", err)
		return
	}
	utils.Message(c, "Patient updated successfully")
}

// DeletePatient removes one of the caller's patients.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	id, ok := parseID(c, "id", "Invalid patient id")
	if !ok {
		return
	}

	if err := h.Patients.DeletePatient(c.Request.Context(), ownerID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Error deleting patient", err)
		return
	}
	utils.Message(c, "Patient deleted successfully")
}

// MarkDoneRequest represents the request body for completing a follow-up.
type MarkDoneRequest struct {
	PatientID uint `json:"patientId" binding:"required"`
}

// MarkFollowupDone sets a patient's status to Completed.
func (h *PatientHandler) MarkFollowupDone(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req MarkDoneRequest
	if !utils.BindJSON(c, &req) {
		return
	}

	if err := h.Patients.MarkFollowupDone(c.Request.Context(), ownerID, req.PatientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Error updating follow-up status", err)
		return
	}
	utils.Message(c, "Follow-up marked as completed")
}

// PatientDashboard proxies the HTML dashboard rendered by the workflow engine.
func (h *PatientHandler) PatientDashboard(c *gin.Context) {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	id, ok := parseID(c, "id", "Invalid patient id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Patients.GetPatient(ctx, ownerID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Patient not found")
			return
		}
		utils.ServerError(c, "Error loading dashboard", err)
		return
	}

	html, err := h.Workflow.PatientDashboard(ctx, id)
	if err != nil {
		utils.BadGateway(c, "Error loading dashboard", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func parseID(c *gin.Context, param, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequest(c, message)
		return 0, false
	}
	return uint(id), true
}
