// Package store holds the persistence contracts used by the HTTP handlers and
// their gorm-backed implementations.
package store

import (
	"context"
	"errors"
	"time"

	"hospital-followup-server/internal/models"
)

var (
	// ErrNotFound is returned when no row matches the lookup (including the owner filter).
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// AccountStore persists manager accounts, sessions and the audit trail.
type AccountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByID(ctx context.Context, id uint) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error

	CreateSession(ctx context.Context, session *models.Session) error
	FindSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

// DashboardStats are the per-owner follow-up counters. Each counter is an
// independent query, so they need not add up to Total.
type DashboardStats struct {
	TotalPatients    int64 `json:"totalPatients"`
	PendingFollowUps int64 `json:"pendingFollowUps"`
	CompletedToday   int64 `json:"completedToday"`
	MissedFollowUps  int64 `json:"missedFollowUps"`
}

// FollowupTotals are the raw system-wide counts behind the analytics rates.
type FollowupTotals struct {
	TotalPatients int64
	WithFollowup  int64
	Completed     int64
	Missed        int64
}

// PatientStore persists patient records scoped by owner.
type PatientStore interface {
	CreatePatient(ctx context.Context, patient *models.Patient) error
	ListPatients(ctx context.Context, ownerID uint) ([]models.Patient, error)
	ListPatientOptions(ctx context.Context) ([]models.PatientOption, error)
	GetPatient(ctx context.Context, ownerID, id uint) (*models.Patient, error)
	UpdatePatient(ctx context.Context, ownerID, id uint, columns map[string]interface{}) error
	DeletePatient(ctx context.Context, ownerID, id uint) error
	MarkFollowupDone(ctx context.Context, ownerID, id uint) error

	DashboardStats(ctx context.Context, ownerID uint, today models.Date) (DashboardStats, error)
	FollowupTotals(ctx context.Context, today models.Date) (FollowupTotals, error)
}

// ReminderStore persists reminders and their logs.
type ReminderStore interface {
	ReminderDashboard(ctx context.Context, ownerID uint, limit int) ([]models.ReminderDashboardRow, map[models.ReminderStatus]int64, error)
	UpcomingFollowups(ctx context.Context, date models.Date) ([]models.UpcomingFollowup, error)
	CreateReminder(ctx context.Context, reminder *models.Reminder) error
	UpdateReminderStatus(ctx context.Context, id uint, update models.ReminderStatusUpdate, log *models.ReminderLog) error
	ListReminderLogs(ctx context.Context, reminderID uint) ([]models.ReminderLog, error)
}

// Pinger is implemented by stores backed by a live connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles the persistence dependencies of the API.
type Stores struct {
	Accounts  AccountStore
	Patients  PatientStore
	Reminders ReminderStore
	Health    Pinger
}
