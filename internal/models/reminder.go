package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ReminderStatus represents the lifecycle state of a reminder
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ReminderStatuses lists every status in dashboard order.
var ReminderStatuses = []ReminderStatus{ReminderPending, ReminderSent, ReminderFailed, ReminderCancelled}

// DefaultLogType is recorded when a status update carries a message but no type.
const DefaultLogType = "email_sent"

// DefaultScheduledTime is used when the scheduler does not pick a time of day.
var DefaultScheduledTime = datatypes.NewTime(9, 0, 0, 0)

// Reminder tracks one notification intent for a patient's follow-up.
type Reminder struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PatientID     uint           `gorm:"index;not null" json:"patient_id"`
	ReminderType  string         `gorm:"size:50;not null" json:"reminder_type"`
	ReminderDate  Date           `gorm:"index;not null" json:"reminder_date"`
	ScheduledTime datatypes.Time `gorm:"not null" json:"scheduled_time"`
	Status        ReminderStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	SentAt        *time.Time     `json:"sent_at"`
	FailureReason *string        `gorm:"type:text" json:"failure_reason"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Patient Patient `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Reminder) TableName() string { return "reminders" }

// ReminderLog is an append-only note attached to a reminder.
type ReminderLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReminderID uint      `gorm:"index;not null" json:"reminder_id"`
	LogType    string    `gorm:"size:50;not null" json:"log_type"`
	LogMessage string    `gorm:"type:text" json:"log_message"`
	CreatedAt  time.Time `json:"created_at"`

	Reminder Reminder `gorm:"foreignKey:ReminderID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ReminderLog) TableName() string { return "reminder_logs" }

// ReminderStatusUpdate is what the scheduler reports after a delivery attempt.
type ReminderStatusUpdate struct {
	Status        ReminderStatus
	SentAt        *time.Time
	FailureReason *string
}

// NewReminderStatusUpdate stamps SentAt only for sent reminders.
func NewReminderStatusUpdate(status ReminderStatus, failureReason *string, now time.Time) ReminderStatusUpdate {
	u := ReminderStatusUpdate{Status: status}
	if status == ReminderSent {
		at := now
		u.SentAt = &at
	}
	if failureReason != nil && *failureReason != "" {
		u.FailureReason = failureReason
	}
	return u
}

// ParseClock parses an HH:MM:SS or HH:MM time of day.
func ParseClock(s string) (datatypes.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// ReminderDashboardRow joins a reminder with the patient it concerns.
type ReminderDashboardRow struct {
	ID             uint           `json:"id"`
	ReminderDate   Date           `json:"reminder_date"`
	Status         ReminderStatus `json:"status"`
	SentAt         *time.Time     `json:"sent_at"`
	ReminderType   string         `json:"reminder_type"`
	ScheduledTime  datatypes.Time `json:"scheduled_time"`
	PatientID      uint           `json:"patient_id"`
	PatientName    string         `json:"patient_name"`
	Contact        string         `json:"contact"`
	Mail           *string        `json:"mail"`
	ConditionType  string         `json:"condition_type"`
	NextFollowup   Date           `json:"next_followup"`
	AssignedDoctor *string        `json:"assigned_doctor"`
}

// UpcomingFollowup is a patient due for a reminder.
type UpcomingFollowup struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	Contact        string  `json:"contact"`
	Mail           *string `json:"mail"`
	ConditionType  string  `json:"condition_type"`
	NextFollowup   Date    `json:"next_followup"`
	AssignedDoctor *string `json:"assigned_doctor"`
}
