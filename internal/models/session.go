package models

import (
	"time"
)

// Session records an issued bearer token so it can be revoked at logout.
type Session struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uint      `gorm:"column:user_id;index;not null" json:"user_id"`
	Token     string    `gorm:"size:512;index;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (Session) TableName() string { return "sessions" }

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuditAction tags an audit log entry.
type AuditAction string

const (
	AuditSignup AuditAction = "SIGNUP"
	AuditLogin  AuditAction = "LOGIN"
	AuditLogout AuditAction = "LOGOUT"
)

// AuditLog is an append-only record of account activity.
type AuditLog struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uint        `gorm:"column:user_id;index;not null" json:"user_id"`
	Action    AuditAction `gorm:"size:20;not null" json:"action"`
	IPAddress string      `gorm:"size:64" json:"ip_address"`
	UserAgent *string     `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
