package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

// RoleManager is the only role handed out at signup.
const RoleManager Role = "manager"

// PasswordCost matches a bcrypt salt round count of 10.
const PasswordCost = 10

// Account is a hospital manager who owns the patients they register.
type Account struct {
	BaseModel
	HospitalName    string     `gorm:"size:255;not null" json:"hospital_name"`
	HospitalAddress string     `gorm:"size:500;not null" json:"hospital_address"`
	FirstName       string     `gorm:"size:100;not null" json:"first_name"`
	LastName        string     `gorm:"size:100;not null" json:"last_name"`
	Email           string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string     `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	Role            Role       `gorm:"size:20;not null;default:'manager'" json:"role"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}

// TableName keeps the historical table name.
func (Account) TableName() string { return "users" }

// AccountSanitized represents the account data that is safe to send in API responses.
type AccountSanitized struct {
	ID              uint       `json:"id"`
	HospitalName    string     `json:"hospitalName"`
	HospitalAddress string     `json:"hospitalAddress"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLogin       *time.Time `json:"lastLogin"`
}

// SetPassword hashes a password and stores the hash on the account
func (a *Account) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hashed)
	return nil
}

// CheckPassword compares a password with the account's hash
func (a *Account) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
	return err == nil
}

// Sanitize creates an AccountSanitized from an Account, excluding the password hash.
func (a *Account) Sanitize() AccountSanitized {
	return AccountSanitized{
		ID:              a.ID,
		HospitalName:    a.HospitalName,
		HospitalAddress: a.HospitalAddress,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Email:           a.Email,
		Role:            a.Role,
		CreatedAt:       a.CreatedAt,
		LastLogin:       a.LastLogin,
	}
}

// AccountSummary is the projection returned alongside a fresh token.
type AccountSummary struct {
	ID              uint   `json:"id"`
	HospitalName    string `json:"hospitalName"`
	HospitalAddress string `json:"hospitalAddress"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
}

// Summary projects the account for the login response.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:              a.ID,
		HospitalName:    a.HospitalName,
		HospitalAddress: a.HospitalAddress,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		Email:           a.Email,
		Role:            a.Role,
	}
}
