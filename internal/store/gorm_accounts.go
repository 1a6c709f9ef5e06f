package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hospital-followup-server/internal/models"
)

// GormAccountStore is the gorm implementation of AccountStore.
type GormAccountStore struct {
	DB *gorm.DB
}

// NewGormAccountStore creates a new GormAccountStore.
func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{DB: db}
}

func (s *GormAccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (s *GormAccountStore) CreateAccount(ctx context.Context, account *models.Account) error {
	return translate("create account", s.DB.WithContext(ctx).Create(account).Error)
}

func (s *GormAccountStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, translate("find account by email", err)
	}
	return &account, nil
}

func (s *GormAccountStore) FindAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.DB.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, translate("find account", err)
	}
	return &account, nil
}

func (s *GormAccountStore) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	err := s.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("last_login", at).Error
	return translate("update last login", err)
}

func (s *GormAccountStore) CreateSession(ctx context.Context, session *models.Session) error {
	return translate("create session", s.DB.WithContext(ctx).Create(session).Error)
}

func (s *GormAccountStore) FindSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := s.DB.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, translate("find session", err)
	}
	return &session, nil
}

// DeleteSession removes every session row carrying token. A missing token is not an error.
func (s *GormAccountStore) DeleteSession(ctx context.Context, token string) error {
	err := s.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
	return translate("delete session", err)
}

func (s *GormAccountStore) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	return translate("record audit log", s.DB.WithContext(ctx).Create(entry).Error)
}

// Ping checks the underlying connection pool.
func (s *GormAccountStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
