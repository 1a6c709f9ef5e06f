package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hospital-followup-server/internal/models"
)

// GormPatientStore is the gorm implementation of PatientStore.
type GormPatientStore struct {
	DB *gorm.DB
}

// NewGormPatientStore creates a new GormPatientStore.
func NewGormPatientStore(db *gorm.DB) *GormPatientStore {
	return &GormPatientStore{DB: db}
}

func (s *GormPatientStore) owned(ctx context.Context, ownerID, id uint) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.Patient{}).Where("id = ? AND user_id = ?", id, ownerID)
}

func (s *GormPatientStore) exists(ctx context.Context, ownerID, id uint) error {
	var n int64
	if err := s.owned(ctx, ownerID, id).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup patient: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormPatientStore) CreatePatient(ctx context.Context, patient *models.Patient) error {
	return translate("create patient", s.DB.WithContext(ctx).Create(patient).Error)
}

func (s *GormPatientStore) ListPatients(ctx context.Context, ownerID uint) ([]models.Patient, error) {
	patients := []models.Patient{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("next_followup ASC, id ASC").
		Find(&patients).Error
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *GormPatientStore) ListPatientOptions(ctx context.Context) ([]models.PatientOption, error) {
	options := []models.PatientOption{}
	err := s.DB.WithContext(ctx).
		Model(&models.Patient{}).
		Select("id, name, condition_type").
		Order("name ASC").
		Scan(&options).Error
	if err != nil {
		return nil, fmt.Errorf("list patient options: %w", err)
	}
	return options, nil
}

func (s *GormPatientStore) GetPatient(ctx context.Context, ownerID, id uint) (*models.Patient, error) {
	var patient models.Patient
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&patient).Error; err != nil {
		return nil, translate("get patient", err)
	}
	return &patient, nil
}

// UpdatePatient applies columns, which must come from models.PatientUpdate.
func (s *GormPatientStore) UpdatePatient(ctx context.Context, ownerID, id uint, columns map[string]interface{}) error {
	if err := s.exists(ctx, ownerID, id); err != nil {
		return err
	}
	return translate("update patient", s.owned(ctx, ownerID, id).Updates(columns).Error)
}

func (s *GormPatientStore) DeletePatient(ctx context.Context, ownerID, id uint) error {
	result := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Patient{})
	if result.Error != nil {
		return fmt.Errorf("delete patient: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormPatientStore) MarkFollowupDone(ctx context.Context, ownerID, id uint) error {
	if err := s.exists(ctx, ownerID, id); err != nil {
		return err
	}
	err := s.owned(ctx, ownerID, id).Update("status", models.StatusCompleted).Error
	return translate("mark follow-up done", err)
}

func (s *GormPatientStore) DashboardStats(ctx context.Context, ownerID uint, today models.Date) (DashboardStats, error) {
	var stats DashboardStats
	weekAhead := models.NewDate(today.Time().AddDate(0, 0, models.PendingWindowDays))
	dayStart := today.Time()
	dayEnd := dayStart.AddDate(0, 0, 1)

	scoped := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.Patient{}).Where("user_id = ?", ownerID)
	}

	if err := scoped().Count(&stats.TotalPatients).Error; err != nil {
		return stats, fmt.Errorf("count patients: %w", err)
	}
	if err := scoped().
		Where("next_followup > ? AND next_followup <= ?", today, weekAhead).
		Where("status <> ?", models.StatusCompleted).
		Count(&stats.PendingFollowUps).Error; err != nil {
		return stats, fmt.Errorf("count pending follow-ups: %w", err)
	}
	if err := scoped().
		Where("status = ?", models.StatusCompleted).
		Where("updated_at >= ? AND updated_at < ?", dayStart, dayEnd).
		Count(&stats.CompletedToday).Error; err != nil {
		return stats, fmt.Errorf("count completed today: %w", err)
	}
	if err := scoped().
		Where("next_followup < ?", today).
		Where("status <> ?", models.StatusCompleted).
		Count(&stats.MissedFollowUps).Error; err != nil {
		return stats, fmt.Errorf("count missed follow-ups: %w", err)
	}
	return stats, nil
}

func (s *GormPatientStore) FollowupTotals(ctx context.Context, today models.Date) (FollowupTotals, error) {
	var totals FollowupTotals
	if err := s.DB.WithContext(ctx).Model(&models.Patient{}).Count(&totals.TotalPatients).Error; err != nil {
		return totals, fmt.Errorf("count patients: %w", err)
	}

	var row struct {
		Total     int64
		Completed int64
		Missed    int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Patient{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN LOWER(status) = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN LOWER(status) = 'missed' OR next_followup < ? THEN 1 ELSE 0 END), 0) AS missed`, today).
		Where("next_followup IS NOT NULL").
		Scan(&row).Error
	if err != nil {
		return totals, fmt.Errorf("follow-up totals: %w", err)
	}

	totals.WithFollowup = row.Total
	totals.Completed = row.Completed
	totals.Missed = row.Missed
	return totals, nil
}
