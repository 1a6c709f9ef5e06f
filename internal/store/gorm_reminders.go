package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hospital-followup-server/internal/models"
)

// GormReminderStore is the gorm implementation of ReminderStore.
type GormReminderStore struct {
	DB *gorm.DB
}

// NewGormReminderStore creates a new GormReminderStore.
func NewGormReminderStore(db *gorm.DB) *GormReminderStore {
	return &GormReminderStore{DB: db}
}

func (s *GormReminderStore) ownedReminders(ctx context.Context, ownerID uint) *gorm.DB {
	return s.DB.WithContext(ctx).
		Table("reminders AS r").
		Joins("INNER JOIN patients AS p ON r.patient_id = p.id").
		Where("p.user_id = ?", ownerID)
}

func (s *GormReminderStore) ReminderDashboard(ctx context.Context, ownerID uint, limit int) ([]models.ReminderDashboardRow, map[models.ReminderStatus]int64, error) {
	rows := []models.ReminderDashboardRow{}
	err := s.ownedReminders(ctx, ownerID).
		Select(`r.id, r.reminder_date, r.status, r.sent_at, r.reminder_type, r.scheduled_time,
			p.id AS patient_id, p.name AS patient_name, p.contact, p.mail, p.condition_type,
			p.next_followup, p.assigned_doctor`).
		Order("r.reminder_date DESC, r.scheduled_time DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("list reminders: %w", err)
	}

	var grouped []struct {
		Status models.ReminderStatus
		Count  int64
	}
	err = s.ownedReminders(ctx, ownerID).
		Select("r.status AS status, COUNT(*) AS count").
		Group("r.status").
		Scan(&grouped).Error
	if err != nil {
		return nil, nil, fmt.Errorf("count reminders by status: %w", err)
	}

	counts := make(map[models.ReminderStatus]int64, len(grouped))
	for _, g := range grouped {
		counts[g.Status] = g.Count
	}
	return rows, counts, nil
}

// UpcomingFollowups lists patients due on date that have no pending or sent
// reminder for that date yet.
func (s *GormReminderStore) UpcomingFollowups(ctx context.Context, date models.Date) ([]models.UpcomingFollowup, error) {
	upcoming := []models.UpcomingFollowup{}
	active := []string{string(models.ReminderPending), string(models.ReminderSent)}
	err := s.DB.WithContext(ctx).
		Model(&models.Patient{}).
		Select("id, name, contact, mail, condition_type, next_followup, assigned_doctor").
		Where("next_followup = ?", date).
		Where(`NOT EXISTS (
			SELECT 1 FROM reminders r
			WHERE r.patient_id = patients.id AND r.reminder_date = ? AND r.status IN ?)`, date, active).
		Order("id ASC").
		Scan(&upcoming).Error
	if err != nil {
		return nil, fmt.Errorf("list upcoming follow-ups: %w", err)
	}
	return upcoming, nil
}

func (s *GormReminderStore) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Patient{}).Where("id = ?", reminder.PatientID).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup patient: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return translate("create reminder", s.DB.WithContext(ctx).Create(reminder).Error)
}

func (s *GormReminderStore) UpdateReminderStatus(ctx context.Context, id uint, update models.ReminderStatusUpdate, log *models.ReminderLog) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup reminder: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	err := s.DB.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         update.Status,
		"sent_at":        update.SentAt,
		"failure_reason": update.FailureReason,
	}).Error
	if err != nil {
		return fmt.Errorf("update reminder status: %w", err)
	}

	if log == nil {
		return nil
	}
	log.ReminderID = id
	return translate("record reminder log", s.DB.WithContext(ctx).Create(log).Error)
}

func (s *GormReminderStore) ListReminderLogs(ctx context.Context, reminderID uint) ([]models.ReminderLog, error) {
	logs := []models.ReminderLog{}
	err := s.DB.WithContext(ctx).
		Where("reminder_id = ?", reminderID).
		Order("created_at DESC, id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder logs: %w", err)
	}
	return logs, nil
}
