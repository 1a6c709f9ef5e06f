// Package memstore is an in-memory implementation of the store contracts.
// It backs DB_DRIVER=memory and the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
)

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	// Now stamps created_at and updated_at. Defaults to time.Now.
	Now func() time.Time

	nextID    uint
	accounts  map[uint]models.Account
	sessions  map[uint]models.Session
	audit     []models.AuditLog
	patients  map[uint]models.Patient
	reminders map[uint]models.Reminder
	logs      map[uint]models.ReminderLog
}

var (
	_ store.AccountStore  = (*Store)(nil)
	_ store.PatientStore  = (*Store)(nil)
	_ store.ReminderStore = (*Store)(nil)
	_ store.Pinger        = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		Now:       time.Now,
		accounts:  make(map[uint]models.Account),
		sessions:  make(map[uint]models.Session),
		patients:  make(map[uint]models.Patient),
		reminders: make(map[uint]models.Reminder),
		logs:      make(map[uint]models.ReminderLog),
	}
}

// Stores wires s into every slot of store.Stores.
func (s *Store) Stores() store.Stores {
	return store.Stores{Accounts: s, Patients: s, Reminders: s, Health: s}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AuditLogs returns a copy of the audit trail.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditLog(nil), s.audit...)
}

// SessionCount returns the number of live session rows.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Accounts

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return store.ErrDuplicate
		}
	}
	now := s.now()
	account.ID = s.id()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email == email {
			found := a
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.LastLogin = &at
	s.accounts[id] = a
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = s.id()
	session.CreatedAt = s.now()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) FindSession(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Token == token {
			found := sess
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Token == token {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Store) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.id()
	entry.CreatedAt = s.now()
	s.audit = append(s.audit, *entry)
	return nil
}

// Patients

func (s *Store) CreatePatient(ctx context.Context, patient *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	patient.ID = s.id()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	if patient.Status == "" {
		patient.Status = models.StatusScheduled
	}
	s.patients[patient.ID] = *patient
	return nil
}

func (s *Store) ListPatients(ctx context.Context, ownerID uint) ([]models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patients := []models.Patient{}
	for _, p := range s.patients {
		if p.OwnerID == ownerID {
			patients = append(patients, p)
		}
	}
	sort.Slice(patients, func(i, j int) bool {
		a, b := patients[i].NextFollowup.Time(), patients[j].NextFollowup.Time()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return patients[i].ID < patients[j].ID
	})
	return patients, nil
}

func (s *Store) ListPatientOptions(ctx context.Context) ([]models.PatientOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	options := []models.PatientOption{}
	for _, p := range s.patients {
		options = append(options, models.PatientOption{ID: p.ID, Name: p.Name, ConditionType: p.ConditionType})
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].Name != options[j].Name {
			return options[i].Name < options[j].Name
		}
		return options[i].ID < options[j].ID
	})
	return options, nil
}

func (s *Store) GetPatient(ctx context.Context, ownerID, id uint) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdatePatient(ctx context.Context, ownerID, id uint, columns map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return store.ErrNotFound
	}
	for col, v := range columns {
		applyColumn(&p, col, v)
	}
	p.UpdatedAt = s.now()
	s.patients[id] = p
	return nil
}

// applyColumn mirrors the column names produced by models.PatientUpdate.
func applyColumn(p *models.Patient, col string, v interface{}) {
	str := func() *string {
		x := v.(string)
		return &x
	}
	num := func() *float64 {
		x := v.(float64)
		return &x
	}
	switch col {
	case "name":
		p.Name = v.(string)
	case "age":
		p.Age = v.(int)
	case "gender":
		p.Gender = v.(string)
	case "contact":
		p.Contact = v.(string)
	case "mail":
		p.Mail = str()
	case "condition_type":
		p.ConditionType = v.(string)
	case "length_of_stay":
		x := v.(int)
		p.LengthOfStay = &x
	case "outcome":
		p.Outcome = str()
	case "glucose":
		p.Glucose = num()
	case "insulin":
		p.Insulin = num()
	case "bmi":
		p.BMI = num()
	case "diabetes":
		x := v.(bool)
		p.Diabetes = &x
	case "heart_rate":
		p.HeartRate = num()
	case "systolic_bp":
		p.SystolicBP = num()
	case "diastolic_bp":
		p.DiastolicBP = num()
	case "blood_sugar":
		p.BloodSugar = num()
	case "ck_mb":
		p.CKMB = num()
	case "troponin":
		p.Troponin = num()
	case "visit_date":
		p.VisitDate = v.(models.Date)
	case "next_followup":
		p.NextFollowup = v.(models.Date)
	case "assigned_doctor":
		p.AssignedDoctor = str()
	case "status":
		p.Status = v.(models.FollowupStatus)
	}
}

func (s *Store) DeletePatient(ctx context.Context, ownerID, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.patients, id)
	for rid, r := range s.reminders {
		if r.PatientID != id {
			continue
		}
		delete(s.reminders, rid)
		for lid, l := range s.logs {
			if l.ReminderID == rid {
				delete(s.logs, lid)
			}
		}
	}
	return nil
}

func (s *Store) MarkFollowupDone(ctx context.Context, ownerID, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return store.ErrNotFound
	}
	p.Status = models.StatusCompleted
	p.UpdatedAt = s.now()
	s.patients[id] = p
	return nil
}

func (s *Store) DashboardStats(ctx context.Context, ownerID uint, today models.Date) (store.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats store.DashboardStats
	dayStart := today.Time()
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekAhead := dayStart.AddDate(0, 0, models.PendingWindowDays)

	for _, p := range s.patients {
		if p.OwnerID != ownerID {
			continue
		}
		stats.TotalPatients++
		next := p.NextFollowup.Time()
		completed := p.Status == models.StatusCompleted
		if !completed && next.After(dayStart) && !next.After(weekAhead) {
			stats.PendingFollowUps++
		}
		if completed && !p.UpdatedAt.Before(dayStart) && p.UpdatedAt.Before(dayEnd) {
			stats.CompletedToday++
		}
		if !completed && next.Before(dayStart) {
			stats.MissedFollowUps++
		}
	}
	return stats, nil
}

func (s *Store) FollowupTotals(ctx context.Context, today models.Date) (store.FollowupTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals store.FollowupTotals
	for _, p := range s.patients {
		totals.TotalPatients++
		if p.NextFollowup.IsZero() {
			continue
		}
		totals.WithFollowup++
		if strings.EqualFold(string(p.Status), string(models.StatusCompleted)) {
			totals.Completed++
		}
		if strings.EqualFold(string(p.Status), string(models.StatusMissed)) || p.NextFollowup.Time().Before(today.Time()) {
			totals.Missed++
		}
	}
	return totals, nil
}

// Reminders

func (s *Store) ReminderDashboard(ctx context.Context, ownerID uint, limit int) ([]models.ReminderDashboardRow, map[models.ReminderStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := []models.ReminderDashboardRow{}
	counts := make(map[models.ReminderStatus]int64)
	for _, r := range s.reminders {
		p, ok := s.patients[r.PatientID]
		if !ok || p.OwnerID != ownerID {
			continue
		}
		counts[r.Status]++
		rows = append(rows, models.ReminderDashboardRow{
			ID:             r.ID,
			ReminderDate:   r.ReminderDate,
			Status:         r.Status,
			SentAt:         r.SentAt,
			ReminderType:   r.ReminderType,
			ScheduledTime:  r.ScheduledTime,
			PatientID:      p.ID,
			PatientName:    p.Name,
			Contact:        p.Contact,
			Mail:           p.Mail,
			ConditionType:  p.ConditionType,
			NextFollowup:   p.NextFollowup,
			AssignedDoctor: p.AssignedDoctor,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].ReminderDate.Time(), rows[j].ReminderDate.Time()
		if !a.Equal(b) {
			return a.After(b)
		}
		if rows[i].ScheduledTime != rows[j].ScheduledTime {
			return rows[i].ScheduledTime > rows[j].ScheduledTime
		}
		return rows[i].ID > rows[j].ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, counts, nil
}

func (s *Store) UpcomingFollowups(ctx context.Context, date models.Date) ([]models.UpcomingFollowup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	covered := make(map[uint]bool)
	for _, r := range s.reminders {
		if r.ReminderDate.Time().Equal(date.Time()) && (r.Status == models.ReminderPending || r.Status == models.ReminderSent) {
			covered[r.PatientID] = true
		}
	}

	upcoming := []models.UpcomingFollowup{}
	for _, p := range s.patients {
		if !p.NextFollowup.Time().Equal(date.Time()) || covered[p.ID] {
			continue
		}
		upcoming = append(upcoming, models.UpcomingFollowup{
			ID:             p.ID,
			Name:           p.Name,
			Contact:        p.Contact,
			Mail:           p.Mail,
			ConditionType:  p.ConditionType,
			NextFollowup:   p.NextFollowup,
			AssignedDoctor: p.AssignedDoctor,
		})
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].ID < upcoming[j].ID })
	return upcoming, nil
}

func (s *Store) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[reminder.PatientID]; !ok {
		return store.ErrNotFound
	}
	now := s.now()
	reminder.ID = s.id()
	reminder.CreatedAt = now
	reminder.UpdatedAt = now
	if reminder.Status == "" {
		reminder.Status = models.ReminderPending
	}
	s.reminders[reminder.ID] = *reminder
	return nil
}

// Reminder returns a copy of the reminder with id.
func (s *Store) Reminder(id uint) (models.Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	return r, ok
}

func (s *Store) UpdateReminderStatus(ctx context.Context, id uint, update models.ReminderStatusUpdate, log *models.ReminderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.now()
	r.Status = update.Status
	r.SentAt = update.SentAt
	r.FailureReason = update.FailureReason
	r.UpdatedAt = now
	s.reminders[id] = r

	if log == nil {
		return nil
	}
	log.ID = s.id()
	log.ReminderID = id
	log.CreatedAt = now
	s.logs[log.ID] = *log
	return nil
}

func (s *Store) ListReminderLogs(ctx context.Context, reminderID uint) ([]models.ReminderLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := []models.ReminderLog{}
	for _, l := range s.logs {
		if l.ReminderID == reminderID {
			logs = append(logs, l)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].ID > logs[j].ID
	})
	return logs, nil
}
