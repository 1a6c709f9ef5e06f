package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
)

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func newStore(now time.Time) *Store {
	s := New()
	s.Now = func() time.Time { return now }
	return s
}

func addPatient(t *testing.T, s *Store, owner uint, name, next string, status models.FollowupStatus) models.Patient {
	t.Helper()
	p := models.Patient{
		OwnerID:       owner,
		Name:          name,
		Age:           40,
		Gender:        "F",
		Contact:       "555-0100",
		ConditionType: "diabetes",
		VisitDate:     mustDate(t, "2024-06-01"),
		NextFollowup:  mustDate(t, next),
		Status:        status,
	}
	if err := s.CreatePatient(context.Background(), &p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateAccount(ctx, &models.Account{Email: "a@x.io"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.CreateAccount(ctx, &models.Account{Email: "a@x.io"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPatientsScopedByOwner(t *testing.T) {
	s := newStore(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	mine := addPatient(t, s, 1, "Ann", "2024-06-20", models.StatusScheduled)
	addPatient(t, s, 2, "Bob", "2024-06-12", models.StatusPending)

	list, _ := s.ListPatients(ctx, 1)
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("owner 1 sees %+v", list)
	}
	if _, err := s.GetPatient(ctx, 2, mine.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-owner get: %v", err)
	}
	if err := s.UpdatePatient(ctx, 2, mine.ID, map[string]interface{}{"name": "X"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-owner update: %v", err)
	}
	if err := s.DeletePatient(ctx, 2, mine.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-owner delete: %v", err)
	}
	if err := s.MarkFollowupDone(ctx, 2, mine.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-owner mark done: %v", err)
	}

	options, _ := s.ListPatientOptions(ctx)
	if len(options) != 2 || options[0].Name != "Ann" || options[1].Name != "Bob" {
		t.Errorf("options = %+v", options)
	}
}

func TestListPatients_OrderedByNextFollowup(t *testing.T) {
	s := New()
	addPatient(t, s, 1, "Late", "2024-07-01", models.StatusScheduled)
	addPatient(t, s, 1, "Early", "2024-06-11", models.StatusPending)

	list, _ := s.ListPatients(context.Background(), 1)
	if len(list) != 2 || list[0].Name != "Early" {
		t.Fatalf("order = %+v", list)
	}
}

func TestDashboardStats(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newStore(now)
	ctx := context.Background()
	today := models.NewDate(now)

	addPatient(t, s, 1, "pending", "2024-06-12", models.StatusPending)
	addPatient(t, s, 1, "edge", "2024-06-17", models.StatusPending)
	addPatient(t, s, 1, "far", "2024-06-18", models.StatusScheduled)
	addPatient(t, s, 1, "missed", "2024-06-01", models.StatusOverdue)
	done := addPatient(t, s, 1, "done", "2024-06-01", models.StatusOverdue)
	addPatient(t, s, 2, "other", "2024-06-12", models.StatusPending)

	if err := s.MarkFollowupDone(ctx, 1, done.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	stats, err := s.DashboardStats(ctx, 1, today)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := store.DashboardStats{TotalPatients: 5, PendingFollowUps: 2, CompletedToday: 1, MissedFollowUps: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestFollowupTotals(t *testing.T) {
	s := New()
	today := mustDate(t, "2024-06-10")
	addPatient(t, s, 1, "a", "2024-06-01", models.FollowupStatus("completed"))
	addPatient(t, s, 1, "b", "2024-06-01", models.StatusOverdue)
	addPatient(t, s, 2, "c", "2024-06-20", models.StatusMissed)
	addPatient(t, s, 2, "d", "2024-06-20", models.StatusScheduled)

	totals, _ := s.FollowupTotals(context.Background(), today)
	if totals.TotalPatients != 4 || totals.WithFollowup != 4 {
		t.Errorf("totals = %+v", totals)
	}
	if totals.Completed != 1 {
		t.Errorf("completed = %d, want 1", totals.Completed)
	}
	// a and b are in the past, c is flagged missed.
	if totals.Missed != 3 {
		t.Errorf("missed = %d, want 3", totals.Missed)
	}
}

func TestReminderLifecycle(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newStore(now)
	ctx := context.Background()
	tomorrow := mustDate(t, "2024-06-11")

	p := addPatient(t, s, 1, "Ann", "2024-06-11", models.StatusPending)
	q := addPatient(t, s, 1, "Bea", "2024-06-11", models.StatusPending)

	up, _ := s.UpcomingFollowups(ctx, tomorrow)
	if len(up) != 2 {
		t.Fatalf("upcoming = %+v", up)
	}

	r := models.Reminder{PatientID: p.ID, ReminderType: "email", ReminderDate: tomorrow, ScheduledTime: models.DefaultScheduledTime}
	if err := s.CreateReminder(ctx, &r); err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	if r.Status != models.ReminderPending {
		t.Errorf("status = %q", r.Status)
	}

	up, _ = s.UpcomingFollowups(ctx, tomorrow)
	if len(up) != 1 || up[0].ID != q.ID {
		t.Fatalf("upcoming after reminder = %+v", up)
	}

	update := models.NewReminderStatusUpdate(models.ReminderFailed, nil, now)
	if err := s.UpdateReminderStatus(ctx, r.ID, update, &models.ReminderLog{LogType: "email_failed", LogMessage: "bounce"}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	up, _ = s.UpcomingFollowups(ctx, tomorrow)
	if len(up) != 2 {
		t.Errorf("failed reminder should not cover patient: %+v", up)
	}

	rows, counts, _ := s.ReminderDashboard(ctx, 1, 50)
	if len(rows) != 1 || rows[0].PatientName != "Ann" || counts[models.ReminderFailed] != 1 {
		t.Errorf("dashboard rows=%+v counts=%v", rows, counts)
	}
	if rows, _, _ := s.ReminderDashboard(ctx, 2, 50); len(rows) != 0 {
		t.Errorf("owner 2 sees %+v", rows)
	}

	logs, _ := s.ListReminderLogs(ctx, r.ID)
	if len(logs) != 1 || logs[0].LogMessage != "bounce" {
		t.Errorf("logs = %+v", logs)
	}

	if err := s.CreateReminder(ctx, &models.Reminder{PatientID: 999}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("reminder for unknown patient: %v", err)
	}
	if err := s.UpdateReminderStatus(ctx, 999, update, nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update unknown reminder: %v", err)
	}

	if err := s.DeletePatient(ctx, 1, p.ID); err != nil {
		t.Fatalf("delete patient: %v", err)
	}
	if _, ok := s.Reminder(r.ID); ok {
		t.Error("reminder survived patient deletion")
	}
}
