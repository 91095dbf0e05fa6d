package services

import (
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

func TestReminderSendsOncePerKind(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

	dueSoon := f.juneReport(t) // due 2024-06-05 23:59
	overdue := f.newReport(t, models.ReportNarrative, 5, 2024, time.Date(2024, 5, 31, 17, 0, 0, 0, time.UTC))
	f.newReport(t, models.ReportWorkActivitySchedule, 7, 2024, time.Date(2024, 7, 5, 17, 0, 0, 0, time.UTC))

	// submitter2 already submitted the June report and is not reminded about it
	f.submit(t, f.submitter2, dueSoon.ID)
	// submitter was asked to revise the May narrative and is still pending
	sub := f.submit(t, f.submitter, overdue.ID)
	f.transition(t, sub.ID, models.StatusNeedsRevision)

	reminders := NewReminderService(f.db, f.ledger, f.notifier, time.UTC, 72*time.Hour)
	reminders.now = func() time.Time { return now }

	result, err := reminders.Run(f.ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := ReminderResult{Reports: 2, DueSoon: 1, Overdue: 2, Skipped: 0}
	if result != want {
		t.Fatalf("Run() = %+v, want %+v", result, want)
	}
	if n := f.countNotifications(t, f.submitter.ID, EventDueSoon); n != 1 {
		t.Fatalf("due soon notifications = %d", n)
	}
	if n := f.countNotifications(t, f.submitter2.ID, EventDueSoon); n != 0 {
		t.Fatalf("submitted user reminded: %d", n)
	}
	if n := f.countNotifications(t, f.submitter.ID, EventOverdue); n != 1 {
		t.Fatalf("overdue notifications = %d", n)
	}

	var note models.Notification
	f.db.Where("user_id = ? AND event = ?", f.submitter.ID, string(EventOverdue)).First(&note)
	if note.Type != models.NotificationError {
		t.Fatalf("overdue type = %q", note.Type)
	}

	again, err := reminders.Run(f.ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if again.DueSoon != 0 || again.Overdue != 0 || again.Skipped != 3 {
		t.Fatalf("second Run() = %+v", again)
	}
}
