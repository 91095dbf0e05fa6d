package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, *n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	blobs    *storage.LocalStore
	pub      *recordingPublisher
	ledger   *Ledger
	notifier *Notifier
	workflow *WorkflowService
	reports  *ReportService
	feedback *FeedbackService
	inbox    *NotificationService

	reviewer   identity.Actor
	reviewer2  identity.Actor
	submitter  identity.Actor
	submitter2 identity.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	blobs, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	f := &fixture{ctx: context.Background(), db: db, blobs: blobs, pub: &recordingPublisher{}}
	f.ledger = NewLedger(db)
	f.notifier = NewNotifier(db, f.pub)
	f.workflow = NewWorkflowService(db, f.ledger, f.notifier, blobs)
	f.reports = NewReportService(db, f.ledger, f.notifier, blobs, time.UTC)
	f.feedback = NewFeedbackService(db, f.ledger, f.notifier)
	f.inbox = NewNotificationService(db)

	f.reviewer = identity.FromUser(testutil.CreateUser(t, db, "rev1@example.com", models.RoleReviewer))
	f.reviewer2 = identity.FromUser(testutil.CreateUser(t, db, "rev2@example.com", models.RoleReviewer))
	f.submitter = identity.FromUser(testutil.CreateUser(t, db, "bns1@example.com", models.RoleSubmitter))
	f.submitter2 = identity.FromUser(testutil.CreateUser(t, db, "bns2@example.com", models.RoleSubmitter))
	return f
}

func (f *fixture) newReport(t *testing.T, typ models.ReportType, month, year int, due time.Time) *models.ReportDefinition {
	t.Helper()
	r, err := f.reports.Create(f.ctx, f.reviewer, ReportInput{
		Type:        typ,
		PeriodMonth: month,
		PeriodYear:  year,
		DueDate:     due,
	})
	if err != nil {
		t.Fatalf("Create report error = %v", err)
	}
	return r
}

func (f *fixture) juneReport(t *testing.T) *models.ReportDefinition {
	t.Helper()
	return f.newReport(t, models.ReportMonthlyAccomplishment, 6, 2024, time.Date(2024, 6, 5, 23, 59, 0, 0, time.UTC))
}

func (f *fixture) submit(t *testing.T, actor identity.Actor, reportID uuid.UUID) *models.Submission {
	t.Helper()
	sub, err := f.workflow.CreateSubmission(f.ctx, actor, reportID, []FileUpload{pdfUpload("report.pdf")})
	if err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}
	return sub
}

func (f *fixture) transition(t *testing.T, subID uuid.UUID, status models.SubmissionStatus) *models.Submission {
	t.Helper()
	sub, err := f.workflow.TransitionStatus(f.ctx, f.reviewer, subID, status, "")
	if err != nil {
		t.Fatalf("TransitionStatus(%s) error = %v", status, err)
	}
	return sub
}

func (f *fixture) countNotifications(t *testing.T, userID uuid.UUID, event EventKind) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Notification{}).Where("user_id = ? AND event = ?", userID, string(event)).Count(&n).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return n
}

func pdfUpload(name string) FileUpload {
	body := "%PDF-1.4\n" + name + "\n"
	return FileUpload{Name: name, Size: int64(len(body)), Reader: strings.NewReader(body)}
}
