package services

import (
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/testutil"
)

func TestCreateSubmissionRequiresAttachment(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)

	_, err := f.workflow.CreateSubmission(f.ctx, f.submitter, report.ID, nil)
	if !errors.Is(err, ErrAttachmentRequired) || !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("CreateSubmission() error = %v, want ErrAttachmentRequired", err)
	}

	var count int64
	f.db.Model(&models.Submission{}).Count(&count)
	if count != 0 {
		t.Fatalf("submissions = %d, want 0", count)
	}
}

func TestCreateSubmissionNotifiesEveryReviewer(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	published := f.pub.count()

	sub := f.submit(t, f.submitter, report.ID)
	if sub.Status != models.StatusSubmitted || sub.Attempt != 1 {
		t.Fatalf("submission = status %s attempt %d", sub.Status, sub.Attempt)
	}
	if len(sub.Attachments) != 1 || sub.Attachments[0].FileType != "application/pdf" {
		t.Fatalf("attachments = %+v", sub.Attachments)
	}

	var notes []models.Notification
	if err := f.db.Where("event = ?", string(EventSubmissionCreated)).Find(&notes).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notes))
	}
	for _, n := range notes {
		if n.Read || n.Type != models.NotificationFileUpdate {
			t.Fatalf("notification = %+v", n)
		}
		if n.UserID != f.reviewer.ID && n.UserID != f.reviewer2.ID {
			t.Fatalf("notification sent to non-reviewer %s", n.UserID)
		}
		if n.SubmissionID == nil || *n.SubmissionID != sub.ID {
			t.Fatalf("notification submission = %v", n.SubmissionID)
		}
	}
	if got := f.pub.count() - published; got != 2 {
		t.Fatalf("published = %d, want 2", got)
	}
}

func TestCreateSubmissionOnlyAfterRevisionRequest(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	first := f.submit(t, f.submitter, report.ID)

	_, err := f.workflow.CreateSubmission(f.ctx, f.submitter, report.ID, []FileUpload{pdfUpload("again.pdf")})
	if !errors.Is(err, ErrSubmissionPending) || !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("CreateSubmission() while pending error = %v", err)
	}

	f.transition(t, first.ID, models.StatusNeedsRevision)
	second := f.submit(t, f.submitter, report.ID)
	if second.Attempt != 2 || second.Status != models.StatusSubmitted {
		t.Fatalf("resubmission = attempt %d status %s", second.Attempt, second.Status)
	}

	f.transition(t, second.ID, models.StatusCompleted)
	if _, err := f.workflow.CreateSubmission(f.ctx, f.submitter, report.ID, []FileUpload{pdfUpload("late.pdf")}); !errors.Is(err, ErrSubmissionPending) {
		t.Fatalf("CreateSubmission() after completion error = %v", err)
	}
}

func TestCreateSubmissionRejectsReviewerAndArchivedReport(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)

	if _, err := f.workflow.CreateSubmission(f.ctx, f.reviewer, report.ID, []FileUpload{pdfUpload("a.pdf")}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("reviewer CreateSubmission() error = %v", err)
	}
	if _, err := f.workflow.CreateSubmission(f.ctx, f.submitter, uuid.New(), []FileUpload{pdfUpload("a.pdf")}); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("unknown report error = %v", err)
	}

	if _, err := f.reports.Archive(f.ctx, f.reviewer, report.ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := f.workflow.CreateSubmission(f.ctx, f.submitter, report.ID, []FileUpload{pdfUpload("a.pdf")}); !errors.Is(err, ErrReportArchived) {
		t.Fatalf("archived CreateSubmission() error = %v", err)
	}
}

func TestLatestSubmissionIsHighestAttempt(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)

	var last *models.Submission
	for i := 0; i < 3; i++ {
		last = f.submit(t, f.submitter, report.ID)
		if i < 2 {
			f.transition(t, last.ID, models.StatusNeedsRevision)
		}
	}

	latest, err := f.ledger.Latest(f.ctx, report.ID, f.submitter.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != last.ID || latest.Attempt != 3 {
		t.Fatalf("Latest() = %s attempt %d, want %s attempt 3", latest.ID, latest.Attempt, last.ID)
	}

	history, err := f.ledger.History(f.ctx, report.ID, f.submitter.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 || history[0].Status != models.StatusNeedsRevision || history[2].Status != models.StatusSubmitted {
		t.Fatalf("History() = %+v", history)
	}

	if _, err := f.ledger.Latest(f.ctx, report.ID, f.submitter2.ID); !errors.Is(err, ErrNoSubmission) {
		t.Fatalf("Latest() without submission error = %v", err)
	}
}

func TestTransitionStatusTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)

	for i := 0; i < 2; i++ {
		got := f.transition(t, sub.ID, models.StatusCompleted)
		if got.Status != models.StatusCompleted {
			t.Fatalf("call %d status = %s", i+1, got.Status)
		}
	}

	events, err := f.ledger.StatusLog(f.ctx, sub.ID)
	if err != nil {
		t.Fatalf("StatusLog() error = %v", err)
	}
	if len(events) != 2 || events[1].Seq != 2 || events[1].ChangedBy != f.reviewer.ID {
		t.Fatalf("status log = %+v", events)
	}
	if n := f.countNotifications(t, f.submitter.ID, EventStatusChanged); n != 1 {
		t.Fatalf("status notifications = %d, want 1", n)
	}

	// reviewers may move between NeedsRevision and Completed freely
	if got := f.transition(t, sub.ID, models.StatusNeedsRevision); got.Status != models.StatusNeedsRevision {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestTransitionStatusRejections(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	first := f.submit(t, f.submitter, report.ID)

	if _, err := f.workflow.TransitionStatus(f.ctx, f.reviewer, first.ID, models.StatusSubmitted, ""); !errors.Is(err, ErrInvalidTargetStatus) {
		t.Fatalf("Submitted target error = %v", err)
	}
	if _, err := f.workflow.TransitionStatus(f.ctx, f.submitter, first.ID, models.StatusCompleted, ""); !errors.Is(err, ErrReviewerOnly) {
		t.Fatalf("submitter transition error = %v", err)
	}
	if _, err := f.workflow.TransitionStatus(f.ctx, f.reviewer, uuid.New(), models.StatusCompleted, ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown submission error = %v", err)
	}

	f.transition(t, first.ID, models.StatusNeedsRevision)
	f.submit(t, f.submitter, report.ID)
	if _, err := f.workflow.TransitionStatus(f.ctx, f.reviewer, first.ID, models.StatusCompleted, ""); !errors.Is(err, ErrNotLatestAttempt) {
		t.Fatalf("old attempt transition error = %v", err)
	}
}

func TestTransitionLatestByReportAndUser(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)

	got, err := f.workflow.TransitionLatest(f.ctx, f.reviewer, report.ID, f.submitter.ID, models.StatusCompleted, "looks good")
	if err != nil {
		t.Fatalf("TransitionLatest() error = %v", err)
	}
	if got.ID != sub.ID || got.Status != models.StatusCompleted {
		t.Fatalf("TransitionLatest() = %+v", got)
	}

	if _, err := f.workflow.TransitionLatest(f.ctx, f.reviewer, report.ID, f.submitter2.ID, models.StatusCompleted, ""); !errors.Is(err, ErrNoSubmission) {
		t.Fatalf("TransitionLatest() without submission error = %v", err)
	}
}

func TestCountByStatusUsesLatestAttemptOnly(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	testutil.CreateUser(t, f.db, "bns3@example.com", models.RoleSubmitter) // never submits

	// submitter: Submitted -> NeedsRevision, then a second attempt Completed
	a1 := f.submit(t, f.submitter, report.ID)
	f.transition(t, a1.ID, models.StatusNeedsRevision)
	a2 := f.submit(t, f.submitter, report.ID)
	f.transition(t, a2.ID, models.StatusCompleted)

	// submitter2: a single attempt that needs revision
	b1 := f.submit(t, f.submitter2, report.ID)
	f.transition(t, b1.ID, models.StatusNeedsRevision)

	counts, err := f.ledger.CountByStatus(f.ctx, CountFilter{ReportID: &report.ID})
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	want := StatusCounts{Submitted: 0, NeedsRevision: 1, Completed: 1, Total: 2}
	if counts != want {
		t.Fatalf("CountByStatus() = %+v, want %+v", counts, want)
	}

	byPeriod, err := f.ledger.CountByStatus(f.ctx, CountFilter{Month: 6, Year: 2024})
	if err != nil {
		t.Fatalf("CountByStatus(period) error = %v", err)
	}
	if byPeriod != want {
		t.Fatalf("CountByStatus(period) = %+v", byPeriod)
	}

	none, err := f.ledger.CountByStatus(f.ctx, CountFilter{Type: models.ReportNarrative})
	if err != nil {
		t.Fatalf("CountByStatus(type) error = %v", err)
	}
	if none.Total != 0 {
		t.Fatalf("CountByStatus(type) = %+v", none)
	}

	if _, err := f.reports.Archive(f.ctx, f.reviewer, report.ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	hidden, _ := f.ledger.CountByStatus(f.ctx, CountFilter{})
	all, _ := f.ledger.CountByStatus(f.ctx, CountFilter{IncludeArchived: true})
	if hidden.Total != 0 || all.Total != 2 {
		t.Fatalf("archived counts = %+v / %+v", hidden, all)
	}
}

func TestAddAttachmentsAppendsRows(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)
	original := sub.Attachments[0]

	added, err := f.workflow.AddAttachments(f.ctx, f.submitter, sub.ID, []FileUpload{pdfUpload("annex.pdf"), pdfUpload("photos.pdf")})
	if err != nil {
		t.Fatalf("AddAttachments() error = %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("AddAttachments() = %d rows", len(added))
	}

	reloaded, err := f.ledger.ByID(f.ctx, sub.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if len(reloaded.Attachments) != 3 {
		t.Fatalf("attachments = %d, want 3", len(reloaded.Attachments))
	}
	var kept bool
	for _, a := range reloaded.Attachments {
		if a.ID == original.ID && a.FilePath == original.FilePath && a.FileName == original.FileName {
			kept = true
		}
	}
	if !kept {
		t.Fatalf("original attachment changed: %+v", reloaded.Attachments)
	}
	if n := f.countNotifications(t, f.reviewer.ID, EventAttachmentAdded); n != 1 {
		t.Fatalf("attachment notifications = %d", n)
	}

	if _, err := f.workflow.AddAttachments(f.ctx, f.submitter2, sub.ID, []FileUpload{pdfUpload("x.pdf")}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign AddAttachments() error = %v", err)
	}
	f.transition(t, sub.ID, models.StatusCompleted)
	if _, err := f.workflow.AddAttachments(f.ctx, f.submitter, sub.ID, []FileUpload{pdfUpload("x.pdf")}); !errors.Is(err, ErrSubmissionClosed) {
		t.Fatalf("closed AddAttachments() error = %v", err)
	}
}

func TestOpenAttachmentChecksOwnership(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)
	sub := f.submit(t, f.submitter, report.ID)
	attID := sub.Attachments[0].ID

	att, rc, err := f.workflow.OpenAttachment(f.ctx, f.reviewer, attID)
	if err != nil {
		t.Fatalf("OpenAttachment() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if att.FileName != "report.pdf" || string(body) != "%PDF-1.4\nreport.pdf\n" {
		t.Fatalf("OpenAttachment() = %s %q", att.FileName, body)
	}

	if _, _, err := f.workflow.OpenAttachment(f.ctx, f.submitter2, attID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign OpenAttachment() error = %v", err)
	}
}

func TestFanOutFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	report := f.juneReport(t)

	if err := f.db.Migrator().DropTable(&models.Notification{}); err != nil {
		t.Fatalf("drop notifications: %v", err)
	}

	sub := f.submit(t, f.submitter, report.ID)
	latest, err := f.ledger.Latest(f.ctx, report.ID, f.submitter.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != sub.ID || latest.Status != models.StatusSubmitted || len(latest.Attachments) != 1 {
		t.Fatalf("Latest() = %+v", latest)
	}
}
