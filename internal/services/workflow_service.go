package services

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
)

// FileUpload is one incoming attachment.
type FileUpload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// WorkflowService owns the submission state machine:
// NoSubmission -> Submitted -> NeedsRevision | Completed, and from
// NeedsRevision a new attempt back to Submitted.
type WorkflowService struct {
	db       *gorm.DB
	uow      *database.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
	blobs    storage.BlobStore
}

func NewWorkflowService(db *gorm.DB, ledger *Ledger, notifier *Notifier, blobs storage.BlobStore) *WorkflowService {
	return &WorkflowService{
		db:       db,
		uow:      database.NewUnitOfWork(db),
		ledger:   ledger,
		notifier: notifier,
		blobs:    blobs,
	}
}

// CreateSubmission records a new attempt by actor with its files and notifies
// the reviewers. It is allowed when actor has no attempt yet or the latest
// one needs revision.
func (s *WorkflowService) CreateSubmission(ctx context.Context, actor identity.Actor, reportID uuid.UUID, files []FileUpload) (*models.Submission, error) {
	if len(files) == 0 {
		return nil, ErrAttachmentRequired
	}
	if !actor.IsSubmitter() {
		return nil, ErrSubmitterOnly
	}

	// Fail fast before any blob is written.
	report, err := loadReport(ctx, s.db, reportID)
	if err != nil {
		return nil, err
	}
	if report.Archived {
		return nil, ErrReportArchived
	}

	stored, err := s.storeFiles(ctx, actor, files)
	if err != nil {
		return nil, err
	}

	var (
		sub   *models.Submission
		notes []models.Notification
	)
	err = s.uow.WithTx(ctx, func(ctx context.Context) error {
		report, err := loadReport(ctx, s.db, reportID)
		if err != nil {
			return err
		}
		if report.Archived {
			return ErrReportArchived
		}

		attempt := 1
		latest, err := s.ledger.Latest(ctx, reportID, actor.ID)
		switch {
		case errors.Is(err, ErrNoSubmission):
		case err != nil:
			return err
		case latest.Status != models.StatusNeedsRevision:
			return ErrSubmissionPending
		default:
			attempt = latest.Attempt + 1
		}

		sub, err = s.ledger.create(ctx, reportID, actor.ID, attempt)
		if err != nil {
			return err
		}
		for i := range stored {
			stored[i].SubmissionID = sub.ID
		}
		if err := s.ledger.addAttachments(ctx, stored); err != nil {
			return err
		}
		sub.Attachments = stored

		notes = s.notifier.FanOut(ctx, SubmissionCreated(actor, report, sub))
		return nil
	})
	if err != nil {
		s.discardBlobs(ctx, stored)
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	slog.Info("submission created",
		"action", "create_submission", "report_id", reportID.String(),
		"submission_id", sub.ID.String(), "user_id", actor.ID.String(), "attempt", sub.Attempt)
	return sub, nil
}

// AddAttachments appends files to the owner's latest submission while it is
// still under review. Existing attachments are never replaced.
func (s *WorkflowService) AddAttachments(ctx context.Context, actor identity.Actor, submissionID uuid.UUID, files []FileUpload) ([]models.Attachment, error) {
	if len(files) == 0 {
		return nil, ErrAttachmentRequired
	}

	sub, err := s.ledger.ByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != actor.ID {
		return nil, ErrNotOwner
	}

	stored, err := s.storeFiles(ctx, actor, files)
	if err != nil {
		return nil, err
	}

	var notes []models.Notification
	err = s.uow.WithTx(ctx, func(ctx context.Context) error {
		report, err := loadReport(ctx, s.db, sub.ReportID)
		if err != nil {
			return err
		}
		if report.Archived {
			return ErrReportArchived
		}
		latest, err := s.ledger.Latest(ctx, sub.ReportID, sub.UserID)
		if err != nil {
			return err
		}
		if latest.ID != sub.ID {
			return ErrNotLatestAttempt
		}
		if latest.Status != models.StatusSubmitted {
			return ErrSubmissionClosed
		}

		for i := range stored {
			stored[i].SubmissionID = sub.ID
		}
		if err := s.ledger.addAttachments(ctx, stored); err != nil {
			return err
		}

		notes = s.notifier.FanOut(ctx, AttachmentAdded(actor, report, latest))
		return nil
	})
	if err != nil {
		s.discardBlobs(ctx, stored)
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	return stored, nil
}

// TransitionStatus moves a submission to NeedsRevision or Completed. Only the
// latest attempt of its (report, user) pair may move. Setting the current
// status again succeeds without writing anything.
func (s *WorkflowService) TransitionStatus(ctx context.Context, actor identity.Actor, submissionID uuid.UUID, status models.SubmissionStatus, note string) (*models.Submission, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	if status != models.StatusNeedsRevision && status != models.StatusCompleted {
		return nil, ErrInvalidTargetStatus
	}

	var (
		sub   *models.Submission
		notes []models.Notification
	)
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.ledger.ByID(ctx, submissionID)
		if err != nil {
			return err
		}
		latest, err := s.ledger.Latest(ctx, sub.ReportID, sub.UserID)
		if err != nil {
			return err
		}
		if latest.ID != sub.ID {
			return ErrNotLatestAttempt
		}
		if sub.Status == status {
			return nil
		}

		report, err := loadReport(ctx, s.db, sub.ReportID)
		if err != nil {
			return err
		}
		if err := s.ledger.appendStatus(ctx, sub, status, actor.ID, note); err != nil {
			return err
		}

		notes = s.notifier.FanOut(ctx, StatusChanged(actor, report, sub))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	return sub, nil
}

// TransitionLatest is TransitionStatus addressed by (report, user).
func (s *WorkflowService) TransitionLatest(ctx context.Context, actor identity.Actor, reportID, userID uuid.UUID, status models.SubmissionStatus, note string) (*models.Submission, error) {
	latest, err := s.ledger.Latest(ctx, reportID, userID)
	if err != nil {
		return nil, err
	}
	return s.TransitionStatus(ctx, actor, latest.ID, status, note)
}

// GetSubmission returns a submission the actor may see: reviewers see all,
// submitters only their own.
func (s *WorkflowService) GetSubmission(ctx context.Context, actor identity.Actor, submissionID uuid.UUID) (*models.Submission, []models.SubmissionStatusEvent, error) {
	sub, err := s.ledger.ByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsReviewer() && sub.UserID != actor.ID {
		return nil, nil, ErrNotOwner
	}
	events, err := s.ledger.StatusLog(ctx, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	return sub, events, nil
}

// History lists the actor's attempts at a report.
func (s *WorkflowService) History(ctx context.Context, actor identity.Actor, reportID uuid.UUID) ([]models.Submission, error) {
	if _, err := loadReport(ctx, s.db, reportID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, reportID, actor.ID)
}

// LatestForReport lists the latest attempt of every submitter for a report.
func (s *WorkflowService) LatestForReport(ctx context.Context, actor identity.Actor, reportID uuid.UUID) ([]models.Submission, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	if _, err := loadReport(ctx, s.db, reportID); err != nil {
		return nil, err
	}
	return s.ledger.LatestForReport(ctx, reportID)
}

// OpenAttachment streams an attachment the actor may see.
func (s *WorkflowService) OpenAttachment(ctx context.Context, actor identity.Actor, attachmentID uuid.UUID) (*models.Attachment, io.ReadCloser, error) {
	att, sub, err := s.ledger.Attachment(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsReviewer() && sub.UserID != actor.ID {
		return nil, nil, ErrNotOwner
	}

	rc, err := s.blobs.Retrieve(ctx, att.FilePath)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, nil, errs.Dependency(err, "retrieve attachment")
	}
	return att, rc, nil
}

// storeFiles writes every upload to the blob store and returns unsaved
// attachment rows. On failure the blobs written so far are removed.
func (s *WorkflowService) storeFiles(ctx context.Context, actor identity.Actor, files []FileUpload) ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		if f.Reader == nil || f.Name == "" {
			s.discardBlobs(ctx, out)
			return nil, invalidInput("every attachment needs a file name and content")
		}

		mime, r, err := storage.Sniff(f.Reader)
		if err != nil {
			s.discardBlobs(ctx, out)
			return nil, errs.Wrap(err, "read upload")
		}
		counted := &countingReader{r: r}
		path, err := s.blobs.Store(ctx, f.Name, counted)
		if err != nil {
			s.discardBlobs(ctx, out)
			return nil, errs.Dependency(err, "store attachment")
		}

		out = append(out, models.Attachment{
			FilePath:   path,
			FileType:   mime,
			FileName:   f.Name,
			Size:       counted.n,
			UploadedBy: actor.ID,
		})
	}
	return out, nil
}

func (s *WorkflowService) discardBlobs(ctx context.Context, atts []models.Attachment) {
	for _, a := range atts {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), a.FilePath); err != nil {
			slog.Warn("failed to remove orphaned blob", "action", "discard_blob", "path", a.FilePath, "error", errs.Loggable(err))
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func loadReport(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.ReportDefinition, error) {
	var report models.ReportDefinition
	err := database.Conn(ctx, db).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err, "load report")
	}
	return &report, nil
}
