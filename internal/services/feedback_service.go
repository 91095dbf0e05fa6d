package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

const (
	maxFeedbackLength   = 5000
	feedbackSeqAttempts = 5
)

// FeedbackEntry is a thread entry flagged for the viewer.
type FeedbackEntry struct {
	models.Feedback
	Mine bool `json:"mine"`
}

// FeedbackService keeps the append-only comment thread of each report.
type FeedbackService struct {
	db       *gorm.DB
	uow      *database.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
}

func NewFeedbackService(db *gorm.DB, ledger *Ledger, notifier *Notifier) *FeedbackService {
	return &FeedbackService{db: db, uow: database.NewUnitOfWork(db), ledger: ledger, notifier: notifier}
}

// Post appends an entry to the report's thread. Submitters may only point at
// their own submissions. Concurrent posts that pick the same sequence number
// are retried.
func (s *FeedbackService) Post(ctx context.Context, actor identity.Actor, reportID uuid.UUID, submissionID *uuid.UUID, content string) (*models.Feedback, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > maxFeedbackLength {
		return nil, invalidInput("feedback content is too long")
	}

	var (
		entry *models.Feedback
		notes []models.Notification
		err   error
	)
	for attempt := 0; attempt < feedbackSeqAttempts; attempt++ {
		entry, notes, err = s.post(ctx, actor, reportID, submissionID, content)
		if !errors.Is(err, errSeqTaken) {
			break
		}
		slog.Debug("feedback sequence taken, retrying", "report_id", reportID.String(), "attempt", attempt+1)
	}
	if errors.Is(err, errSeqTaken) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	return entry, nil
}

var errSeqTaken = errors.New("feedback sequence taken")

func (s *FeedbackService) post(ctx context.Context, actor identity.Actor, reportID uuid.UUID, submissionID *uuid.UUID, content string) (*models.Feedback, []models.Notification, error) {
	var (
		entry *models.Feedback
		notes []models.Notification
	)
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		report, err := loadReport(ctx, s.db, reportID)
		if err != nil {
			return err
		}

		var sub *models.Submission
		if submissionID != nil {
			sub, err = s.ledger.ByID(ctx, *submissionID)
			if err != nil {
				return err
			}
			if sub.ReportID != reportID {
				return ErrSubmissionNotFound
			}
			if !actor.IsReviewer() && sub.UserID != actor.ID {
				return ErrNotOwner
			}
		}

		conn := database.Conn(ctx, s.db)
		var last int
		if err := conn.Model(&models.Feedback{}).
			Where("report_id = ?", reportID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return errs.Wrap(err, "allocate feedback sequence")
		}

		entry = &models.Feedback{
			ReportID:     reportID,
			Seq:          last + 1,
			SubmissionID: submissionID,
			AuthorUserID: actor.ID,
			Content:      content,
		}
		if err := conn.Omit("Author").Create(entry).Error; err != nil {
			if isDuplicateKey(err) {
				return errSeqTaken
			}
			return errs.Wrap(err, "create feedback")
		}

		notes = s.notifier.FanOut(ctx, FeedbackPosted(actor, report, sub))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, notes, nil
}

// Thread returns the report's entries in insertion order. With submissionID
// set only that submission's entries are returned. Submitters never see
// entries about other submitters' submissions.
func (s *FeedbackService) Thread(ctx context.Context, viewer identity.Actor, reportID uuid.UUID, submissionID *uuid.UUID) ([]FeedbackEntry, error) {
	if _, err := loadReport(ctx, s.db, reportID); err != nil {
		return nil, err
	}

	conn := database.Conn(ctx, s.db)
	q := conn.Preload("Author").Where("report_id = ?", reportID)
	if submissionID != nil {
		q = q.Where("submission_id = ?", *submissionID)
	}
	if !viewer.IsReviewer() {
		own := conn.Model(&models.Submission{}).Select("id").Where("user_id = ?", viewer.ID)
		q = q.Where("(submission_id IS NULL OR author_user_id = ? OR submission_id IN (?))", viewer.ID, own)
	}

	var rows []models.Feedback
	if err := q.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "load feedback thread")
	}

	out := make([]FeedbackEntry, len(rows))
	for i, f := range rows {
		out[i] = FeedbackEntry{Feedback: f, Mine: f.AuthorUserID == viewer.ID}
	}
	return out, nil
}
