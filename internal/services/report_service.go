package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/storage"
)

// ReportInput is the editable part of a report definition.
type ReportInput struct {
	Type         models.ReportType
	PeriodMonth  int
	PeriodYear   int
	DueDate      time.Time
	Instructions string
}

func (in ReportInput) validate() error {
	if !in.Type.Valid() {
		return invalidInput("type must be one of MonthlyAccomplishment, Narrative, WorkActivitySchedule, Other")
	}
	if in.PeriodMonth < 1 || in.PeriodMonth > 12 {
		return invalidInput("period_month must be between 1 and 12")
	}
	if in.PeriodYear < 2000 || in.PeriodYear > 2100 {
		return invalidInput("period_year is out of range")
	}
	if in.DueDate.IsZero() {
		return invalidInput("due_date is required")
	}
	return nil
}

// ReportFilter narrows List. Archived nil means active reports only.
type ReportFilter struct {
	Type     models.ReportType
	Month    int
	Year     int
	Archived *bool
}

// UserReportView is a report as seen by one submitter.
type UserReportView struct {
	Report    models.ReportDefinition  `json:"report"`
	Latest    *models.Submission       `json:"latest_submission,omitempty"`
	Status    *models.SubmissionStatus `json:"status"`
	DueStatus DueStatus                `json:"due_status"`
}

type ReportService struct {
	db       *gorm.DB
	uow      *database.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
	blobs    storage.BlobStore
	loc      *time.Location
	now      func() time.Time
}

func NewReportService(db *gorm.DB, ledger *Ledger, notifier *Notifier, blobs storage.BlobStore, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		db:       db,
		uow:      database.NewUnitOfWork(db),
		ledger:   ledger,
		notifier: notifier,
		blobs:    blobs,
		loc:      loc,
		now:      time.Now,
	}
}

// Create issues a new report request and notifies every submitter. A second
// report of the same type and period is rejected by a pre-check and, for
// racing requests, by the unique index.
func (s *ReportService) Create(ctx context.Context, actor identity.Actor, in ReportInput) (*models.ReportDefinition, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	report := &models.ReportDefinition{
		Type:         in.Type,
		PeriodMonth:  in.PeriodMonth,
		PeriodYear:   in.PeriodYear,
		DueDate:      in.DueDate,
		Instructions: in.Instructions,
		IssuedBy:     actor.ID,
	}

	var notes []models.Notification
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		if err := s.checkDuplicate(ctx, in, uuid.Nil); err != nil {
			return err
		}
		if err := database.Conn(ctx, s.db).Omit("Issuer").Create(report).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateReport
			}
			return errs.Wrap(err, "create report")
		}
		notes = s.notifier.FanOut(ctx, ReportCreated(actor, report))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	slog.Info("report created", "action", "create_report", "report_id", report.ID.String(), "user_id", actor.ID.String())
	return report, nil
}

// Update edits type, period, due date and instructions.
func (s *ReportService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, in ReportInput) (*models.ReportDefinition, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		report *models.ReportDefinition
		notes  []models.Notification
	)
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = loadReport(ctx, s.db, id)
		if err != nil {
			return err
		}
		if err := s.checkDuplicate(ctx, in, id); err != nil {
			return err
		}

		report.Type = in.Type
		report.PeriodMonth = in.PeriodMonth
		report.PeriodYear = in.PeriodYear
		report.DueDate = in.DueDate
		report.Instructions = in.Instructions
		err = database.Conn(ctx, s.db).Model(report).Select("type", "period_month", "period_year", "due_date", "instructions").Updates(report).Error
		if err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateReport
			}
			return errs.Wrap(err, "update report")
		}
		if !report.Archived {
			notes = s.notifier.FanOut(ctx, ReportUpdated(actor, report))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notes)
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.ReportDefinition, error) {
	var report models.ReportDefinition
	err := database.Conn(ctx, s.db).Preload("Issuer").First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err, "load report")
	}
	return &report, nil
}

// List returns reports newest period first.
func (s *ReportService) List(ctx context.Context, f ReportFilter) ([]models.ReportDefinition, error) {
	q := database.Conn(ctx, s.db).Model(&models.ReportDefinition{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Month != 0 {
		q = q.Where("period_month = ?", f.Month)
	}
	if f.Year != 0 {
		q = q.Where("period_year = ?", f.Year)
	}
	archived := false
	if f.Archived != nil {
		archived = *f.Archived
	}
	q = q.Where("archived = ?", archived)

	var reports []models.ReportDefinition
	if err := q.Order("period_year DESC, period_month DESC, due_date ASC").Find(&reports).Error; err != nil {
		return nil, errs.Wrap(err, "list reports")
	}
	return reports, nil
}

// ListForUser returns active reports with the actor's latest submission and
// the due status as of now.
func (s *ReportService) ListForUser(ctx context.Context, actor identity.Actor, f ReportFilter) ([]UserReportView, error) {
	reports, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(reports))
	for i, r := range reports {
		ids[i] = r.ID
	}
	latest, err := s.ledger.LatestForUser(ctx, actor.ID, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]UserReportView, 0, len(reports))
	for _, r := range reports {
		view := UserReportView{
			Report:    r,
			DueStatus: ComputeDueStatus(r.DueDate.In(s.loc), now),
		}
		if sub, ok := latest[r.ID]; ok {
			status := sub.Status
			view.Latest = sub
			view.Status = &status
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ReportService) Archive(ctx context.Context, actor identity.Actor, id uuid.UUID) (*models.ReportDefinition, error) {
	return s.setArchived(ctx, actor, id, true)
}

func (s *ReportService) Restore(ctx context.Context, actor identity.Actor, id uuid.UUID) (*models.ReportDefinition, error) {
	return s.setArchived(ctx, actor, id, false)
}

func (s *ReportService) setArchived(ctx context.Context, actor identity.Actor, id uuid.UUID, archived bool) (*models.ReportDefinition, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	report, err := loadReport(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if report.Archived == archived {
		return report, nil
	}

	updates := map[string]interface{}{"archived": archived, "archived_at": nil}
	if archived {
		updates["archived_at"] = s.now().UTC()
	}
	if err := database.Conn(ctx, s.db).Model(report).Updates(updates).Error; err != nil {
		return nil, errs.Wrap(err, "archive report")
	}
	return loadReport(ctx, s.db, id)
}

// Delete removes a report and everything recorded against it in one
// transaction. Blob removal happens after commit and only logs failures.
func (s *ReportService) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if !actor.IsReviewer() {
		return ErrReviewerOnly
	}

	var paths []string
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		if _, err := loadReport(ctx, s.db, id); err != nil {
			return err
		}
		conn := database.Conn(ctx, s.db)

		var subIDs []uuid.UUID
		if err := conn.Model(&models.Submission{}).Where("report_id = ?", id).Pluck("id", &subIDs).Error; err != nil {
			return errs.Wrap(err, "collect submissions")
		}
		if err := conn.Model(&models.Attachment{}).Where("submission_id IN ?", subIDs).Pluck("file_path", &paths).Error; err != nil {
			return errs.Wrap(err, "collect attachment paths")
		}

		steps := []struct {
			what  string
			query *gorm.DB
			model interface{}
		}{
			{"attachments", conn.Where("submission_id IN ?", subIDs), &models.Attachment{}},
			{"status events", conn.Where("submission_id IN ?", subIDs), &models.SubmissionStatusEvent{}},
			{"feedback", conn.Where("report_id = ?", id), &models.Feedback{}},
			{"submissions", conn.Where("report_id = ?", id), &models.Submission{}},
			{"notifications", conn.Where("report_id = ?", id), &models.Notification{}},
			{"reminders", conn.Where("report_id = ?", id), &models.ReminderDelivery{}},
			{"report", conn.Where("id = ?", id), &models.ReportDefinition{}},
		}
		for _, step := range steps {
			if err := step.query.Delete(step.model).Error; err != nil {
				return errs.Wrapf(err, "delete %s", step.what)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			slog.Warn("failed to delete attachment blob", "action", "delete_report", "report_id", id.String(), "path", p, "error", errs.Loggable(err))
		}
	}
	slog.Info("report deleted", "action", "delete_report", "report_id", id.String(), "user_id", actor.ID.String(), "blobs", len(paths))
	return nil
}

func (s *ReportService) checkDuplicate(ctx context.Context, in ReportInput, except uuid.UUID) error {
	q := database.Conn(ctx, s.db).Model(&models.ReportDefinition{}).
		Where("type = ? AND period_month = ? AND period_year = ?", in.Type, in.PeriodMonth, in.PeriodYear)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errs.Wrap(err, "check duplicate report")
	}
	if count > 0 {
		return ErrDuplicateReport
	}
	return nil
}
