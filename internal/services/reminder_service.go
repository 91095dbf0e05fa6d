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
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

var errAlreadyReminded = errors.New("reminder already delivered")

// ReminderResult summarises one reminder pass.
type ReminderResult struct {
	Reports int `json:"reports"`
	DueSoon int `json:"due_soon"`
	Overdue int `json:"overdue"`
	Skipped int `json:"skipped"`
}

// ReminderService warns submitters about reports that are due soon or
// overdue. Each (report, user, kind) reminder is delivered once.
type ReminderService struct {
	db       *gorm.DB
	uow      *database.UnitOfWork
	ledger   *Ledger
	notifier *Notifier
	loc      *time.Location
	leadTime time.Duration
	now      func() time.Time
}

func NewReminderService(db *gorm.DB, ledger *Ledger, notifier *Notifier, loc *time.Location, leadTime time.Duration) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		db:       db,
		uow:      database.NewUnitOfWork(db),
		ledger:   ledger,
		notifier: notifier,
		loc:      loc,
		leadTime: leadTime,
		now:      time.Now,
	}
}

// Run sends the reminders that are due as of now. Submitters whose latest
// submission is Submitted or Completed are not reminded.
func (s *ReminderService) Run(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	now := s.now()

	var reports []models.ReportDefinition
	if err := database.Conn(ctx, s.db).Where("archived = ?", false).Order("due_date ASC").Find(&reports).Error; err != nil {
		return result, errs.Wrap(err, "load active reports")
	}

	var submitters []uuid.UUID
	if err := database.Conn(ctx, s.db).Model(&models.User{}).
		Where("role = ?", models.RoleSubmitter).
		Pluck("id", &submitters).Error; err != nil {
		return result, errs.Wrap(err, "load submitters")
	}

	for i := range reports {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		report := &reports[i]

		kind, ok := s.reminderKind(report, now)
		if !ok {
			continue
		}
		result.Reports++

		pending, err := s.pendingSubmitters(ctx, report.ID, submitters)
		if err != nil {
			return result, err
		}
		for _, userID := range pending {
			sent, err := s.remind(ctx, kind, report, userID)
			if err != nil {
				slog.Error("reminder delivery failed",
					"action", "remind", "report_id", report.ID.String(), "user_id", userID.String(), "error", errs.Loggable(err))
				continue
			}
			switch {
			case !sent:
				result.Skipped++
			case kind == EventOverdue:
				result.Overdue++
			default:
				result.DueSoon++
			}
		}
	}

	slog.Info("reminder pass finished",
		"action", "remind", "reports", result.Reports, "due_soon", result.DueSoon, "overdue", result.Overdue, "skipped", result.Skipped)
	return result, nil
}

func (s *ReminderService) reminderKind(report *models.ReportDefinition, now time.Time) (EventKind, bool) {
	due := report.DueDate.In(s.loc)
	switch ComputeDueStatus(due, now) {
	case DueOverdue:
		return EventOverdue, true
	case DueToday:
		return EventDueSoon, true
	}
	if due.Sub(now) <= s.leadTime {
		return EventDueSoon, true
	}
	return "", false
}

// pendingSubmitters are the submitters without a submission or whose latest
// one needs revision.
func (s *ReminderService) pendingSubmitters(ctx context.Context, reportID uuid.UUID, submitters []uuid.UUID) ([]uuid.UUID, error) {
	latest, err := s.ledger.LatestForReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	status := make(map[uuid.UUID]models.SubmissionStatus, len(latest))
	for _, sub := range latest {
		status[sub.UserID] = sub.Status
	}

	out := make([]uuid.UUID, 0, len(submitters))
	for _, id := range submitters {
		st, ok := status[id]
		if !ok || st == models.StatusNeedsRevision {
			out = append(out, id)
		}
	}
	return out, nil
}

// remind records the delivery and fans out in one transaction. It returns
// false when the reminder had already been delivered.
func (s *ReminderService) remind(ctx context.Context, kind EventKind, report *models.ReportDefinition, userID uuid.UUID) (bool, error) {
	var notes []models.Notification
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		delivery := models.ReminderDelivery{ReportID: report.ID, UserID: userID, Kind: string(kind)}
		if err := database.Conn(ctx, s.db).Create(&delivery).Error; err != nil {
			if isDuplicateKey(err) {
				return errAlreadyReminded
			}
			return errs.Wrap(err, "record reminder")
		}
		notes = s.notifier.FanOut(ctx, DueReminder(kind, report, userID))
		return nil
	})
	if errors.Is(err, errAlreadyReminded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.notifier.Publish(ctx, notes)
	return true, nil
}
