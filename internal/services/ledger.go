package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

// Ledger is the persistence side of submissions: the immutable attempt rows,
// their status logs and attachments, plus read-side aggregation.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// StatusCounts buckets the latest submission of each (report, user) pair.
type StatusCounts struct {
	Submitted     int64 `json:"submitted"`
	NeedsRevision int64 `json:"needs_revision"`
	Completed     int64 `json:"completed"`
	Total         int64 `json:"total"`
}

// CountFilter narrows CountByStatus. Zero values match everything; archived
// reports are skipped unless IncludeArchived is set.
type CountFilter struct {
	ReportID        *uuid.UUID
	Type            models.ReportType
	Month           int
	Year            int
	IncludeArchived bool
}

// Latest returns the highest attempt of userID at reportID, or ErrNoSubmission.
func (l *Ledger) Latest(ctx context.Context, reportID, userID uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	err := database.Conn(ctx, l.db).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Order("attempt DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubmission
	}
	if err != nil {
		return nil, errs.Wrap(err, "load latest submission")
	}
	if err := l.hydrate(ctx, []*models.Submission{&sub}); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ByID loads one submission with its current status and attachments.
func (l *Ledger) ByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	err := database.Conn(ctx, l.db).Preload("User").First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err, "load submission")
	}
	if err := l.hydrate(ctx, []*models.Submission{&sub}); err != nil {
		return nil, err
	}
	return &sub, nil
}

// History returns every attempt of userID at reportID, oldest first.
func (l *Ledger) History(ctx context.Context, reportID, userID uuid.UUID) ([]models.Submission, error) {
	var subs []models.Submission
	err := database.Conn(ctx, l.db).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Order("attempt ASC").
		Find(&subs).Error
	if err != nil {
		return nil, errs.Wrap(err, "list submission history")
	}
	if err := l.hydrate(ctx, pointers(subs)); err != nil {
		return nil, err
	}
	return subs, nil
}

// LatestForReport returns the latest attempt of every user who submitted to reportID.
func (l *Ledger) LatestForReport(ctx context.Context, reportID uuid.UUID) ([]models.Submission, error) {
	conn := database.Conn(ctx, l.db)
	latest := conn.Model(&models.Submission{}).
		Select("report_id, user_id, MAX(attempt) AS attempt").
		Where("report_id = ?", reportID).
		Group("report_id, user_id")

	var subs []models.Submission
	err := conn.Table("submissions AS s").
		Select("s.*").
		Joins("JOIN (?) AS l ON l.report_id = s.report_id AND l.user_id = s.user_id AND l.attempt = s.attempt", latest).
		Order("s.created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, errs.Wrap(err, "list latest submissions")
	}
	if err := l.preloadUsers(ctx, subs); err != nil {
		return nil, err
	}
	if err := l.hydrate(ctx, pointers(subs)); err != nil {
		return nil, err
	}
	return subs, nil
}

// LatestForUser maps report id to userID's latest attempt, for the given reports.
func (l *Ledger) LatestForUser(ctx context.Context, userID uuid.UUID, reportIDs []uuid.UUID) (map[uuid.UUID]*models.Submission, error) {
	out := make(map[uuid.UUID]*models.Submission, len(reportIDs))
	if len(reportIDs) == 0 {
		return out, nil
	}

	conn := database.Conn(ctx, l.db)
	latest := conn.Model(&models.Submission{}).
		Select("report_id, user_id, MAX(attempt) AS attempt").
		Where("user_id = ? AND report_id IN ?", userID, reportIDs).
		Group("report_id, user_id")

	var subs []models.Submission
	err := conn.Table("submissions AS s").
		Select("s.*").
		Joins("JOIN (?) AS l ON l.report_id = s.report_id AND l.user_id = s.user_id AND l.attempt = s.attempt", latest).
		Find(&subs).Error
	if err != nil {
		return nil, errs.Wrap(err, "list user submissions")
	}
	if err := l.hydrate(ctx, pointers(subs)); err != nil {
		return nil, err
	}
	for i := range subs {
		out[subs[i].ReportID] = &subs[i]
	}
	return out, nil
}

// CountByStatus counts only the latest submission per distinct (report, user),
// bucketed by its current status.
func (l *Ledger) CountByStatus(ctx context.Context, f CountFilter) (StatusCounts, error) {
	conn := database.Conn(ctx, l.db)

	latestAttempts := conn.Model(&models.Submission{}).
		Select("report_id, user_id, MAX(attempt) AS attempt").
		Group("report_id, user_id")
	lastEvents := conn.Model(&models.SubmissionStatusEvent{}).
		Select("submission_id, MAX(seq) AS seq").
		Group("submission_id")

	q := conn.Table("submissions AS s").
		Select("e.status AS status, COUNT(*) AS total").
		Joins("JOIN (?) AS l ON l.report_id = s.report_id AND l.user_id = s.user_id AND l.attempt = s.attempt", latestAttempts).
		Joins("JOIN (?) AS m ON m.submission_id = s.id", lastEvents).
		Joins("JOIN submission_status_events AS e ON e.submission_id = m.submission_id AND e.seq = m.seq").
		Joins("JOIN report_definitions AS r ON r.id = s.report_id")

	if f.ReportID != nil {
		q = q.Where("s.report_id = ?", *f.ReportID)
	}
	if f.Type != "" {
		q = q.Where("r.type = ?", f.Type)
	}
	if f.Month != 0 {
		q = q.Where("r.period_month = ?", f.Month)
	}
	if f.Year != 0 {
		q = q.Where("r.period_year = ?", f.Year)
	}
	if !f.IncludeArchived {
		q = q.Where("r.archived = ?", false)
	}

	var rows []struct {
		Status string
		Total  int64
	}
	if err := q.Group("e.status").Scan(&rows).Error; err != nil {
		return StatusCounts{}, errs.Wrap(err, "count submissions by status")
	}

	var counts StatusCounts
	for _, r := range rows {
		switch models.SubmissionStatus(r.Status) {
		case models.StatusSubmitted:
			counts.Submitted = r.Total
		case models.StatusNeedsRevision:
			counts.NeedsRevision = r.Total
		case models.StatusCompleted:
			counts.Completed = r.Total
		}
		counts.Total += r.Total
	}
	return counts, nil
}

// StatusLog returns the status events of a submission in order.
func (l *Ledger) StatusLog(ctx context.Context, submissionID uuid.UUID) ([]models.SubmissionStatusEvent, error) {
	var events []models.SubmissionStatusEvent
	err := database.Conn(ctx, l.db).
		Where("submission_id = ?", submissionID).
		Order("seq ASC").
		Find(&events).Error
	if err != nil {
		return nil, errs.Wrap(err, "load status log")
	}
	return events, nil
}

// Attachment loads an attachment row together with its owning submission.
func (l *Ledger) Attachment(ctx context.Context, id uuid.UUID) (*models.Attachment, *models.Submission, error) {
	conn := database.Conn(ctx, l.db)

	var att models.Attachment
	err := conn.First(&att, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, nil, errs.Wrap(err, "load attachment")
	}

	var sub models.Submission
	if err := conn.First(&sub, "id = ?", att.SubmissionID).Error; err != nil {
		return nil, nil, errs.Wrap(err, "load attachment owner")
	}
	return &att, &sub, nil
}

// create inserts the next attempt for (reportID, userID) and opens its status
// log with Submitted. Must run inside a transaction.
func (l *Ledger) create(ctx context.Context, reportID, userID uuid.UUID, attempt int) (*models.Submission, error) {
	conn := database.Conn(ctx, l.db)

	sub := &models.Submission{
		ReportID: reportID,
		UserID:   userID,
		Attempt:  attempt,
	}
	if err := conn.Omit("Attachments", "User").Create(sub).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConcurrentUpdate
		}
		return nil, errs.Wrap(err, "create submission")
	}
	if err := l.appendStatus(ctx, sub, models.StatusSubmitted, userID, ""); err != nil {
		return nil, err
	}
	return sub, nil
}

// appendStatus adds the next event to sub's status log. A racing writer that
// took the same sequence number surfaces as ErrConcurrentUpdate.
func (l *Ledger) appendStatus(ctx context.Context, sub *models.Submission, status models.SubmissionStatus, actorID uuid.UUID, note string) error {
	event := models.SubmissionStatusEvent{
		SubmissionID: sub.ID,
		Seq:          sub.StatusVersion + 1,
		Status:       status,
		ChangedBy:    actorID,
		Note:         note,
	}
	if err := database.Conn(ctx, l.db).Create(&event).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrConcurrentUpdate
		}
		return errs.Wrap(err, "append status event")
	}
	sub.Status = status
	sub.StatusVersion = event.Seq
	return nil
}

func (l *Ledger) addAttachments(ctx context.Context, atts []models.Attachment) error {
	if len(atts) == 0 {
		return nil
	}
	if err := database.Conn(ctx, l.db).Create(&atts).Error; err != nil {
		return errs.Wrap(err, "save attachments")
	}
	return nil
}

// hydrate fills the derived status and the attachments of subs.
func (l *Ledger) hydrate(ctx context.Context, subs []*models.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(subs))
	byID := make(map[uuid.UUID]*models.Submission, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Attachments = nil
	}

	conn := database.Conn(ctx, l.db)

	var events []models.SubmissionStatusEvent
	if err := conn.Where("submission_id IN ?", ids).Order("seq ASC").Find(&events).Error; err != nil {
		return errs.Wrap(err, "load status events")
	}
	for _, e := range events {
		s := byID[e.SubmissionID]
		if e.Seq > s.StatusVersion {
			s.Status = e.Status
			s.StatusVersion = e.Seq
		}
	}

	var atts []models.Attachment
	if err := conn.Where("submission_id IN ?", ids).Order("created_at ASC").Find(&atts).Error; err != nil {
		return errs.Wrap(err, "load attachments")
	}
	for _, a := range atts {
		s := byID[a.SubmissionID]
		s.Attachments = append(s.Attachments, a)
	}
	return nil
}

func (l *Ledger) preloadUsers(ctx context.Context, subs []models.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.UserID)
	}
	var users []models.User
	if err := database.Conn(ctx, l.db).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return errs.Wrap(err, "load submitters")
	}
	byID := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range subs {
		subs[i].User = byID[subs[i].UserID]
	}
	return nil
}

func pointers(subs []models.Submission) []*models.Submission {
	out := make([]*models.Submission, len(subs))
	for i := range subs {
		out[i] = &subs[i]
	}
	return out
}
