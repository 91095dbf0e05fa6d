package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

// EventKind names a workflow event; it is stored on each notification.
type EventKind string

const (
	EventReportCreated     EventKind = "report_created"
	EventReportUpdated     EventKind = "report_updated"
	EventSubmissionCreated EventKind = "submission_created"
	EventAttachmentAdded   EventKind = "attachment_added"
	EventStatusChanged     EventKind = "status_changed"
	EventFeedbackPosted    EventKind = "feedback_posted"
	EventDueSoon           EventKind = "due_soon"
	EventOverdue           EventKind = "overdue"
)

var eventTypes = map[EventKind]string{
	EventReportCreated:     models.NotificationReport,
	EventReportUpdated:     models.NotificationReport,
	EventSubmissionCreated: models.NotificationFileUpdate,
	EventAttachmentAdded:   models.NotificationFileUpdate,
	EventStatusChanged:     models.NotificationStatusUpdate,
	EventFeedbackPosted:    models.NotificationFeedback,
	EventDueSoon:           models.NotificationWarning,
	EventOverdue:           models.NotificationError,
}

// Audience is who receives an event: every user of a role, or explicit users.
// Exactly one of Role and Users is set.
type Audience struct {
	Role  string
	Users []uuid.UUID
}

func RoleAudience(role string) Audience { return Audience{Role: role} }

func UserAudience(ids ...uuid.UUID) Audience { return Audience{Users: ids} }

// Event is a fan-out request. Build it with one of the constructors below so
// the audience follows the event kind.
type Event struct {
	Kind       EventKind
	Actor      identity.Actor
	Report     *models.ReportDefinition
	Submission *models.Submission
	Status     models.SubmissionStatus
	Audience   Audience
}

func ReportCreated(actor identity.Actor, r *models.ReportDefinition) Event {
	return Event{Kind: EventReportCreated, Actor: actor, Report: r, Audience: RoleAudience(models.RoleSubmitter)}
}

func ReportUpdated(actor identity.Actor, r *models.ReportDefinition) Event {
	return Event{Kind: EventReportUpdated, Actor: actor, Report: r, Audience: RoleAudience(models.RoleSubmitter)}
}

func SubmissionCreated(actor identity.Actor, r *models.ReportDefinition, s *models.Submission) Event {
	return Event{Kind: EventSubmissionCreated, Actor: actor, Report: r, Submission: s, Audience: RoleAudience(models.RoleReviewer)}
}

func AttachmentAdded(actor identity.Actor, r *models.ReportDefinition, s *models.Submission) Event {
	return Event{Kind: EventAttachmentAdded, Actor: actor, Report: r, Submission: s, Audience: RoleAudience(models.RoleReviewer)}
}

func StatusChanged(actor identity.Actor, r *models.ReportDefinition, s *models.Submission) Event {
	return Event{Kind: EventStatusChanged, Actor: actor, Report: r, Submission: s, Status: s.Status, Audience: UserAudience(s.UserID)}
}

// FeedbackPosted goes to the counterpart of the author: reviewers write to the
// submission owner (or every submitter for report-level feedback), submitters
// write to the reviewer pool.
func FeedbackPosted(actor identity.Actor, r *models.ReportDefinition, s *models.Submission) Event {
	ev := Event{Kind: EventFeedbackPosted, Actor: actor, Report: r, Submission: s}
	switch {
	case !actor.IsReviewer():
		ev.Audience = RoleAudience(models.RoleReviewer)
	case s != nil:
		ev.Audience = UserAudience(s.UserID)
	default:
		ev.Audience = RoleAudience(models.RoleSubmitter)
	}
	return ev
}

// DueReminder targets one submitter; kind is EventDueSoon or EventOverdue.
func DueReminder(kind EventKind, r *models.ReportDefinition, userID uuid.UUID) Event {
	return Event{Kind: kind, Actor: identity.System, Report: r, Audience: UserAudience(userID)}
}

// Publisher pushes committed notifications to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *models.Notification) error { return nil }

// Notifier turns events into one Notification row per recipient.
type Notifier struct {
	db        *gorm.DB
	uow       *database.UnitOfWork
	publisher Publisher
}

func NewNotifier(db *gorm.DB, publisher Publisher) *Notifier {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Notifier{db: db, uow: database.NewUnitOfWork(db), publisher: publisher}
}

// FanOut persists the notifications for ev and returns them. It is best
// effort: failures are logged and never returned. Inside a transaction it
// runs in a savepoint so a failed fan-out leaves the caller's writes intact.
func (n *Notifier) FanOut(ctx context.Context, ev Event) []models.Notification {
	var created []models.Notification
	err := n.uow.WithTx(ctx, func(ctx context.Context) error {
		recipients, err := n.recipients(ctx, ev)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			slog.Warn("notification fan-out has no recipients",
				"action", "fan_out", "event", string(ev.Kind), "report_id", reportIDOf(ev))
			return nil
		}

		rows, err := buildNotifications(ev, recipients)
		if err != nil {
			return err
		}
		if err := database.Conn(ctx, n.db).CreateInBatches(&rows, 100).Error; err != nil {
			return errs.Wrap(err, "insert notifications")
		}
		created = rows
		return nil
	})
	if err != nil {
		slog.Error("notification fan-out failed",
			"action", "fan_out", "event", string(ev.Kind), "report_id", reportIDOf(ev),
			"error", errs.Loggable(errs.Dependency(err, "fan-out")))
		return nil
	}
	return created
}

// Publish forwards committed notifications to the publisher. Call it only
// after the transaction that created them has committed.
func (n *Notifier) Publish(ctx context.Context, notes []models.Notification) {
	for i := range notes {
		if err := n.publisher.Publish(ctx, &notes[i]); err != nil {
			slog.Warn("notification publish failed",
				"action", "publish", "user_id", notes[i].UserID.String(), "error", errs.Loggable(err))
		}
	}
}

func (n *Notifier) recipients(ctx context.Context, ev Event) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	switch {
	case ev.Audience.Role != "":
		err := database.Conn(ctx, n.db).Model(&models.User{}).
			Where("role = ?", ev.Audience.Role).
			Order("created_at ASC").
			Pluck("id", &ids).Error
		if err != nil {
			return nil, errs.Wrap(err, "resolve role audience")
		}
	default:
		ids = ev.Audience.Users
	}

	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || id == ev.Actor.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

type notificationData struct {
	Event        EventKind  `json:"event"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	ActorName    string     `json:"actor_name"`
	ReportID     uuid.UUID  `json:"report_id"`
	ReportType   string     `json:"report_type"`
	PeriodMonth  int        `json:"period_month"`
	PeriodYear   int        `json:"period_year"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	Status       string     `json:"status,omitempty"`
}

func buildNotifications(ev Event, recipients []uuid.UUID) ([]models.Notification, error) {
	if ev.Report == nil {
		return nil, fmt.Errorf("event %s has no report", ev.Kind)
	}
	title, message := render(ev)

	data := notificationData{
		Event:       ev.Kind,
		ActorName:   ev.Actor.Name,
		ReportID:    ev.Report.ID,
		ReportType:  string(ev.Report.Type),
		PeriodMonth: ev.Report.PeriodMonth,
		PeriodYear:  ev.Report.PeriodYear,
		Status:      string(ev.Status),
	}
	if ev.Actor.ID != uuid.Nil {
		id := ev.Actor.ID
		data.ActorID = &id
	}
	var subID *uuid.UUID
	if ev.Submission != nil {
		id := ev.Submission.ID
		subID = &id
		data.SubmissionID = &id
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	reportID := ev.Report.ID
	rows := make([]models.Notification, 0, len(recipients))
	for _, uid := range recipients {
		rows = append(rows, models.Notification{
			UserID:       uid,
			Title:        title,
			Message:      message,
			Type:         eventTypes[ev.Kind],
			Event:        string(ev.Kind),
			ReportID:     &reportID,
			SubmissionID: subID,
			Data:         datatypes.JSON(raw),
		})
	}
	return rows, nil
}

func render(ev Event) (string, string) {
	actor := ev.Actor.Name
	if actor == "" {
		actor = "Someone"
	}
	label := ev.Report.Type.Label()
	period := ev.Report.PeriodLabel()
	due := ev.Report.DueDate.Format("January 2, 2006")

	switch ev.Kind {
	case EventReportCreated:
		return "New report request", fmt.Sprintf("%s requested the %s for %s, due %s.", actor, label, period, due)
	case EventReportUpdated:
		return "Report request updated", fmt.Sprintf("%s updated the %s for %s, now due %s.", actor, label, period, due)
	case EventSubmissionCreated:
		return "New submission", fmt.Sprintf("%s submitted the %s for %s.", actor, label, period)
	case EventAttachmentAdded:
		return "Files added", fmt.Sprintf("%s added files to the %s for %s.", actor, label, period)
	case EventStatusChanged:
		return "Submission status updated", fmt.Sprintf("%s marked your %s for %s as %s.", actor, label, period, ev.Status.Label())
	case EventFeedbackPosted:
		return "New feedback", fmt.Sprintf("%s commented on the %s for %s.", actor, label, period)
	case EventDueSoon:
		return "Report due soon", fmt.Sprintf("The %s for %s is due on %s.", label, period, due)
	case EventOverdue:
		return "Report overdue", fmt.Sprintf("The %s for %s was due on %s.", label, period, due)
	}
	return label, period
}

func reportIDOf(ev Event) string {
	if ev.Report == nil {
		return ""
	}
	return ev.Report.ID.String()
}
