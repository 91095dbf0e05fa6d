package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types as rendered by the client.
const (
	NotificationActivity     = "activity"
	NotificationReport       = "report"
	NotificationEvent        = "event"
	NotificationInfo         = "info"
	NotificationWarning      = "warning"
	NotificationError        = "error"
	NotificationFeedback     = "Feedback"
	NotificationStatusUpdate = "Status Update"
	NotificationFileUpdate   = "File Update"
)

type Notification struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_notification_user_read,priority:1" json:"user_id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Message      string         `gorm:"type:text;not null" json:"message"`
	Type         string         `gorm:"size:30;not null" json:"type"`
	Event        string         `gorm:"size:40;not null;index" json:"event"`
	ReportID     *uuid.UUID     `gorm:"type:uuid;index" json:"report_id,omitempty"`
	SubmissionID *uuid.UUID     `gorm:"type:uuid" json:"submission_id,omitempty"`
	Data         datatypes.JSON `json:"data,omitempty"`
	Read         bool           `gorm:"not null;default:false;index:idx_notification_user_read,priority:2" json:"read"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// ReminderDelivery records that a due-date reminder of Kind went out, so the
// scheduled job sends each reminder once.
type ReminderDelivery struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_once,priority:1" json:"report_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_once,priority:2" json:"user_id"`
	Kind      string    `gorm:"size:20;not null;uniqueIndex:idx_reminder_once,priority:3" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReminderDelivery) TableName() string {
	return "reminder_deliveries"
}

func (d *ReminderDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
