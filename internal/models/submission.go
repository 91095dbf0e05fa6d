package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	StatusSubmitted     SubmissionStatus = "Submitted"
	StatusNeedsRevision SubmissionStatus = "NeedsRevision"
	StatusCompleted     SubmissionStatus = "Completed"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusNeedsRevision, StatusCompleted:
		return true
	}
	return false
}

// Label is the human form used in notification text.
func (s SubmissionStatus) Label() string {
	if s == StatusNeedsRevision {
		return "Needs Revision"
	}
	return string(s)
}

// Submission is one attempt by a user at a report. Rows are never updated;
// Attempt orders the attempts of a (report, user) pair starting at 1.
type Submission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_attempt,priority:1" json:"report_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_attempt,priority:2;index" json:"user_id"`
	Attempt   int       `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:3" json:"attempt"`
	CreatedAt time.Time `json:"created_at"`

	// Projection of the status log, filled by the ledger.
	Status        SubmissionStatus `gorm:"-" json:"status"`
	StatusVersion int              `gorm:"-" json:"status_version"`

	Attachments []Attachment `gorm:"foreignKey:SubmissionID" json:"attachments,omitempty"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SubmissionStatusEvent is one entry of a submission's append-only status log.
// The entry with the highest Seq is the submission's current status.
type SubmissionStatusEvent struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_status_event_seq,priority:1" json:"submission_id"`
	Seq          int              `gorm:"not null;uniqueIndex:idx_status_event_seq,priority:2" json:"seq"`
	Status       SubmissionStatus `gorm:"size:20;not null;index" json:"status"`
	ChangedBy    uuid.UUID        `gorm:"type:uuid;not null" json:"changed_by"`
	Note         string           `gorm:"size:1000" json:"note,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (SubmissionStatusEvent) TableName() string {
	return "submission_status_events"
}

func (e *SubmissionStatusEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type Attachment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	FilePath     string    `gorm:"size:512;not null" json:"-"`
	FileType     string    `gorm:"size:255;not null" json:"file_type"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	Size         int64     `gorm:"not null;default:0" json:"size"`
	UploadedBy   uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
