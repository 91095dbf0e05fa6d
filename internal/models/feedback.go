package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Feedback is an append-only comment on a report, optionally about one submission.
type Feedback struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_feedback_seq,priority:1" json:"report_id"`
	Seq          int        `gorm:"not null;uniqueIndex:idx_feedback_seq,priority:2" json:"seq"`
	SubmissionID *uuid.UUID `gorm:"type:uuid;index" json:"submission_id,omitempty"`
	AuthorUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"author_user_id"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time  `json:"created_at"`
	Author       *User      `gorm:"foreignKey:AuthorUserID" json:"author,omitempty"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
