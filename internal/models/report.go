package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportType string

const (
	ReportMonthlyAccomplishment ReportType = "MonthlyAccomplishment"
	ReportNarrative             ReportType = "Narrative"
	ReportWorkActivitySchedule  ReportType = "WorkActivitySchedule"
	ReportOther                 ReportType = "Other"
)

var reportTypeLabels = map[ReportType]string{
	ReportMonthlyAccomplishment: "Monthly Accomplishment Report",
	ReportNarrative:             "Narrative Report",
	ReportWorkActivitySchedule:  "Work Activity Schedule",
	ReportOther:                 "Report",
}

func (t ReportType) Valid() bool {
	_, ok := reportTypeLabels[t]
	return ok
}

func (t ReportType) Label() string {
	if label, ok := reportTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// ReportDefinition is a reviewer's request for one periodic report.
// (type, month, year) is unique.
type ReportDefinition struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Type         ReportType `gorm:"size:40;not null;uniqueIndex:idx_report_period,priority:1" json:"type"`
	PeriodMonth  int        `gorm:"not null;uniqueIndex:idx_report_period,priority:2" json:"period_month"`
	PeriodYear   int        `gorm:"not null;uniqueIndex:idx_report_period,priority:3" json:"period_year"`
	DueDate      time.Time  `gorm:"not null;index" json:"due_date"`
	Instructions string     `gorm:"type:text" json:"instructions,omitempty"`
	IssuedBy     uuid.UUID  `gorm:"type:uuid;not null;index" json:"issued_by"`
	Archived     bool       `gorm:"not null;default:false;index" json:"archived"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Issuer       *User      `gorm:"foreignKey:IssuedBy" json:"issuer,omitempty"`
}

func (ReportDefinition) TableName() string {
	return "report_definitions"
}

func (r *ReportDefinition) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PeriodLabel renders the period as e.g. "June 2024".
func (r *ReportDefinition) PeriodLabel() string {
	if r.PeriodMonth < 1 || r.PeriodMonth > 12 {
		return fmt.Sprintf("%d", r.PeriodYear)
	}
	return fmt.Sprintf("%s %d", time.Month(r.PeriodMonth).String(), r.PeriodYear)
}
