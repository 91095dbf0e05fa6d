package dto

import (
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

// ReportRequest creates or edits a report definition. DueDate is RFC 3339 or
// a plain date (YYYY-MM-DD), which means the end of that day.
type ReportRequest struct {
	Type         string `json:"type" validate:"required,oneof=MonthlyAccomplishment Narrative WorkActivitySchedule Other"`
	PeriodMonth  int    `json:"period_month" validate:"required,min=1,max=12"`
	PeriodYear   int    `json:"period_year" validate:"required,min=2000,max=2100"`
	DueDate      string `json:"due_date" validate:"required"`
	Instructions string `json:"instructions" validate:"max=5000"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

type FeedbackRequest struct {
	SubmissionID *uuid.UUID `json:"submission_id"`
	Content      string     `json:"content" validate:"max=5000"`
}

type SubmissionResponse struct {
	Submission *models.Submission             `json:"submission"`
	History    []models.SubmissionStatusEvent `json:"history,omitempty"`
}

type ListResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}
