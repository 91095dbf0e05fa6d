package services

import "time"

// DueStatus classifies a due date against the current time.
type DueStatus string

const (
	DueOnTime  DueStatus = "OnTime"
	DueToday   DueStatus = "DueToday"
	DueOverdue DueStatus = "Overdue"
)

// ComputeDueStatus returns Overdue once now is past dueDate, DueToday when
// now falls on the due date's calendar day (in dueDate's location) and
// OnTime otherwise.
func ComputeDueStatus(dueDate, now time.Time) DueStatus {
	if now.After(dueDate) {
		return DueOverdue
	}
	local := now.In(dueDate.Location())
	y1, m1, d1 := local.Date()
	y2, m2, d2 := dueDate.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return DueToday
	}
	return DueOnTime
}
