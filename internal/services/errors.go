package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
)

var (
	ErrAttachmentRequired = errs.New(errs.ErrValidation, "at least one attachment is required")
	ErrEmptyContent       = errs.New(errs.ErrValidation, "feedback content must not be empty")

	ErrReportNotFound       = errs.New(errs.ErrNotFound, "report not found")
	ErrSubmissionNotFound   = errs.New(errs.ErrNotFound, "submission not found")
	ErrNoSubmission         = errs.New(errs.ErrNotFound, "no submission yet")
	ErrAttachmentNotFound   = errs.New(errs.ErrNotFound, "attachment not found")
	ErrNotificationNotFound = errs.New(errs.ErrNotFound, "notification not found")
	ErrUserNotFound         = errs.New(errs.ErrNotFound, "user not found")

	ErrDuplicateReport  = errs.New(errs.ErrConflict, "a report of this type already exists for that period")
	ErrConcurrentUpdate = errs.New(errs.ErrConflict, "submission was changed by another request, reload and retry")
	ErrEmailTaken       = errs.New(errs.ErrConflict, "email already registered")

	ErrReviewerOnly  = errs.New(errs.ErrForbidden, "reviewer role required")
	ErrSubmitterOnly = errs.New(errs.ErrForbidden, "submitter role required")
	ErrNotOwner      = errs.New(errs.ErrForbidden, "submission belongs to another user")

	ErrReportArchived      = errs.New(errs.ErrInvalidTransition, "report is archived")
	ErrSubmissionPending   = errs.New(errs.ErrInvalidTransition, "latest submission is still under review or already completed")
	ErrNotLatestAttempt    = errs.New(errs.ErrInvalidTransition, "only the latest submission can change status")
	ErrInvalidTargetStatus = errs.New(errs.ErrInvalidTransition, "status can only be set to NeedsRevision or Completed")
	ErrSubmissionClosed    = errs.New(errs.ErrInvalidTransition, "files can only be added while the submission is under review")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
)

// isDuplicateKey reports a unique index violation. TranslateError covers
// postgres; the sqlite driver only surfaces the raw message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint failed")
}

func invalidInput(msg string) error {
	return errs.New(errs.ErrValidation, msg)
}
