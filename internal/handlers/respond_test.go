package handlers

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrAttachmentRequired, fiber.StatusBadRequest},
		{fmt.Errorf("load: %w", services.ErrReportNotFound), fiber.StatusNotFound},
		{services.ErrDuplicateReport, fiber.StatusConflict},
		{services.ErrReviewerOnly, fiber.StatusForbidden},
		{services.ErrSubmissionPending, fiber.StatusConflict},
		{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{errors.New("disk on fire"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseDueDate(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	got, err := parseDueDate("2024-06-05", manila)
	if err != nil {
		t.Fatalf("parseDueDate() error = %v", err)
	}
	if want := time.Date(2024, 6, 5, 23, 59, 59, 0, manila); !got.Equal(want) {
		t.Fatalf("date only = %v, want %v", got, want)
	}

	got, err = parseDueDate("2024-06-05T17:00:00+08:00", manila)
	if err != nil {
		t.Fatalf("parseDueDate() error = %v", err)
	}
	if want := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("rfc3339 = %v, want %v", got, want)
	}

	if _, err := parseDueDate("June 5", manila); err == nil {
		t.Fatalf("parseDueDate() accepted garbage")
	}
}
