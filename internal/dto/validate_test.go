package dto

import (
	"errors"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	req := ReportRequest{Type: "Weekly", PeriodMonth: 6, PeriodYear: 2024, DueDate: "2024-06-05"}
	err := Validate(&req)
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Validate() error = %v, want validation kind", err)
	}
	if !strings.HasPrefix(err.Error(), "type must be one of") {
		t.Fatalf("Validate() message = %q", err.Error())
	}

	req.Type = "Narrative"
	req.PeriodMonth = 13
	if err := Validate(&req); err == nil || !strings.Contains(err.Error(), "period_month") {
		t.Fatalf("Validate() month error = %v", err)
	}

	req.PeriodMonth = 6
	if err := Validate(&req); err != nil {
		t.Fatalf("Validate() valid request error = %v", err)
	}
}

func TestValidateRegister(t *testing.T) {
	err := Validate(&RegisterRequest{Email: "not-an-email", Password: "password123"})
	if err == nil || err.Error() != "email must be a valid email address" {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := Validate(&RegisterRequest{Email: "a@b.co", Password: "short"}); err == nil {
		t.Fatalf("Validate() expected password length error")
	}
}
