package logging_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/logging"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/testutil"
)

func TestDBHandlerPersistsErrorsOnly(t *testing.T) {
	db := testutil.NewDB(t)
	h := logging.NewDBHandler(db, time.Hour)
	logger := slog.New(h).With("request_id", "req-1")

	logger.Info("ignored")
	logger.Error("transition failed",
		"action", "transition_status",
		"report_id", "r-1",
		"error", errs.Loggable(errors.New("boom")),
		"attempt", 2,
	)
	h.Stop()

	var rows []models.SystemLog
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find logs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	got := rows[0]
	if got.Level != "ERROR" || got.Message != "transition failed" {
		t.Fatalf("row = %+v", got)
	}
	if got.RequestID != "req-1" || got.Action != "transition_status" || got.Error != "boom" {
		t.Fatalf("columns not mapped: %+v", got)
	}
	if got.ReportID == nil || *got.ReportID != "r-1" {
		t.Fatalf("ReportID = %v", got.ReportID)
	}
	if len(got.Extra) == 0 {
		t.Fatalf("extra attrs dropped")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := logging.NewDBHandler(testutil.NewDB(t), time.Hour)
	h.Stop()
	h.Stop()
}

func TestPurgeLogs(t *testing.T) {
	db := testutil.NewDB(t)
	old := models.SystemLog{Timestamp: time.Now().UTC().Add(-48 * time.Hour), Level: "ERROR", Message: "old"}
	fresh := models.SystemLog{Timestamp: time.Now().UTC(), Level: "ERROR", Message: "fresh"}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&fresh).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := logging.PurgeLogs(context.Background(), db, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeLogs() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}

	var left int64
	db.Model(&models.SystemLog{}).Count(&left)
	if left != 1 {
		t.Fatalf("remaining = %d", left)
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	a, b := &countHandler{}, &countHandler{level: slog.LevelError}
	logger := slog.New(logging.NewMultiHandler(a, b))
	logger.Info("one")
	logger.Error("two")
	if a.n != 2 || b.n != 1 {
		t.Fatalf("counts = %d, %d", a.n, b.n)
	}
}

type countHandler struct {
	level slog.Level
	n     int
}

func (h *countHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *countHandler) Handle(context.Context, slog.Record) error { h.n++; return nil }
func (h *countHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countHandler) WithGroup(string) slog.Handler { return h }
