package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cli.sqlite")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("NATS_URL", "")
	return dsn
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := Execute(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestMigrateSeedsFirstReviewer(t *testing.T) {
	dsn := setupEnv(t)
	t.Setenv("SEED_REVIEWER_EMAIL", "Office@Example.com")
	t.Setenv("SEED_REVIEWER_PASSWORD", "password123")

	if out := run(t, "migrate"); !strings.Contains(out, "up to date") {
		t.Fatalf("output = %q", out)
	}
	// A second run must not create another reviewer.
	run(t, "migrate")

	db, err := database.Open(config.DBConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close(db)

	var reviewers []models.User
	if err := db.Where("role = ?", models.RoleReviewer).Find(&reviewers).Error; err != nil {
		t.Fatalf("find reviewers: %v", err)
	}
	if len(reviewers) != 1 || reviewers[0].Email != "office@example.com" {
		t.Fatalf("reviewers = %+v", reviewers)
	}
}

func TestRemindWithNothingDue(t *testing.T) {
	setupEnv(t)
	out := run(t, "remind")
	if !strings.Contains(out, "reports=0") {
		t.Fatalf("output = %q", out)
	}
}
