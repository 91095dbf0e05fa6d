package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/config"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/testutil"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := database.Open(config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("Open() expected error for unknown driver")
	}
}

func TestOpenCreatesSQLiteDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "dir", "db.sqlite")
	db, err := database.Open(config.DBConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close(db)

	if err := database.Ping(db); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestUnitOfWorkCommitAndRollback(t *testing.T) {
	db := testutil.NewDB(t)
	uow := database.NewUnitOfWork(db)
	ctx := context.Background()

	err := uow.WithTx(ctx, func(ctx context.Context) error {
		return database.Conn(ctx, db).Create(&models.User{Email: "kept@example.com", Password: "x", Role: models.RoleSubmitter}).Error
	})
	if err != nil {
		t.Fatalf("WithTx() commit error = %v", err)
	}

	boom := errors.New("boom")
	err = uow.WithTx(ctx, func(ctx context.Context) error {
		if err := database.Conn(ctx, db).Create(&models.User{Email: "dropped@example.com", Password: "x", Role: models.RoleSubmitter}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Fatalf("users = %d, want 1", count)
	}
}

func TestNestedUnitOfWorkUsesSavepoint(t *testing.T) {
	db := testutil.NewDB(t)
	uow := database.NewUnitOfWork(db)
	ctx := context.Background()

	err := uow.WithTx(ctx, func(ctx context.Context) error {
		if err := database.Conn(ctx, db).Create(&models.User{Email: "outer@example.com", Password: "x", Role: models.RoleReviewer}).Error; err != nil {
			return err
		}
		inner := uow.WithTx(ctx, func(ctx context.Context) error {
			if err := database.Conn(ctx, db).Create(&models.User{Email: "inner@example.com", Password: "x", Role: models.RoleReviewer}).Error; err != nil {
				return err
			}
			return errors.New("inner failed")
		})
		if inner == nil {
			t.Fatalf("inner WithTx() expected error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer WithTx() error = %v", err)
	}

	var users []models.User
	if err := db.Order("email").Find(&users).Error; err != nil {
		t.Fatalf("find users: %v", err)
	}
	if len(users) != 1 || users[0].Email != "outer@example.com" {
		t.Fatalf("users = %+v", users)
	}

	var missing models.User
	if err := db.Where("email = ?", "inner@example.com").First(&missing).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("inner user lookup error = %v", err)
	}
}
