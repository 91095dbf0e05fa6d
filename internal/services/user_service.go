package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/database"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/errs"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/identity"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

type NewUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// List returns users, optionally only those of one role.
func (s *UserService) List(ctx context.Context, role string) ([]models.User, error) {
	q := database.Conn(ctx, s.db).Model(&models.User{})
	if role != "" {
		if !models.ValidRole(role) {
			return nil, invalidInput("role must be reviewer or submitter")
		}
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Order("last_name ASC, first_name ASC, email ASC").Find(&users).Error; err != nil {
		return nil, errs.Wrap(err, "list users")
	}
	return users, nil
}

// Create lets a reviewer open an account of either role.
func (s *UserService) Create(ctx context.Context, actor identity.Actor, in NewUserInput) (*models.User, error) {
	if !actor.IsReviewer() {
		return nil, ErrReviewerOnly
	}
	return createUser(ctx, s.db, in.Email, in.Password, in.FirstName, in.LastName, in.Role)
}
