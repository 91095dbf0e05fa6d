// Package identity carries the authenticated caller through handlers and services.
package identity

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

var ErrNoActor = errors.New("no authenticated user in context")

// Actor is the trusted (user, role) pair a request acts as.
type Actor struct {
	ID   uuid.UUID
	Role string
	Name string
}

func (a Actor) IsReviewer() bool  { return a.Role == models.RoleReviewer }
func (a Actor) IsSubmitter() bool { return a.Role == models.RoleSubmitter }

// System is the actor used by scheduled jobs.
var System = Actor{Name: "System"}

// FromUser builds the actor for a loaded user row.
func FromUser(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Name: u.FullName()}
}

// GetActor reads the actor from the JWT claims stored by the auth middleware.
func GetActor(c *fiber.Ctx) (Actor, error) {
	claims, err := claimsFrom(c)
	if err != nil {
		return Actor{}, err
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Actor{}, errors.New("missing sub claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Actor{}, err
	}

	role, _ := claims["role"].(string)
	if !models.ValidRole(role) {
		return Actor{}, errors.New("missing role claim")
	}
	name, _ := claims["name"].(string)

	return Actor{ID: id, Role: role, Name: name}, nil
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	actor, err := GetActor(c)
	if err != nil {
		return uuid.Nil, err
	}
	return actor.ID, nil
}

func claimsFrom(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoActor
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
