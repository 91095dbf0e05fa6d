package messaging

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

func TestSubjectIsPerRecipient(t *testing.T) {
	id := uuid.MustParse("7d3b1a52-3a6f-4b55-9d0b-2f6f1e1c9a10")
	got := Subject("nutrition", &models.Notification{UserID: id})
	if got != "nutrition.notifications.7d3b1a52-3a6f-4b55-9d0b-2f6f1e1c9a10" {
		t.Fatalf("Subject() = %q", got)
	}
}

func TestNewPublisherDefaultsPrefix(t *testing.T) {
	if p := NewPublisher(nil, ""); p.prefix != "nutrition" {
		t.Fatalf("prefix = %q", p.prefix)
	}
}
