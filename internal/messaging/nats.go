// Package messaging publishes committed notifications to NATS so live
// clients can refresh their inbox without polling.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
)

// Connect dials the NATS server with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("nutrition-reports"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Publisher sends each notification on <prefix>.notifications.<user id>.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "nutrition"
	}
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Publish(_ context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.nc.Publish(Subject(p.prefix, n), data)
}

// Subject is the per-recipient subject a notification is published on.
func Subject(prefix string, n *models.Notification) string {
	return prefix + ".notifications." + n.UserID.String()
}

// Close drains pending messages before closing the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
