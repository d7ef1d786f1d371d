// Package notify publishes security alerts on a NATS subject for other
// services to consume.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/khanghh/donorshield/internal/security"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(subject string, data []byte) error
}

type AlertPublisher struct {
	conn    Publisher
	subject string
}

func (p *AlertPublisher) NotifyAlert(ctx context.Context, alert security.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

func NewAlertPublisher(conn Publisher, subject string) *AlertPublisher {
	return &AlertPublisher{
		conn:    conn,
		subject: subject,
	}
}

// Connect dials the NATS server and keeps reconnecting for the lifetime of
// the process.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("donorshield"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
}
