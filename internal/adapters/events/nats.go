package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/nats-io/nats.go"
)

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NatsPublisher sends completion events to a NATS subject as JSON. The
// transaction id goes in the Nats-Msg-Id header so JetStream streams can
// drop redeliveries.
type NatsPublisher struct {
	conn    msgPublisher
	subject string
}

func NewNatsPublisher(conn msgPublisher, subject string) *NatsPublisher {
	return &NatsPublisher{conn: conn, subject: subject}
}

func (p *NatsPublisher) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, event.TransactionID.String())
	msg.Header.Set("Vpos-Event", "transaction.completed")
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Handler adapts the publisher for Bus.Subscribe.
func (p *NatsPublisher) Handler() Handler {
	return p.Publish
}

// ConnectNats dials NATS with reconnects enabled and connection state logged.
func ConnectNats(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
