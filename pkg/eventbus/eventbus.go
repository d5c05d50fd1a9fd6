package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event is the envelope every message on the bus carries. Data holds the
// type-specific payload, decoded by the subscriber that knows the type.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// HandlerFunc processes one decoded event.
type HandlerFunc func(ctx context.Context, event *Event) error

// Conn is the subset of the NATS connection the bus needs.
type Conn interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	Flush() error
	Drain() error
}

// Bus publishes and subscribes domain events over NATS.
type Bus struct {
	conn   Conn
	source string
	log    *zap.Logger
}

// Connect dials NATS and wraps the connection in a Bus. The source name
// identifies this service in every event it publishes.
func Connect(url, source string, log *zap.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return NewBus(nc, source, log), nil
}

// NewBus creates a bus over an established connection.
func NewBus(conn Conn, source string, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{conn: conn, source: source, log: log}
}

// Publish wraps data in an event envelope and sends it on subject.
func (b *Bus) Publish(ctx context.Context, subject, eventType string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    b.source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, subject, err)
	}

	b.log.Debug("event published",
		zap.String("subject", subject),
		zap.String("type", eventType),
		zap.String("event_id", event.ID),
	)
	return nil
}

// Subscribe registers a queue subscription on subject. Events that fail to
// decode are dropped with a log line; handler errors are logged and the
// message is not redelivered.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler HandlerFunc) error {
	_, err := b.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.log.Error("dropping undecodable event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}

		if err := handler(ctx, &event); err != nil {
			b.log.Error("event handler failed",
				zap.String("subject", msg.Subject),
				zap.String("type", event.Type),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return nil
}

// Close flushes buffered messages and drains the connection.
func (b *Bus) Close() error {
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("flush nats connection: %w", err)
	}
	return b.conn.Drain()
}
