package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/nats-io/nats.go"
)

// Subjects are {prefix}.{entityType}.{entityID}; subscribers use {prefix}.> to see everything.
func subject(prefix string, event *domain.ChangeEvent) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.EntityType, event.EntityID)
}

func decodeChange(data []byte) (*domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.EntityID == "" || event.EntityType == "" {
		return nil, fmt.Errorf("invalid event: missing entity")
	}
	return &event, nil
}

type EventPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewEventPublisher(conn *nats.Conn, prefix string) *EventPublisher {
	return &EventPublisher{conn: conn, prefix: prefix}
}

func (p *EventPublisher) PublishChange(ctx context.Context, event *domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Publish(subject(p.prefix, event), payload)
}

type EventSubscriber struct {
	conn   *nats.Conn
	prefix string
	log    logger.Logger
}

func NewEventSubscriber(conn *nats.Conn, prefix string, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{conn: conn, prefix: prefix, log: log}
}

func (s *EventSubscriber) SubscribeToChanges(ctx context.Context, handler domain.EventHandler) error {
	sub, err := s.conn.Subscribe(s.prefix+".>", func(msg *nats.Msg) {
		event, err := decodeChange(msg.Data)
		if err != nil {
			s.log.Error("Failed to parse event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(event); err != nil {
			s.log.Error("Failed to handle event", "type", event.Type, "entity_id", event.EntityID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	s.log.Info("Subscribed to auction changes", "subject", s.prefix+".>")

	<-ctx.Done()
	s.log.Info("Event subscriber stopped")
	return ctx.Err()
}

func Connect(url string, log logger.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("auction-marketplace"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}
