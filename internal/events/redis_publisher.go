package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher mirrors every dispatched event onto a Redis pub/sub channel
// so out-of-process consumers (mailers, webhooks, dashboards) can follow the
// ticket stream without coupling to this service.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher constructs the publisher.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Handle serializes and publishes one event. Publish failures are logged and
// dropped; the in-process dispatch already succeeded and external delivery is
// best effort.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("publish event to redis",
			zap.String("event_id", event.ID),
			zap.String("channel", p.channel),
			zap.Error(err))
	}
	return nil
}

// Register attaches the publisher to every event type on the dispatcher.
func (p *RedisPublisher) Register(dispatcher Dispatcher) {
	for _, eventType := range []EventType{
		EventTicketCreated,
		EventTicketUpdated,
		EventTicketStatusChanged,
		EventTicketPriorityChanged,
		EventTicketAssigned,
		EventTicketCommentAdded,
		EventTicketEscalated,
		EventTicketReopened,
	} {
		dispatcher.Subscribe(eventType, p.Handle)
	}
}
