package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamPublisher forwards dispatched events onto a durable redis stream for
// external consumers. The stream append happens after the owning transition
// has committed, so consumers may see an event more than once but never for
// an uncommitted change.
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamPublisher creates the publisher.
func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, logger: logger}
}

// RegisterHandlers subscribes the publisher to every lifecycle event type.
func (p *StreamPublisher) RegisterHandlers(dispatcher Dispatcher) {
	if dispatcher == nil || p.client == nil {
		return
	}
	for _, eventType := range []EventType{
		EventIdentityCreated,
		EventIdentityActivated,
		EventIdentityLocked,
		EventIdentityUnlocked,
		EventIdentityExpired,
		EventIdentityDestroyed,
	} {
		dispatcher.Subscribe(eventType, p.handle)
	}
}

func (p *StreamPublisher) handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id": event.ID,
			"type":     string(event.Type),
			"body":     payload,
		},
	}).Err()
	if err != nil {
		p.logger.Error("publish event to stream",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
	return err
}
