package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// EventPublisher is a Redis-aware implementation of app.EventPublisher.
// Notes:
//   - It still delivers through the local broker so in-process subscribers
//     (the websocket transport) see events without a network hop.
//   - Redis PUBLISH fans the same payload out to other instances, which can
//     project it onto their own sockets.
type EventPublisher struct {
	client *redis.Client
	local  app.EventPublisher
}

func NewEventPublisher(client *redis.Client, local app.EventPublisher) *EventPublisher {
	return &EventPublisher{client: client, local: local}
}

func (p *EventPublisher) Publish(ctx context.Context, channel string, event domain.Event) error {
	if p.local != nil {
		_ = p.local.Publish(ctx, channel, event)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
