// Package event delivers identity lifecycle events to the outbound
// message channel. Delivery is at-least-once: a publish is attempted
// exactly once per call, failures surface to the caller, and consumers
// must tolerate duplicates from caller-side retries.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"signon.org/internal/obs"
)

// Publisher delivers a serialized event to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RedisPublisher publishes events on Redis channels.
type RedisPublisher struct {
	client *redis.Client
	logger *log.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher constructs a publisher over a connected client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: obs.Logger(),
	}
}

// Publish serializes the payload and attempts one delivery. It never
// retries internally; the caller decides what a failed publish means for
// the surrounding operation.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		p.log(map[string]any{
			"level": "error",
			"msg":   "event publish failed",
			"topic": topic,
			"error": err.Error(),
		})
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log(map[string]any{
		"level": "info",
		"msg":   "event published",
		"topic": topic,
	})
	return nil
}

func (p *RedisPublisher) log(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	p.logger.Println(string(data))
}
