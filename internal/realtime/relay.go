package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis Pub/Sub channel shared by instances.
const DefaultRelayChannel = "ridecore:events"

// RedisRelay shares events between instances. Send publishes to Redis;
// Run feeds every received event, including this instance's own, into the
// local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

var _ Sink = (*RedisRelay)(nil)

// NewRedisRelay creates a new RedisRelay.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
	}
}

// Name implements Sink.
func (r *RedisRelay) Name() string { return "redis-relay" }

// Send publishes event on the relay channel.
func (r *RedisRelay) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the relay channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("[REALTIME] relay subscribed to %s", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[REALTIME] relay dropped malformed message: %v", err)
				continue
			}
			_ = r.hub.Send(ctx, event)
		}
	}
}
