package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel shared by every API instance
const Channel = "chamahub:events"

const publishTimeout = 2 * time.Second

// RedisRelay publishes events to Redis and feeds events from every
// instance into the local hub
type RedisRelay struct {
	rdb redis.UniversalClient
	hub *Hub
}

// NewRedisRelay creates a relay in front of hub
func NewRedisRelay(rdb redis.UniversalClient, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub}
}

// Publish sends events to every instance, this one included.
// Delivery is best effort: failures are logged and dropped.
func (r *RedisRelay) Publish(ctx context.Context, events ...domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("❌ Encode event %s: %v", ev.Type, err)
			continue
		}
		if err := r.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
			log.Printf("⚠️ Publish event %s to %s failed: %v", ev.Type, ev.Room, err)
			continue
		}
		metrics.ObserveEvent(ev.Type)
	}
}

// Run subscribes to the channel and broadcasts received events until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("✅ Event relay subscribed to %s", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("⚠️ Dropping malformed event: %v", err)
				continue
			}
			r.hub.Broadcast(ev)
		}
	}
}
