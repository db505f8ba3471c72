package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"

	"github.com/inkroom/inkroom/bus"
)

// RedisRoomBus relays room envelopes between gateway instances over Redis
// Pub/Sub. Each instance gets a unique origin id at construction; envelopes
// bounce back to every subscriber, so Subscribe drops the ones this
// instance published itself.
type RedisRoomBus struct {
	client redis.UniversalClient
	origin string
}

func NewRedisRoomBus(ctx context.Context, devMode bool, redisEndpoint string) (*RedisRoomBus, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// Managed redis endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisRoomBus{
		client: client,
		origin: uuid.Must(uuid.NewV4()).String(),
	}, nil
}

func channelFor(topic string) string {
	return "room:" + topic
}

func (b *RedisRoomBus) Publish(ctx context.Context, topic string, env bus.Envelope) error {
	env.Origin = b.origin
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelFor(topic), payload).Err()
}

func (b *RedisRoomBus) Subscribe(ctx context.Context, topic string, handler bus.Handler) error {
	pubsub := b.client.Subscribe(ctx, channelFor(topic))
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channelFor(topic))
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env bus.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("Dropping undecodable room envelope: %v", err)
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				handler(env)
			}
		}
	}()

	return nil
}
