package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisChannelPrefix namespaces dashboard events on Redis pub/sub.
const RedisChannelPrefix = "dashboard."

// RedisTransport listens on Redis pub/sub channels "dashboard.<event>".
type RedisTransport struct {
	Options *redis.Options
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Dial(ctx context.Context) (Stream, error) {
	client := redis.NewClient(t.Options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	ps := client.PSubscribe(ctx, RedisChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		client.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &redisStream{client: client, ps: ps}, nil
}

type redisStream struct {
	client *redis.Client
	ps     *redis.PubSub
}

func (s *redisStream) Receive(ctx context.Context) (Message, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ErrStreamClosed
		}
		return Message{}, fmt.Errorf("redis receive: %w", err)
	}
	return Message{
		Event:   strings.TrimPrefix(msg.Channel, RedisChannelPrefix),
		Payload: []byte(msg.Payload),
	}, nil
}

func (s *redisStream) Close() error {
	s.ps.Close()
	return s.client.Close()
}
