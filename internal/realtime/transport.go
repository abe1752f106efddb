package realtime

import (
	"fmt"

	"fleet-dashboard/pkg/config"
	"fleet-dashboard/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// NewTransport picks the transport named by cfg.Realtime.Transport.
func NewTransport(cfg *config.Config, log logger.Logger) (Transport, error) {
	switch cfg.Realtime.Transport {
	case "", "websocket":
		return &WebsocketTransport{URL: cfg.Realtime.URL, Token: cfg.Realtime.HandshakeToken, Log: log}, nil
	case "amqp":
		return &AMQPTransport{DSN: cfg.RabbitMQURL(), Log: log}, nil
	case "redis":
		return &RedisTransport{Options: &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}}, nil
	}
	return nil, fmt.Errorf("unknown realtime transport %q", cfg.Realtime.Transport)
}

// BackoffFromConfig builds the reconnect policy.
func BackoffFromConfig(cfg *config.Config) Backoff {
	return Backoff{
		Base:   cfg.Realtime.BackoffBase,
		Max:    cfg.Realtime.BackoffMax,
		Factor: cfg.Realtime.BackoffFactor,
	}
}
