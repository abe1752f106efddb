package realtime

import (
	"context"
	"fmt"
	"strings"

	"fleet-dashboard/pkg/logger"
	"fleet-dashboard/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport consumes dashboard events from the dashboard_topic exchange.
type AMQPTransport struct {
	DSN string
	Log logger.Logger
}

func (t *AMQPTransport) Name() string { return "amqp" }

func (t *AMQPTransport) Dial(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := rabbitmq.Dial(t.DSN, t.Log)
	if err != nil {
		return nil, err
	}
	deliveries, err := conn.Bind(rabbitmq.RoutingPrefix + "#")
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &amqpStream{conn: conn, deliveries: deliveries}, nil
}

type amqpStream struct {
	conn       *rabbitmq.Connection
	deliveries <-chan amqp.Delivery
}

func (s *amqpStream) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ErrStreamClosed
	case err := <-s.conn.NotifyClose():
		if err == nil {
			return Message{}, ErrStreamClosed
		}
		return Message{}, fmt.Errorf("amqp connection closed: %w", err)
	case d, ok := <-s.deliveries:
		if !ok {
			return Message{}, fmt.Errorf("amqp delivery channel closed")
		}
		return Message{
			Event:   strings.TrimPrefix(d.RoutingKey, rabbitmq.RoutingPrefix),
			Payload: d.Body,
		}, nil
	}
}

func (s *amqpStream) Close() error {
	return s.conn.Close()
}
