package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"fleet-dashboard/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeDashboard carries dashboard events under routing keys "dashboard.<event>".
	ExchangeDashboard = "dashboard_topic"
	RoutingPrefix     = "dashboard."

	dialTimeout = 10 * time.Second
)

// Connection is one AMQP connection with a single consumer channel.
// Reconnection is the caller's job: once NotifyClose fires the Connection is spent.
type Connection struct {
	logger      logger.Logger
	conn        *amqp.Connection
	ch          *amqp.Channel
	notifyClose chan *amqp.Error
	mu          sync.Mutex
	closed      bool
}

// Dial opens a connection and a channel and declares the dashboard topology.
func Dial(dsn string, log logger.Logger) (*Connection, error) {
	conn, err := amqp.DialConfig(dsn, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	c := &Connection{
		logger:      log,
		conn:        conn,
		ch:          ch,
		notifyClose: make(chan *amqp.Error, 1),
	}
	conn.NotifyClose(c.notifyClose)

	if err := c.setupTopology(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ topology: %w", err)
	}
	log.Info("rabbitmq_connect", "Connection and consumer channel established")
	return c, nil
}

func (c *Connection) setupTopology() error {
	if err := c.ch.ExchangeDeclare(ExchangeDashboard, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeDashboard, err)
	}
	return nil
}

// Bind declares a private queue bound to routingKey and starts consuming it.
// Deliveries are auto-acked: dashboard events are snapshots, a lost one is superseded by the next.
func (c *Connection) Bind(routingKey string) (<-chan amqp.Delivery, error) {
	q, err := c.ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, routingKey, ExchangeDashboard, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue %s to %s: %w", q.Name, ExchangeDashboard, err)
	}
	msgs, err := c.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.WithFields(logger.LogFields{"queue": q.Name, "routing_key": routingKey}).Info("rabbitmq_bind", "Consumer bound")
	return msgs, nil
}

// NotifyClose yields once when the server or network drops the connection.
func (c *Connection) NotifyClose() <-chan *amqp.Error {
	return c.notifyClose
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("rabbitmq_close", "Closing RabbitMQ connection")

	if c.ch != nil {
		c.ch.Close()
	}
	return c.conn.Close()
}
