// Package realtime owns the dashboard's push connection. One Channel per
// process: it dials lazily, reconnects with backoff, and fans inbound events
// out to subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

var ErrStreamClosed = errors.New("stream closed")

// Message is one inbound event.
type Message struct {
	Event   string
	Payload json.RawMessage
}

// Transport opens streams to the push source.
type Transport interface {
	Name() string
	Dial(ctx context.Context) (Stream, error)
}

// Stream yields messages until it fails or is closed.
type Stream interface {
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Handler receives the raw payload of a subscribed event.
type Handler func(payload json.RawMessage)

// StatusSink receives connection state changes. The store implements it.
type StatusSink interface {
	SetConnection(domain.ConnectionStatus)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id     uint64
	event  string
	fn     Handler
	active atomic.Bool
}

func (s *Subscription) Event() string { return s.event }

type Channel struct {
	transport Transport
	backoff   Backoff
	sink      StatusSink
	log       logger.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[string][]*Subscription
	nextID   uint64
	status   domain.ConnectionStatus
}

func NewChannel(t Transport, b Backoff, sink StatusSink, log logger.Logger) *Channel {
	return &Channel{
		transport: t,
		backoff:   b,
		sink:      sink,
		log:       log.WithFields(logger.LogFields{"transport": t.Name()}),
		handlers:  make(map[string][]*Subscription),
		status:    domain.ConnectionStatus{State: domain.ConnIdle},
	}
}

// Connect starts the connection loop. Calls after the first are no-ops,
// so any component may call it before subscribing.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Subscribe registers fn for event. Several handlers per event are allowed;
// they run in registration order.
func (c *Channel) Subscribe(event string, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	sub := &Subscription{id: c.nextID, event: event, fn: fn}
	sub.active.Store(true)
	c.handlers[event] = append(c.handlers[event], sub)
	return sub
}

// Unsubscribe removes exactly sub. It reports false when sub was already released.
func (c *Channel) Unsubscribe(sub *Subscription) bool {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.handlers[sub.event]
	for i, s := range list {
		if s.id == sub.id {
			c.handlers[sub.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(c.handlers[sub.event]) == 0 {
		delete(c.handlers, sub.event)
	}
	return true
}

// HandlerCount reports live subscriptions for event.
func (c *Channel) HandlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

func (c *Channel) Status() domain.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close stops the loop and waits for it. Only process teardown should call it.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Channel) setStatus(state domain.ConnState, attempts int, err error) {
	st := domain.ConnectionStatus{State: state, Attempts: attempts}
	if err != nil {
		st.LastError = err.Error()
	}
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
	if c.sink != nil {
		c.sink.SetConnection(st)
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	attempt := 0

	for {
		if attempt == 0 {
			c.setStatus(domain.ConnConnecting, 0, nil)
		}
		stream, err := c.transport.Dial(ctx)
		if err == nil {
			attempt = 0
			c.setStatus(domain.ConnConnected, 0, nil)
			c.log.Info("realtime_connected", "Realtime channel connected")
			err = c.pump(ctx, stream)
		}
		if ctx.Err() != nil {
			c.setStatus(domain.ConnClosed, attempt, nil)
			c.log.Info("realtime_closed", "Realtime channel closed")
			return
		}

		attempt++
		c.setStatus(domain.ConnReconnecting, attempt, err)
		delay := c.backoff.Next(attempt)
		c.log.WithFields(logger.LogFields{"attempt": attempt, "delay": delay.String()}).
			Error("realtime_connection_lost", fmt.Errorf("realtime connection failed: %w", err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setStatus(domain.ConnClosed, attempt, nil)
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) pump(ctx context.Context, stream Stream) error {
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer func() {
		stop()
		stream.Close()
	}()

	for {
		msg, err := stream.Receive(ctx)
		if err != nil {
			return err
		}
		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg Message) {
	c.mu.Lock()
	subs := append([]*Subscription(nil), c.handlers[msg.Event]...)
	c.mu.Unlock()

	if len(subs) == 0 {
		c.log.WithFields(logger.LogFields{"event": msg.Event}).Debug("realtime_unhandled", "No subscribers for event")
		return
	}
	for _, sub := range subs {
		if sub.active.Load() {
			c.invoke(sub, msg)
		}
	}
}

// invoke isolates handler panics so one bad subscriber cannot kill the reader.
func (c *Channel) invoke(sub *Subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logger.LogFields{"event": msg.Event}).
				Error("realtime_handler_panic", fmt.Errorf("handler panicked: %v", r))
		}
	}()
	sub.fn(msg.Payload)
}
