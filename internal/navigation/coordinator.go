// Package navigation owns the global loading indicator and the current route.
package navigation

import (
	"context"
	"sync"
	"time"

	"fleet-dashboard/pkg/logger"
)

const DefaultLoadingMessage = "Loading..."

// LoaderState is either Idle (Busy false) or Busy with a message.
type LoaderState struct {
	Busy    bool   `json:"busy"`
	Message string `json:"message,omitempty"`
}

// Coordinator is the process-wide blocking-transition flag. Showing the loader
// while busy replaces the message; there is no nesting counter.
type Coordinator struct {
	log logger.Logger

	mu    sync.Mutex
	state LoaderState
	gen   uint64
}

func NewCoordinator(log logger.Logger) *Coordinator {
	return &Coordinator{log: log}
}

func (c *Coordinator) State() LoaderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShowLoader moves to Busy(msg). An empty msg shows the default message.
func (c *Coordinator) ShowLoader(msg string) {
	c.begin(msg)
}

// HideLoader moves to Idle unconditionally.
func (c *Coordinator) HideLoader() {
	c.mu.Lock()
	c.gen++
	c.state = LoaderState{}
	c.mu.Unlock()
}

// begin shows the loader and returns a token; end hides it only if no one
// showed the loader since.
func (c *Coordinator) begin(msg string) uint64 {
	if msg == "" {
		msg = DefaultLoadingMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = LoaderState{Busy: true, Message: msg}
	return c.gen
}

func (c *Coordinator) end(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != token {
		return
	}
	c.gen++
	c.state = LoaderState{}
}

// Run shows msg, waits delay (the simulated latency) and then calls fn. The
// wait is cancelled with ctx, in which case fn is not called and ctx.Err() is
// returned. The loader is hidden afterwards unless a later task took it over.
func (c *Coordinator) Run(ctx context.Context, msg string, delay time.Duration, fn func(context.Context) error) error {
	token := c.begin(msg)
	defer c.end(token)

	if err := wait(ctx, delay); err != nil {
		c.log.Debug("loader_task_cancelled", msg)
		return err
	}
	return fn(ctx)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
