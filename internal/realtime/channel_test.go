package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

type fakeStream struct {
	msgs   chan Message
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{msgs: make(chan Message, 16), closed: make(chan struct{})}
}

func (s *fakeStream) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case <-s.closed:
		return Message{}, ErrStreamClosed
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeTransport struct {
	mu       sync.Mutex
	dials    int
	failures int // first N dials fail
	streams  chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{streams: make(chan *fakeStream, 8)}
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Dial(ctx context.Context) (Stream, error) {
	t.mu.Lock()
	t.dials++
	fail := t.dials <= t.failures
	t.mu.Unlock()
	if fail {
		return nil, errors.New("dial refused")
	}
	s := newFakeStream()
	t.streams <- s
	return s, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type recordingSink struct {
	mu     sync.Mutex
	states []domain.ConnState
}

func (r *recordingSink) SetConnection(s domain.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *recordingSink) has(state domain.ConnState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond, Factor: 2}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func nextStream(t *testing.T, ft *fakeTransport) *fakeStream {
	t.Helper()
	select {
	case s := <-ft.streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no stream dialed")
		return nil
	}
}

func newTestChannel(t *testing.T, ft *fakeTransport, sink StatusSink) *Channel {
	t.Helper()
	ch := NewChannel(ft, fastBackoff(), sink, logger.Nop())
	t.Cleanup(ch.Close)
	return ch
}

// --- Connect ---

func TestConnectIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)

	ch.Connect()
	ch.Connect()
	ch.Connect()
	nextStream(t, ft)

	waitFor(t, "connected", func() bool { return ch.Status().State == domain.ConnConnected })
	if n := ft.dialCount(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}
}

func TestNoDialBeforeConnect(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)
	ch.Subscribe(EventKPIs, func(json.RawMessage) {})

	time.Sleep(10 * time.Millisecond)
	if n := ft.dialCount(); n != 0 {
		t.Errorf("dials = %d before Connect, want 0", n)
	}
}

// --- Dispatch ---

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) Handler {
		return func(json.RawMessage) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	ch.Subscribe("kpis", record("a"))
	ch.Subscribe("kpis", record("b"))
	ch.Subscribe("other", record("x"))
	ch.Subscribe("kpis", record("c"))

	ch.Connect()
	s := nextStream(t, ft)
	s.msgs <- Message{Event: "kpis", Payload: json.RawMessage(`{}`)}

	waitFor(t, "three handlers", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v, want [a b c]", order)
	}
}

func TestUnsubscribeRemovesExactlyThatHandler(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)

	var mu sync.Mutex
	calls := map[string]int{}
	handler := func(name string) Handler {
		return func(json.RawMessage) {
			mu.Lock()
			calls[name]++
			mu.Unlock()
		}
	}
	keep := ch.Subscribe("kpis", handler("keep"))
	drop := ch.Subscribe("kpis", handler("drop"))
	_ = keep

	if !ch.Unsubscribe(drop) {
		t.Fatal("first Unsubscribe should report true")
	}
	if ch.Unsubscribe(drop) {
		t.Error("second Unsubscribe should report false")
	}
	if n := ch.HandlerCount("kpis"); n != 1 {
		t.Fatalf("HandlerCount = %d, want 1", n)
	}

	ch.Connect()
	s := nextStream(t, ft)
	s.msgs <- Message{Event: "kpis", Payload: json.RawMessage(`{}`)}

	waitFor(t, "keep handler", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls["keep"] == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if calls["drop"] != 0 {
		t.Errorf("released handler fired %d times", calls["drop"])
	}
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)

	got := make(chan struct{}, 2)
	ch.Subscribe("kpis", func(json.RawMessage) { panic("bad view") })
	ch.Subscribe("kpis", func(json.RawMessage) { got <- struct{}{} })

	ch.Connect()
	s := nextStream(t, ft)
	s.msgs <- Message{Event: "kpis", Payload: json.RawMessage(`{}`)}
	s.msgs <- Message{Event: "kpis", Payload: json.RawMessage(`{}`)}

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d did not arrive", i+1)
		}
	}
}

// --- Reconnect ---

func TestReconnectsAfterDialFailures(t *testing.T) {
	ft := newFakeTransport()
	ft.failures = 2
	sink := &recordingSink{}
	ch := newTestChannel(t, ft, sink)

	ch.Connect()
	nextStream(t, ft)

	waitFor(t, "connected", func() bool { return ch.Status().State == domain.ConnConnected })
	if n := ft.dialCount(); n != 3 {
		t.Errorf("dials = %d, want 3", n)
	}
	if !sink.has(domain.ConnReconnecting) {
		t.Error("sink never saw reconnecting state")
	}
}

func TestReconnectsAfterStreamDrops(t *testing.T) {
	ft := newFakeTransport()
	ch := newTestChannel(t, ft, nil)

	ch.Connect()
	first := nextStream(t, ft)
	first.Close()
	second := nextStream(t, ft)

	got := make(chan struct{}, 1)
	ch.Subscribe("kpis", func(json.RawMessage) { got <- struct{}{} })
	second.msgs <- Message{Event: "kpis", Payload: json.RawMessage(`{}`)}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery after reconnect")
	}
}

func TestCloseEndsInClosedState(t *testing.T) {
	ft := newFakeTransport()
	sink := &recordingSink{}
	ch := NewChannel(ft, fastBackoff(), sink, logger.Nop())

	ch.Connect()
	nextStream(t, ft)
	waitFor(t, "connected", func() bool { return ch.Status().State == domain.ConnConnected })

	ch.Close()
	if st := ch.Status().State; st != domain.ConnClosed {
		t.Errorf("state = %s, want closed", st)
	}
	ch.Close()
}
