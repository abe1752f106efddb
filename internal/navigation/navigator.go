package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

var (
	ErrUnknownRoute = errors.New("unknown route")
	// ErrSuperseded is returned by a transition that a newer one cancelled.
	ErrSuperseded = errors.New("navigation superseded")
)

type Route string

const (
	RouteLogin     Route = "/login"
	RouteDashboard Route = "/dashboard"
	RouteTracking  Route = "/tracking"
	RouteDrivers   Route = "/drivers"
	RouteVehicles  Route = "/vehicles"
	RouteShifts    Route = "/shifts"
)

var loadingMessages = map[Route]string{
	RouteDashboard: "Loading Dashboard...",
	RouteTracking:  "Loading Live Tracking...",
	RouteDrivers:   "Loading Drivers...",
	RouteVehicles:  "Loading Vehicles...",
	RouteShifts:    "Loading Shifts...",
}

// Resolve maps a path to a route. "/" and "" resolve to the dashboard.
func Resolve(path string) (Route, error) {
	r := Route(path)
	switch r {
	case "", "/":
		return RouteDashboard, nil
	case RouteLogin:
		return r, nil
	}
	if _, ok := loadingMessages[r]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRoute, path)
}

// Protected reports whether the route needs a session.
func (r Route) Protected() bool {
	return r != RouteLogin
}

func (r Route) LoadingMessage() string {
	if m, ok := loadingMessages[r]; ok {
		return m
	}
	return DefaultLoadingMessage
}

type SessionReader interface {
	Session() domain.Session
}

// RouteListener observes committed route changes.
type RouteListener func(from, to Route)

type Options struct {
	// Delay is the simulated latency before a route change commits.
	Delay time.Duration
	// Guard redirects unauthenticated navigation to protected routes to /login.
	Guard bool
	Start Route
}

// Navigator switches routes behind the loader. Each Navigate call is one
// cancellable transition; starting a new one cancels the one in flight, so
// only the latest request commits.
type Navigator struct {
	coord   *Coordinator
	session SessionReader
	opts    Options
	log     logger.Logger

	mu        sync.Mutex
	current   Route
	seq       uint64
	cancel    context.CancelFunc
	listeners []RouteListener

	emitMu sync.Mutex
}

func NewNavigator(coord *Coordinator, session SessionReader, opts Options, log logger.Logger) *Navigator {
	start := opts.Start
	if start == "" {
		start = RouteLogin
	}
	return &Navigator{coord: coord, session: session, opts: opts, log: log, current: start}
}

func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// OnChange registers fn for committed route changes. Listeners run in
// registration order on the committing goroutine.
func (n *Navigator) OnChange(fn RouteListener) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// Navigate moves to path after the configured delay and returns the route that
// was committed, which differs from path when the guard redirected. It blocks
// until the transition commits, is superseded (ErrSuperseded) or ctx ends.
func (n *Navigator) Navigate(ctx context.Context, path string) (Route, error) {
	target, err := Resolve(path)
	if err != nil {
		return "", err
	}
	if n.opts.Guard && target.Protected() && !n.session.Session().Authenticated() {
		n.log.Info("navigation_redirect", fmt.Sprintf("unauthenticated navigation to %s redirected to %s", target, RouteLogin))
		target = RouteLogin
	}

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	// a pending transition is superseded even when this one is a no-op
	n.seq++
	if target == n.current {
		n.mu.Unlock()
		return target, nil
	}
	tctx, cancel := context.WithCancel(ctx)
	seq := n.seq
	n.cancel = cancel
	token := n.coord.begin(target.LoadingMessage())
	n.mu.Unlock()

	defer cancel()
	defer n.coord.end(token)

	if err := wait(tctx, n.opts.Delay); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrSuperseded
	}

	n.mu.Lock()
	if n.seq != seq {
		n.mu.Unlock()
		return "", ErrSuperseded
	}
	from := n.current
	n.current = target
	n.cancel = nil
	listeners := append([]RouteListener(nil), n.listeners...)
	n.emitMu.Lock()
	n.mu.Unlock()
	defer n.emitMu.Unlock()

	n.log.Info("route_changed", fmt.Sprintf("%s -> %s", from, target))
	for _, fn := range listeners {
		fn(from, target)
	}
	return target, nil
}
