package navigation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
)

type fakeSession struct{ s domain.Session }

func (f fakeSession) Session() domain.Session { return f.s }

var signedIn = fakeSession{domain.Session{Token: "t", Role: auth.RoleAdmin}}

func newNavigator(t *testing.T, sess SessionReader, opts Options) (*Navigator, *Coordinator) {
	t.Helper()
	c := NewCoordinator(logger.Nop())
	return NewNavigator(c, sess, opts, logger.Nop()), c
}

func waitBusy(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !c.State().Busy {
		if time.Now().After(deadline) {
			t.Fatal("loader never became busy")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoaderStateMachine(t *testing.T) {
	c := NewCoordinator(logger.Nop())
	if c.State().Busy {
		t.Fatal("should start idle")
	}

	c.ShowLoader("")
	if got := c.State(); !got.Busy || got.Message != DefaultLoadingMessage {
		t.Errorf("state = %+v", got)
	}
	c.ShowLoader("Exporting...")
	if got := c.State().Message; got != "Exporting..." {
		t.Errorf("message not replaced: %q", got)
	}
	c.HideLoader()
	if c.State() != (LoaderState{}) {
		t.Errorf("not idle: %+v", c.State())
	}
}

func TestRunWaitsThenCallsFn(t *testing.T) {
	c := NewCoordinator(logger.Nop())
	var busyDuring bool
	err := c.Run(context.Background(), "Signing in...", 5*time.Millisecond, func(context.Context) error {
		busyDuring = c.State().Busy
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !busyDuring {
		t.Error("loader should be busy while fn runs")
	}
	if c.State().Busy {
		t.Error("loader should be idle afterwards")
	}
}

func TestRunCancelledSkipsFn(t *testing.T) {
	c := NewCoordinator(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := c.Run(ctx, "", time.Hour, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("err = %v called = %v", err, called)
	}
	if c.State().Busy {
		t.Error("cancelled task should hide its loader")
	}
}

func TestRunDoesNotHideLaterLoader(t *testing.T) {
	c := NewCoordinator(logger.Nop())
	_ = c.Run(context.Background(), "first", 0, func(context.Context) error {
		c.ShowLoader("second")
		return nil
	})
	if got := c.State(); !got.Busy || got.Message != "second" {
		t.Errorf("state = %+v", got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		path    string
		want    Route
		wantErr bool
	}{
		{"/", RouteDashboard, false},
		{"", RouteDashboard, false},
		{"/tracking", RouteTracking, false},
		{"/login", RouteLogin, false},
		{"/nope", "", true},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v", tt.path, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownRoute) {
			t.Errorf("Resolve(%q) err = %v", tt.path, err)
		}
	}
}

func TestNavigateCommitsAfterDelay(t *testing.T) {
	n, c := newNavigator(t, signedIn, Options{Delay: 10 * time.Millisecond, Guard: true})

	var seen []Route
	n.OnChange(func(from, to Route) { seen = append(seen, from, to) })

	got, err := n.Navigate(context.Background(), "/")
	if err != nil || got != RouteDashboard {
		t.Fatalf("Navigate = %q, %v", got, err)
	}
	if n.Current() != RouteDashboard || c.State().Busy {
		t.Errorf("current = %q loader = %+v", n.Current(), c.State())
	}
	if len(seen) != 2 || seen[0] != RouteLogin || seen[1] != RouteDashboard {
		t.Errorf("listener saw %v", seen)
	}
}

func TestNavigateSameRouteIsNoop(t *testing.T) {
	n, c := newNavigator(t, signedIn, Options{Delay: time.Hour, Start: RouteDrivers})
	var calls atomic.Int32
	n.OnChange(func(Route, Route) { calls.Add(1) })

	got, err := n.Navigate(context.Background(), "/drivers")
	if err != nil || got != RouteDrivers {
		t.Fatalf("Navigate = %q, %v", got, err)
	}
	if calls.Load() != 0 || c.State().Busy {
		t.Error("same-route navigation should not touch the loader or listeners")
	}
}

func TestLastNavigationWins(t *testing.T) {
	n, c := newNavigator(t, signedIn, Options{Delay: 50 * time.Millisecond, Start: RouteDashboard})
	var commits atomic.Int32
	n.OnChange(func(Route, Route) { commits.Add(1) })

	firstErr := make(chan error, 1)
	go func() {
		_, err := n.Navigate(context.Background(), "/drivers")
		firstErr <- err
	}()
	waitBusy(t, c)

	got, err := n.Navigate(context.Background(), "/vehicles")
	if err != nil || got != RouteVehicles {
		t.Fatalf("second Navigate = %q, %v", got, err)
	}
	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("first Navigate err = %v, want ErrSuperseded", err)
	}
	if n.Current() != RouteVehicles {
		t.Errorf("current = %q", n.Current())
	}
	if commits.Load() != 1 {
		t.Errorf("commits = %d, want 1", commits.Load())
	}
	if c.State().Busy {
		t.Error("loader should end idle")
	}
}

func TestSameRouteNavigationSupersedesPending(t *testing.T) {
	n, c := newNavigator(t, signedIn, Options{Delay: 50 * time.Millisecond, Start: RouteDashboard})
	var commits atomic.Int32
	n.OnChange(func(Route, Route) { commits.Add(1) })

	firstErr := make(chan error, 1)
	go func() {
		_, err := n.Navigate(context.Background(), "/drivers")
		firstErr <- err
	}()
	waitBusy(t, c)

	n.mu.Lock()
	before := n.seq
	n.mu.Unlock()

	got, err := n.Navigate(context.Background(), "/")
	if err != nil || got != RouteDashboard {
		t.Fatalf("same-route Navigate = %q, %v", got, err)
	}
	n.mu.Lock()
	after := n.seq
	n.mu.Unlock()
	if after == before {
		t.Error("no-op navigation left the pending transition current")
	}

	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("pending Navigate err = %v, want ErrSuperseded", err)
	}
	if n.Current() != RouteDashboard || commits.Load() != 0 {
		t.Errorf("current = %q commits = %d", n.Current(), commits.Load())
	}
	if c.State().Busy {
		t.Error("loader should end idle")
	}
}

func TestAuthGuardRedirectsToLogin(t *testing.T) {
	n, _ := newNavigator(t, fakeSession{}, Options{Guard: true, Start: RouteDashboard})

	got, err := n.Navigate(context.Background(), "/drivers")
	if err != nil || got != RouteLogin || n.Current() != RouteLogin {
		t.Errorf("Navigate = %q, %v; current %q", got, err, n.Current())
	}
}

func TestGuardDisabledAllowsAnonymous(t *testing.T) {
	n, _ := newNavigator(t, fakeSession{}, Options{Guard: false})

	got, err := n.Navigate(context.Background(), "/shifts")
	if err != nil || got != RouteShifts {
		t.Errorf("Navigate = %q, %v", got, err)
	}
}

func TestNavigateCallerContextCancelled(t *testing.T) {
	n, c := newNavigator(t, signedIn, Options{Delay: time.Hour, Start: RouteDashboard})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := n.Navigate(ctx, "/tracking")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if n.Current() != RouteDashboard || c.State().Busy {
		t.Errorf("current = %q loader = %+v", n.Current(), c.State())
	}
}
