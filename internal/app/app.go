// Package app assembles the dashboard from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-dashboard/internal/api"
	"fleet-dashboard/internal/catalog"
	"fleet-dashboard/internal/navigation"
	"fleet-dashboard/internal/projection"
	"fleet-dashboard/internal/realtime"
	"fleet-dashboard/internal/roster"
	"fleet-dashboard/internal/session"
	"fleet-dashboard/internal/store"
	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/config"
	"fleet-dashboard/pkg/db"
	"fleet-dashboard/pkg/logger"
	"fleet-dashboard/pkg/ratelimit"
	"fleet-dashboard/pkg/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg *config.Config
	log logger.Logger

	Store       *store.Store
	Channel     *realtime.Channel
	Coordinator *navigation.Coordinator
	Navigator   *navigation.Navigator
	Trips       *projection.TripsView
	Drivers     *projection.DriversView
	Vehicles    *projection.VehiclesView
	Poller      *catalog.Poller
	Hub         *websocket.Manager
	API         *api.Server

	pool *pgxpool.Pool

	mu     sync.Mutex
	kpiSub *realtime.Subscription
}

// New wires every component. With CATALOG_SOURCE=postgres it connects to the
// database and applies the catalog schema.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	a.Store = store.New(log.WithFields(logger.LogFields{"domain": "store"}))

	transport, err := realtime.NewTransport(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Channel = realtime.NewChannel(transport, realtime.BackoffFromConfig(cfg), a.Store,
		log.WithFields(logger.LogFields{"domain": "realtime", "transport": transport.Name()}))

	src, err := a.catalogSource(ctx)
	if err != nil {
		return nil, err
	}
	a.Poller = catalog.NewPoller(src, a.Store, cfg.Catalog.Refresh, log.WithFields(logger.LogFields{"domain": "catalog"}))

	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenDuration)
	a.Coordinator = navigation.NewCoordinator(log)
	a.Navigator = navigation.NewNavigator(a.Coordinator, a.Store, navigation.Options{
		Delay: cfg.Delays.Navigation,
		Guard: cfg.Auth.Guard,
	}, log.WithFields(logger.LogFields{"domain": "navigation"}))

	a.Trips = projection.NewTripsView(a.Store)
	a.Drivers = projection.NewDriversView(a.Store, projection.ParseSelectionPolicy(cfg.SelectionPolicy))
	a.Vehicles = projection.NewVehiclesView(a.Store)
	a.Navigator.OnChange(a.switchView)

	a.Hub = websocket.NewManager(log)
	a.API = api.NewServer(api.Deps{
		Store:        a.Store,
		JWT:          jwtManager,
		Session:      session.NewService(a.Store, jwtManager, a.Coordinator, cfg.Delays.Login, log),
		Roster:       roster.NewService(a.Store, src, a.Coordinator, roster.Delays{Upload: cfg.Delays.Upload, Export: cfg.Delays.Export}, log),
		Coordinator:  a.Coordinator,
		Navigator:    a.Navigator,
		Trips:        a.Trips,
		Drivers:      a.Drivers,
		Vehicles:     a.Vehicles,
		Hub:          a.Hub,
		FocusDelay:   cfg.Delays.Focus,
		LoginLimiter: ratelimit.New(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		Log:          log.WithFields(logger.LogFields{"domain": "api"}),
	})
	return a, nil
}

func (a *App) catalogSource(ctx context.Context) (catalog.Source, error) {
	switch a.cfg.Catalog.Source {
	case "", "seed":
		return &catalog.SeedSource{}, nil
	case "postgres":
		pool, err := db.NewConnection(ctx, a.cfg.PostgresDSN(), a.log)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		src := catalog.NewPostgresSource(pool)
		if err := src.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown catalog source %q", a.cfg.Catalog.Source)
}

// switchView mounts the view behind the new route and releases the old one.
// The dashboard owns the KPI subscription; the channel connects on its first
// mount and stays up afterwards.
func (a *App) switchView(from, to navigation.Route) {
	switch from {
	case navigation.RouteDashboard:
		a.Trips.Unmount()
		a.mu.Lock()
		if a.kpiSub != nil {
			a.Channel.Unsubscribe(a.kpiSub)
			a.kpiSub = nil
		}
		a.mu.Unlock()
	case navigation.RouteDrivers:
		a.Drivers.Unmount()
	case navigation.RouteTracking:
		a.Vehicles.Unmount()
	}

	switch to {
	case navigation.RouteDashboard:
		a.Trips.Mount()
		a.mu.Lock()
		if a.kpiSub == nil {
			a.kpiSub = realtime.BindKPIs(a.Channel, a.Store, a.log)
		}
		a.mu.Unlock()
		a.Channel.Connect()
	case navigation.RouteDrivers:
		a.Drivers.Mount()
	case navigation.RouteTracking:
		a.Vehicles.Mount()
	}
}

// Handler is the console's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.API.Handler()
}

// Run serves HTTP and refreshes the catalog until ctx ends, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopPush := a.API.BindStatePush()
	defer stopPush()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Poller.Run(ctx)
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:      a.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.log.Info("startup", fmt.Sprintf("dashboard listening on port %d", a.cfg.HTTP.Port))
		serverErrors <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
			a.log.Error("shutdown", runErr)
		}
	case <-ctx.Done():
		a.log.Info("shutdown", "Shutdown signal received. Starting graceful shutdown...")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("shutdown", fmt.Errorf("failed to gracefully shutdown: %w", err))
	}

	cancel()
	wg.Wait()
	a.Close()
	return runErr
}

// Close releases the realtime link, websocket clients and the database pool.
func (a *App) Close() {
	a.Channel.Close()
	a.Hub.CloseAll()
	if a.pool != nil {
		a.pool.Close()
	}
	a.log.Info("shutdown", "Dashboard shutdown complete")
}
