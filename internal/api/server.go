// Package api is the operator console's HTTP surface: the session, the three
// list views, navigation and a websocket that pushes store changes.
package api

import (
	"net/http"
	"time"

	"fleet-dashboard/internal/navigation"
	"fleet-dashboard/internal/projection"
	"fleet-dashboard/internal/roster"
	"fleet-dashboard/internal/session"
	"fleet-dashboard/internal/store"
	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
	"fleet-dashboard/pkg/ratelimit"
	"fleet-dashboard/pkg/websocket"
)

// Deps are the collaborators the console serves. Views are the process's one
// console instance; they are mounted by route changes, not by requests. A nil
// LoginLimiter disables sign-in throttling.
type Deps struct {
	Store        *store.Store
	JWT          *auth.JWTManager
	Session      *session.Service
	Roster       *roster.Service
	Coordinator  *navigation.Coordinator
	Navigator    *navigation.Navigator
	Trips        *projection.TripsView
	Drivers      *projection.DriversView
	Vehicles     *projection.VehiclesView
	Hub          *websocket.Manager
	FocusDelay   time.Duration
	LoginLimiter *ratelimit.Limiter
	Log          logger.Logger
}

type Server struct {
	store    *store.Store
	jwt      *auth.JWTManager
	session  *session.Service
	roster   *roster.Service
	coord    *navigation.Coordinator
	nav      *navigation.Navigator
	trips    *projection.TripsView
	drivers  *projection.DriversView
	vehicles *projection.VehiclesView
	hub      *websocket.Manager
	focus    time.Duration
	limiter  *ratelimit.Limiter
	log      logger.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		store:    d.Store,
		jwt:      d.JWT,
		session:  d.Session,
		roster:   d.Roster,
		coord:    d.Coordinator,
		nav:      d.Navigator,
		trips:    d.Trips,
		drivers:  d.Drivers,
		vehicles: d.Vehicles,
		hub:      d.Hub,
		focus:    d.FocusDelay,
		limiter:  d.LoginLimiter,
		log:      d.Log,
	}
}

// Handler returns the routed, panic-safe handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.login)
	mux.Handle("POST /auth/logout", s.protected(s.logout))
	mux.HandleFunc("GET /auth/session", s.getSession)

	mux.Handle("GET /dashboard/kpis", s.protected(s.getKPIs))
	mux.Handle("GET /dashboard/trips", s.protected(s.getTrips))

	mux.Handle("GET /drivers", s.protected(s.getDrivers))
	mux.Handle("POST /drivers/selection", s.protected(s.updateSelection))
	mux.Handle("GET /drivers/export", s.protected(s.exportDrivers))
	mux.Handle("POST /drivers/import", s.protected(s.importDrivers))

	mux.Handle("GET /tracking/vehicles", s.protected(s.getVehicles))
	mux.Handle("POST /tracking/vehicles/{id}/focus", s.protected(s.focusVehicle))

	mux.HandleFunc("POST /navigate", s.navigate)
	mux.HandleFunc("GET /loader", s.getLoader)

	mux.Handle("GET /ws/state", websocket.NewHandler(s.log, s.jwt, s.onStateClient, auth.RoleAdmin))

	return recoverer(s.log, mux)
}
