package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/internal/navigation"
	"fleet-dashboard/internal/projection"
	"fleet-dashboard/internal/roster"
	"fleet-dashboard/internal/session"
	"fleet-dashboard/internal/store"
	"fleet-dashboard/pkg/logger"
)

const maxUploadBytes = 10 << 20

// --- Session ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token,omitempty"`
	Role  string `json:"role"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	client := clientAddr(r)
	if !s.limiter.Allow(client) {
		s.log.WithFields(logger.LogFields{"client": client}).Info("login_throttled", "Too many sign-in attempts")
		writeError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.session.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, session.ErrMissingFields), errors.Is(err, session.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeTaskError(w, err, session.ErrLoginFailed.Error())
		return
	}
	s.limiter.Reset(client)
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, Role: string(sess.Role)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout()
	if _, err := s.nav.Navigate(r.Context(), string(navigation.RouteLogin)); err != nil {
		s.log.Error("logout_navigation", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Value(store.DomainSession))
}

// --- Dashboard ---

type kpiResponse struct {
	KPIs       domain.KPISnapshot      `json:"kpis"`
	Connection domain.ConnectionStatus `json:"connection"`
	Degraded   bool                    `json:"degraded"`
}

func (s *Server) getKPIs(w http.ResponseWriter, r *http.Request) {
	conn := s.store.Connection()
	writeJSON(w, http.StatusOK, kpiResponse{
		KPIs:       s.store.KPIs(),
		Connection: conn,
		Degraded:   conn.Degraded(),
	})
}

func (s *Server) getTrips(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteDashboard) {
		return
	}
	q := r.URL.Query()
	f := projection.TripFilter{
		Query:     q.Get("q"),
		Date:      q.Get("date"),
		Status:    q.Get("status"),
		Zone:      q.Get("zone"),
		TripType:  q.Get("type"),
		ShiftTime: q.Get("shift"),
	}
	if f.TripType == "" {
		f.TripType = projection.TripTypeBoth
	}
	s.trips.SetFilter(f)
	writeJSON(w, http.StatusOK, s.trips.Projection())
}

// --- Drivers ---

type driversResponse struct {
	projection.DriverProjection
	Selected          []string `json:"selected"`
	AllSelected       bool     `json:"all_selected"`
	PartiallySelected bool     `json:"partially_selected"`
	Policy            string   `json:"selection_policy"`
}

func (s *Server) driversState() driversResponse {
	return driversResponse{
		DriverProjection:  s.drivers.Projection(),
		Selected:          s.drivers.Selected(),
		AllSelected:       s.drivers.IsAllSelected(),
		PartiallySelected: s.drivers.IsPartiallySelected(),
		Policy:            s.drivers.Policy().String(),
	}
}

func (s *Server) getDrivers(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteDrivers) {
		return
	}
	q := r.URL.Query()
	s.drivers.SetFilter(projection.DriverFilter{
		Query:   q.Get("q"),
		Date:    q.Get("date"),
		Status:  q.Get("status"),
		Vehicle: q.Get("vehicle"),
	})
	writeJSON(w, http.StatusOK, s.driversState())
}

type selectionRequest struct {
	Action string `json:"action"` // toggle, select_all, clear
	ID     string `json:"id,omitempty"`
}

func (s *Server) updateSelection(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteDrivers) {
		return
	}
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "toggle":
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required for toggle")
			return
		}
		s.drivers.Toggle(req.ID)
	case "select_all":
		s.drivers.SelectAll()
	case "clear":
		s.drivers.ClearSelection()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	writeJSON(w, http.StatusOK, s.driversState())
}

func (s *Server) exportDrivers(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteDrivers) {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	out, err := s.roster.Export(r.Context(), s.drivers.Projection().Filtered, format)
	if errors.Is(err, roster.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.writeTaskError(w, err, "Export failed")
		return
	}

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (s *Server) importDrivers(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteDrivers) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a file field is required")
		return
	}
	defer file.Close()

	report, err := s.roster.Import(r.Context(), roster.File{
		Name: header.Filename,
		Size: header.Size,
		Type: header.Header.Get("Content-Type"),
	}, file)
	switch {
	case errors.Is(err, roster.ErrUnsupportedFile):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, roster.ErrMissingColumns), errors.Is(err, roster.ErrEmptyFile):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeTaskError(w, err, "Bulk upload failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- Tracking ---

func (s *Server) getVehicles(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteTracking) {
		return
	}
	q := r.URL.Query()
	s.vehicles.SetFilter(projection.VehicleFilter{Query: q.Get("q"), Status: q.Get("status")})
	writeJSON(w, http.StatusOK, s.vehicles.Projection())
}

func (s *Server) focusVehicle(w http.ResponseWriter, r *http.Request) {
	if !s.requireRoute(w, navigation.RouteTracking) {
		return
	}
	id := r.PathValue("id")
	found := false
	for _, v := range s.store.Vehicles() {
		if v.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	s.vehicles.Focus(id)
	err := s.coord.Run(r.Context(), "Loading vehicle details...", s.focus, func(context.Context) error { return nil })
	if err != nil {
		s.writeTaskError(w, err, "Could not load vehicle details")
		return
	}
	writeJSON(w, http.StatusOK, s.vehicles.Projection())
}

// --- Navigation ---

type navigateRequest struct {
	Route string `json:"route"`
}

type navigateResponse struct {
	Route string `json:"route"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	route, err := s.nav.Navigate(r.Context(), req.Route)
	switch {
	case errors.Is(err, navigation.ErrUnknownRoute):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, navigation.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeTaskError(w, err, "Navigation failed")
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Route: string(route)})
}

func (s *Server) getLoader(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.State())
}

// requireRoute answers 409 unless the view behind the endpoint is on screen.
func (s *Server) requireRoute(w http.ResponseWriter, route navigation.Route) bool {
	if cur := s.nav.Current(); cur != route {
		writeError(w, http.StatusConflict, fmt.Sprintf("view %s is not active (current route %s)", route, cur))
		return false
	}
	return true
}

// writeTaskError maps a failed loader task: cancellation becomes 408, anything
// else is logged and answered 500 with msg.
func (s *Server) writeTaskError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusRequestTimeout, "Request cancelled")
		return
	}
	s.log.Error("request_failed", err)
	writeError(w, http.StatusInternalServerError, msg)
}
