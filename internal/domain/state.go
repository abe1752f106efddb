package domain

import "fleet-dashboard/pkg/auth"

// Session is the signed-in operator. The zero value is the signed-out state.
type Session struct {
	Token string    `json:"token,omitempty"`
	Role  auth.Role `json:"role,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// KPISnapshot is the dashboard header counters. Always replaced wholesale.
type KPISnapshot struct {
	ActiveTrips   int `json:"activeTrips"`
	TotalTrips    int `json:"totalTrips"`
	DriversOnline int `json:"driversOnline"`
}

// KPIPartial carries the fields of an inbound KPI event; nil means absent.
type KPIPartial struct {
	ActiveTrips   *int
	TotalTrips    *int
	DriversOnline *int
}

// ConnState describes the realtime channel's link.
type ConnState string

const (
	ConnIdle         ConnState = "idle"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
	ConnClosed       ConnState = "closed"
)

// ConnectionStatus is what the dashboard shows as its degraded-mode indicator.
type ConnectionStatus struct {
	State     ConnState `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	Attempts  int       `json:"attempts"`
}

// Degraded reports whether KPI data may be stale.
func (c ConnectionStatus) Degraded() bool {
	return c.State != ConnConnected
}
