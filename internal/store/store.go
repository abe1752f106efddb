// Package store holds the dashboard's shared state. Every mutation goes
// through a named update method and notifies the subscribers of that domain.
package store

import (
	"slices"
	"sync"
	"sync/atomic"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
)

// Domain names a subdivision of the store state.
type Domain string

const (
	DomainSession    Domain = "session"
	DomainKPIs       Domain = "kpis"
	DomainTrips      Domain = "trips"
	DomainDrivers    Domain = "drivers"
	DomainVehicles   Domain = "vehicles"
	DomainShifts     Domain = "shifts"
	DomainConnection Domain = "connection"
)

// Domains lists every domain in a stable order.
var Domains = []Domain{
	DomainSession, DomainKPIs, DomainTrips, DomainDrivers,
	DomainVehicles, DomainShifts, DomainConnection,
}

// Listener is called after a domain changed. It reads the new value back from the store.
type Listener func(d Domain)

type subscriber struct {
	id     uint64
	fn     Listener
	active atomic.Bool
}

type Store struct {
	mu       sync.RWMutex
	session  domain.Session
	kpis     domain.KPISnapshot
	trips    []domain.Trip
	drivers  []domain.Driver
	vehicles []domain.Vehicle
	shifts   []domain.Shift
	conn     domain.ConnectionStatus

	subMu  sync.Mutex
	subs   map[Domain][]*subscriber
	nextID uint64

	log logger.Logger
}

func New(log logger.Logger) *Store {
	return &Store{
		conn: domain.ConnectionStatus{State: domain.ConnIdle},
		subs: make(map[Domain][]*subscriber),
		log:  log,
	}
}

// Subscribe registers fn for changes to d. The returned func releases the
// registration; calling it more than once is harmless.
func (s *Store) Subscribe(d Domain, fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	sub := &subscriber{id: s.nextID, fn: fn}
	sub.active.Store(true)
	s.subs[d] = append(s.subs[d], sub)
	s.subMu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs[d] = slices.DeleteFunc(s.subs[d], func(x *subscriber) bool { return x.id == sub.id })
	}
}

// SubscriberCount reports live registrations for d.
func (s *Store) SubscriberCount(d Domain) int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs[d])
}

// notify runs listeners of d in registration order on the caller's goroutine.
// It must be called without s.mu held so listeners may read the store.
func (s *Store) notify(d Domain) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs[d])
	s.subMu.Unlock()

	s.log.WithFields(logger.LogFields{"domain": string(d), "subscribers": len(subs)}).Debug("store_updated", "domain changed")

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(d)
		}
	}
}

// --- Session ---

func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Login sets token and role together.
func (s *Store) Login(token string, role auth.Role) {
	s.mu.Lock()
	s.session = domain.Session{Token: token, Role: role}
	s.mu.Unlock()
	s.notify(DomainSession)
}

// Logout restores the initial signed-out session.
func (s *Store) Logout() {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()
	s.notify(DomainSession)
}

// --- KPIs ---

func (s *Store) KPIs() domain.KPISnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kpis
}

// UpdateKPIs replaces the snapshot. Absent fields become 0, negative ones are clamped to 0.
func (s *Store) UpdateKPIs(p domain.KPIPartial) domain.KPISnapshot {
	next := domain.KPISnapshot{
		ActiveTrips:   orZero(p.ActiveTrips),
		TotalTrips:    orZero(p.TotalTrips),
		DriversOnline: orZero(p.DriversOnline),
	}
	s.mu.Lock()
	s.kpis = next
	s.mu.Unlock()
	s.notify(DomainKPIs)
	return next
}

func orZero(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// --- Collections ---

func (s *Store) Trips() []domain.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.trips)
}

// SetTrips replaces the trip collection as given, without merge or dedup.
func (s *Store) SetTrips(trips []domain.Trip) {
	s.mu.Lock()
	s.trips = slices.Clone(trips)
	s.mu.Unlock()
	s.notify(DomainTrips)
}

func (s *Store) Drivers() []domain.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.drivers)
}

func (s *Store) SetDrivers(drivers []domain.Driver) {
	s.mu.Lock()
	s.drivers = slices.Clone(drivers)
	s.mu.Unlock()
	s.notify(DomainDrivers)
}

func (s *Store) Vehicles() []domain.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.vehicles)
}

func (s *Store) SetVehicles(vehicles []domain.Vehicle) {
	s.mu.Lock()
	s.vehicles = slices.Clone(vehicles)
	s.mu.Unlock()
	s.notify(DomainVehicles)
}

func (s *Store) Shifts() []domain.Shift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.shifts)
}

func (s *Store) SetShifts(shifts []domain.Shift) {
	s.mu.Lock()
	s.shifts = slices.Clone(shifts)
	s.mu.Unlock()
	s.notify(DomainShifts)
}

// --- Connection ---

func (s *Store) Connection() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *Store) SetConnection(status domain.ConnectionStatus) {
	s.mu.Lock()
	s.conn = status
	s.mu.Unlock()
	s.notify(DomainConnection)
}

// Value returns the current value of d, for generic consumers such as the state push socket.
func (s *Store) Value(d Domain) interface{} {
	switch d {
	case DomainSession:
		sess := s.Session()
		// the token never leaves the process through generic reads
		return struct {
			Authenticated bool      `json:"authenticated"`
			Role          auth.Role `json:"role,omitempty"`
		}{sess.Authenticated(), sess.Role}
	case DomainKPIs:
		return s.KPIs()
	case DomainTrips:
		return s.Trips()
	case DomainDrivers:
		return s.Drivers()
	case DomainVehicles:
		return s.Vehicles()
	case DomainShifts:
		return s.Shifts()
	case DomainConnection:
		return s.Connection()
	}
	return nil
}
