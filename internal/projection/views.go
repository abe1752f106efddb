package projection

import (
	"sync"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/internal/store"
)

// Subscriber is the part of the store a view needs to stay current.
type Subscriber interface {
	Subscribe(d store.Domain, fn store.Listener) (unsubscribe func())
}

type TripSource interface {
	Subscriber
	Trips() []domain.Trip
}

type DriverSource interface {
	Subscriber
	Drivers() []domain.Driver
}

type VehicleSource interface {
	Subscriber
	Vehicles() []domain.Vehicle
}

// binding tracks one store registration so Mount/Unmount pair up.
// Views hold their own lock while reading the store; the store never calls
// listeners with its lock held, so the order is always view then store.
type binding struct {
	unsub func()
}

func (b *binding) bind(s Subscriber, d store.Domain, fn func()) {
	if b.unsub != nil {
		return
	}
	b.unsub = s.Subscribe(d, func(store.Domain) { fn() })
}

func (b *binding) release() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

// --- Trips ---

// TripsView is the dashboard trip board.
type TripsView struct {
	src TripSource

	mu     sync.Mutex
	b      binding
	filter TripFilter
	proj   TripProjection
}

func NewTripsView(src TripSource) *TripsView {
	return &TripsView{src: src, filter: TripFilter{TripType: TripTypeBoth}}
}

// Mount subscribes to the trips domain and computes the first projection.
func (v *TripsView) Mount() {
	v.mu.Lock()
	v.b.bind(v.src, store.DomainTrips, v.recompute)
	v.mu.Unlock()
	v.recompute()
}

// Unmount releases the store subscription and resets the local filter state.
func (v *TripsView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.b.release()
	v.filter = TripFilter{TripType: TripTypeBoth}
	v.proj = TripProjection{}
}

func (v *TripsView) SetFilter(f TripFilter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	v.recompute()
}

func (v *TripsView) Filter() TripFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *TripsView) Projection() TripProjection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proj
}

func (v *TripsView) recompute() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.proj = ProjectTrips(v.src.Trips(), v.filter)
}

// --- Drivers ---

// DriversView is the driver roster with its checkbox selection.
type DriversView struct {
	src    DriverSource
	policy SelectionPolicy

	mu        sync.Mutex
	b         binding
	filter    DriverFilter
	proj      DriverProjection
	selection *Selection
}

func NewDriversView(src DriverSource, policy SelectionPolicy) *DriversView {
	return &DriversView{src: src, policy: policy, selection: NewSelection()}
}

func (v *DriversView) Mount() {
	v.mu.Lock()
	v.b.bind(v.src, store.DomainDrivers, v.recompute)
	v.mu.Unlock()
	v.recompute()
}

func (v *DriversView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.b.release()
	v.filter = DriverFilter{}
	v.proj = DriverProjection{}
	v.selection.Clear()
}

func (v *DriversView) Policy() SelectionPolicy { return v.policy }

func (v *DriversView) SetFilter(f DriverFilter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	v.recompute()
}

func (v *DriversView) Filter() DriverFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *DriversView) Projection() DriverProjection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proj
}

func (v *DriversView) Toggle(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection.Toggle(id)
}

// SelectAll checks every currently filtered driver and nothing else.
func (v *DriversView) SelectAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection.SelectAll(v.proj.IDs())
}

func (v *DriversView) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection.Clear()
}

func (v *DriversView) Selected() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.IDs()
}

func (v *DriversView) IsSelected(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.IsSelected(id)
}

func (v *DriversView) IsAllSelected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.IsAllSelected(v.proj.IDs())
}

func (v *DriversView) IsPartiallySelected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection.IsPartiallySelected(v.proj.IDs())
}

func (v *DriversView) recompute() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.proj = ProjectDrivers(v.src.Drivers(), v.filter)
	v.selection.Reconcile(v.proj.IDs(), v.policy)
}

// --- Vehicles ---

// VehiclesView is the live tracking list with a single focused vehicle.
type VehiclesView struct {
	src VehicleSource

	mu     sync.Mutex
	b      binding
	filter VehicleFilter
	focus  string
	proj   VehicleProjection
}

func NewVehiclesView(src VehicleSource) *VehiclesView {
	return &VehiclesView{src: src}
}

func (v *VehiclesView) Mount() {
	v.mu.Lock()
	v.b.bind(v.src, store.DomainVehicles, v.recompute)
	v.mu.Unlock()
	v.recompute()
}

func (v *VehiclesView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.b.release()
	v.filter = VehicleFilter{}
	v.focus = ""
	v.proj = VehicleProjection{}
}

func (v *VehiclesView) SetFilter(f VehicleFilter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	v.recompute()
}

func (v *VehiclesView) Filter() VehicleFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Focus selects one vehicle for the detail panel; "" clears it.
func (v *VehiclesView) Focus(id string) {
	v.mu.Lock()
	v.focus = id
	v.mu.Unlock()
	v.recompute()
}

func (v *VehiclesView) Projection() VehicleProjection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proj
}

func (v *VehiclesView) recompute() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.proj = ProjectVehicles(v.src.Vehicles(), v.filter, v.focus)
}
