// Package catalog supplies the fleet collections (trips, drivers, vehicles,
// shifts) and keeps the store's copies fresh.
package catalog

import (
	"context"
	"sync"

	"fleet-dashboard/internal/domain"
)

// Source loads whole collections. Each call returns a fresh slice.
// AddDrivers persists new drivers so later loads include them.
type Source interface {
	Trips(ctx context.Context) ([]domain.Trip, error)
	Drivers(ctx context.Context) ([]domain.Driver, error)
	Vehicles(ctx context.Context) ([]domain.Vehicle, error)
	Shifts(ctx context.Context) ([]domain.Shift, error)
	AddDrivers(ctx context.Context, drivers []domain.Driver) error
}

// SeedSource serves the built-in demo fleet plus any drivers added since
// start. The zero value is ready to use.
type SeedSource struct {
	mu    sync.Mutex
	added []domain.Driver
}

func (s *SeedSource) Trips(context.Context) ([]domain.Trip, error) {
	return seedTrips(), nil
}

func (s *SeedSource) Drivers(context.Context) ([]domain.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(seedDrivers(), s.added...), nil
}

func (s *SeedSource) AddDrivers(_ context.Context, drivers []domain.Driver) error {
	s.mu.Lock()
	s.added = append(s.added, drivers...)
	s.mu.Unlock()
	return nil
}

func (s *SeedSource) Vehicles(context.Context) ([]domain.Vehicle, error) {
	return seedVehicles(), nil
}

func (s *SeedSource) Shifts(context.Context) ([]domain.Shift, error) {
	return []domain.Shift{
		{ID: "SHF-DAY", Type: domain.ShiftDay},
		{ID: "SHF-NIGHT", Type: domain.ShiftNight},
	}, nil
}

func ptr[T any](v T) *T { return &v }

func seedTrips() []domain.Trip {
	return []domain.Trip{
		{
			ID: "VTT-WX1387", Count: 1, Status: domain.TripCompleted,
			DriverName: "John Doe", VehicleID: "MH-12-AB-1234",
			StartTime: "10 Jan 00:00", EndTime: ptr("10 Jan 01:30"),
			Distance: "15.2 km", Duration: "1h 30m", Rating: ptr(4.8),
			PassengerName: "Alice Smith", IconTags: []string{"phone", "car", "completed"},
		},
		{
			ID: "VTT-WJ0335", Count: 2, Status: domain.TripCompleted,
			DriverName: "Jane Smith", VehicleID: "MH-12-XY-5678",
			StartTime: "10 Jan 02:00", EndTime: ptr("10 Jan 03:45"),
			Distance: "22.5 km", Duration: "1h 45m", Rating: ptr(4.9),
			PassengerName: "Bob Johnson", IconTags: []string{"phone", "car", "completed"},
		},
		{
			ID: "VTT-VF9934", Count: 1, Status: domain.TripInProgress,
			DriverName: "Mike Wilson", VehicleID: "MH-12-ZZ-9999",
			StartTime: "10 Jan 04:00",
			Distance: "8.7 km", Duration: "45m",
			PassengerName: "Carol Davis", IconTags: []string{"phone", "car", "inprogress"},
		},
		{
			ID: "VTT-AB1234", Count: 3, Status: domain.TripNotStarted,
			DriverName: "Sarah Brown", VehicleID: "MH-12-AA-1111",
			StartTime: "10 Jan 06:00",
			Distance: "0 km", Duration: "0m",
			PassengerName: "David Lee", IconTags: []string{"phone", "car", "notstarted"},
		},
	}
}

func seedDrivers() []domain.Driver {
	return []domain.Driver{
		{
			ID: "DRV001", Name: "John Doe", Email: "john.doe@travel.com", Phone: "+91 98765 43210",
			License: "MH-12-2023-001234", Status: domain.DriverActive, VehicleID: "MH-12-AB-1234",
			TripsToday: 8, TotalTrips: 1247, Rating: 4.8, JoinDate: "2022-03-15",
			LastActive: "2 mins ago", Avatar: "JD",
		},
		{
			ID: "DRV002", Name: "Jane Smith", Email: "jane.smith@travel.com", Phone: "+91 98765 43211",
			License: "MH-12-2021-005678", Status: domain.DriverOnTrip, VehicleID: "MH-12-XY-5678",
			TripsToday: 5, TotalTrips: 987, Rating: 4.9, JoinDate: "2021-08-22",
			LastActive: "Currently driving", Avatar: "JS",
		},
		{
			ID: "DRV003", Name: "Mike Wilson", Email: "mike.wilson@travel.com", Phone: "+91 98765 43212",
			License: "MH-12-2022-009999", Status: domain.DriverOffline, VehicleID: "MH-12-ZZ-9999",
			TripsToday: 0, TotalTrips: 756, Rating: 4.6, JoinDate: "2023-01-10",
			LastActive: "2 hours ago", Avatar: "MW",
		},
		{
			ID: "DRV004", Name: "Sarah Brown", Email: "sarah.brown@travel.com", Phone: "+91 98765 43213",
			License: "MH-12-2020-001111", Status: domain.DriverOnLeave, VehicleID: "MH-12-AA-1111",
			TripsToday: 0, TotalTrips: 543, Rating: 4.7, JoinDate: "2020-11-05",
			LastActive: "3 days ago", Avatar: "SB",
		},
	}
}

func seedVehicles() []domain.Vehicle {
	return []domain.Vehicle{
		{
			ID: "VTT-WX1387", DriverName: "John Doe", Plate: "MH-12-AB-1234", Status: domain.VehicleActive,
			Location: domain.Location{Lat: 19.0760, Lng: 72.8777}, Speed: 45, Battery: 85, Signal: 4,
			LastUpdate: "2 mins ago", CurrentTrip: "Active - Going to Airport", Passenger: "Alice Smith",
		},
		{
			ID: "VTT-WJ0335", DriverName: "Jane Smith", Plate: "MH-12-XY-5678", Status: domain.VehicleIdle,
			Location: domain.Location{Lat: 19.0860, Lng: 72.8877}, Speed: 0, Battery: 92, Signal: 3,
			LastUpdate: "5 mins ago", CurrentTrip: "No active trip", Passenger: "None",
		},
		{
			ID: "VTT-VF9934", DriverName: "Mike Wilson", Plate: "MH-12-ZZ-9999", Status: domain.VehicleActive,
			Location: domain.Location{Lat: 19.0660, Lng: 72.8677}, Speed: 38, Battery: 67, Signal: 4,
			LastUpdate: "1 min ago", CurrentTrip: "Active - Pickup at Station", Passenger: "Carol Davis",
		},
	}
}
