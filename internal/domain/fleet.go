package domain

// TripStatus is the lifecycle state of a trip as shown on the dashboard.
type TripStatus string

const (
	TripNotStarted TripStatus = "Not Started"
	TripInProgress TripStatus = "In Progress"
	TripCompleted  TripStatus = "Completed"
)

func (s TripStatus) IsValid() bool {
	switch s {
	case TripNotStarted, TripInProgress, TripCompleted:
		return true
	}
	return false
}

// DriverStatus is a driver's availability.
type DriverStatus string

const (
	DriverActive  DriverStatus = "Active"
	DriverOnTrip  DriverStatus = "On Trip"
	DriverOffline DriverStatus = "Offline"
	DriverOnLeave DriverStatus = "On Leave"
)

func (s DriverStatus) IsValid() bool {
	switch s {
	case DriverActive, DriverOnTrip, DriverOffline, DriverOnLeave:
		return true
	}
	return false
}

// VehicleStatus is the live-tracking state of a vehicle.
type VehicleStatus string

const (
	VehicleActive  VehicleStatus = "Active"
	VehicleIdle    VehicleStatus = "Idle"
	VehicleOffline VehicleStatus = "Offline"
)

func (s VehicleStatus) IsValid() bool {
	switch s {
	case VehicleActive, VehicleIdle, VehicleOffline:
		return true
	}
	return false
}

type ShiftType string

const (
	ShiftDay   ShiftType = "Day"
	ShiftNight ShiftType = "Night"
)

type Trip struct {
	ID            string     `json:"id"`
	Count         int        `json:"count"`
	Status        TripStatus `json:"status"`
	DriverName    string     `json:"driver"`
	VehicleID     string     `json:"vehicle"`
	StartTime     string     `json:"start_time"`
	EndTime       *string    `json:"end_time"`
	Distance      string     `json:"distance"`
	Duration      string     `json:"duration"`
	Rating        *float64   `json:"rating"`
	PassengerName string     `json:"passenger"`
	IconTags      []string   `json:"icons"`
	Zone          string     `json:"zone,omitempty"`
	TripType      string     `json:"trip_type,omitempty"`
	ShiftTime     string     `json:"shift_time,omitempty"`
}

type Driver struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	License    string       `json:"license"`
	Status     DriverStatus `json:"status"`
	VehicleID  string       `json:"vehicle"`
	TripsToday int          `json:"trips_today"`
	TotalTrips int          `json:"total_trips"`
	Rating     float64      `json:"rating"`
	JoinDate   string       `json:"join_date"`
	LastActive string       `json:"last_active"`
	Avatar     string       `json:"avatar"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Vehicle struct {
	ID          string        `json:"id"`
	DriverName  string        `json:"driver"`
	Plate       string        `json:"vehicle"`
	Status      VehicleStatus `json:"status"`
	Location    Location      `json:"location"`
	Speed       float64       `json:"speed"`
	Battery     int           `json:"battery"`
	Signal      int           `json:"signal"`
	LastUpdate  string        `json:"last_update"`
	CurrentTrip string        `json:"trip"`
	Passenger   string        `json:"passenger"`
}

type Shift struct {
	ID   string    `json:"id"`
	Type ShiftType `json:"type"`
}
