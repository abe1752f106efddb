package projection

import "fleet-dashboard/internal/domain"

// TripTypeBoth is the trip-type selector value meaning pickup and drop alike.
const TripTypeBoth = "Both"

type TripFilter struct {
	Query     string `json:"q"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Zone      string `json:"zone"`
	TripType  string `json:"type"`
	ShiftTime string `json:"shift"`
}

// TripStatusCounts backs the per-group badges.
type TripStatusCounts struct {
	NotStarted int `json:"notStarted"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

func (c TripStatusCounts) Total() int {
	return c.NotStarted + c.InProgress + c.Completed
}

type TripGroup struct {
	StartTime string           `json:"start_time"`
	Trips     []domain.Trip    `json:"trips"`
	Counts    TripStatusCounts `json:"counts"`
}

type TripProjection struct {
	Filtered []domain.Trip    `json:"filtered"`
	Groups   []TripGroup      `json:"groups"`
	Counts   TripStatusCounts `json:"counts"`
}

func (f TripFilter) matches(t domain.Trip) bool {
	if !matchQuery(f.Query, t.ID, t.DriverName, t.VehicleID) {
		return false
	}
	tripType := f.TripType
	if tripType == TripTypeBoth {
		tripType = ""
	}
	return matchSelector(f.Status, string(t.Status)) &&
		matchSelector(f.Zone, t.Zone) &&
		matchSelector(tripType, t.TripType) &&
		matchSelector(f.ShiftTime, t.ShiftTime)
}

// CountTripStatuses counts exactly the trips given.
func CountTripStatuses(trips []domain.Trip) TripStatusCounts {
	by := CountBy(trips, func(t domain.Trip) domain.TripStatus { return t.Status })
	return TripStatusCounts{
		NotStarted: by[domain.TripNotStarted],
		InProgress: by[domain.TripInProgress],
		Completed:  by[domain.TripCompleted],
	}
}

// ProjectTrips filters, narrows, groups by start time and summarizes.
func ProjectTrips(trips []domain.Trip, f TripFilter) TripProjection {
	filtered := Filter(trips, f.matches)
	groups := GroupBy(filtered, func(t domain.Trip) string { return t.StartTime })

	out := TripProjection{
		Filtered: filtered,
		Groups:   make([]TripGroup, 0, len(groups)),
		Counts:   CountTripStatuses(filtered),
	}
	for _, g := range groups {
		out.Groups = append(out.Groups, TripGroup{
			StartTime: g.Key,
			Trips:     g.Items,
			Counts:    CountTripStatuses(g.Items),
		})
	}
	return out
}
