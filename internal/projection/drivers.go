package projection

import (
	"strings"

	"fleet-dashboard/internal/domain"
)

type DriverFilter struct {
	Query   string `json:"q"`
	Date    string `json:"date"`
	Status  string `json:"status"`
	Vehicle string `json:"vehicle"`
}

type DriverProjection struct {
	Filtered []domain.Driver             `json:"filtered"`
	Counts   map[domain.DriverStatus]int `json:"counts"`
}

// IDs returns the filtered driver ids in display order.
func (p DriverProjection) IDs() []string {
	ids := make([]string, len(p.Filtered))
	for i, d := range p.Filtered {
		ids[i] = d.ID
	}
	return ids
}

func (f DriverFilter) matches(d domain.Driver) bool {
	// phone numbers are matched verbatim, the rest case-insensitively
	if !matchQuery(f.Query, d.Name, d.Email, d.License, d.VehicleID) &&
		!(f.Query != "" && strings.Contains(d.Phone, f.Query)) {
		return false
	}
	return matchSelector(f.Status, string(d.Status)) &&
		matchSelector(f.Vehicle, d.VehicleID)
}

func ProjectDrivers(drivers []domain.Driver, f DriverFilter) DriverProjection {
	filtered := Filter(drivers, f.matches)
	return DriverProjection{
		Filtered: filtered,
		Counts:   CountBy(filtered, func(d domain.Driver) domain.DriverStatus { return d.Status }),
	}
}
