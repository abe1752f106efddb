package projection

import "fleet-dashboard/internal/domain"

type VehicleFilter struct {
	Query  string `json:"q"`
	Status string `json:"status"`
}

// VehicleProjection is the tracking list. FleetCounts covers the whole fleet,
// not just the filtered rows; the map header shows fleet-wide totals.
type VehicleProjection struct {
	Filtered    []domain.Vehicle             `json:"filtered"`
	FleetCounts map[domain.VehicleStatus]int `json:"fleet_counts"`
	Focused     *domain.Vehicle              `json:"focused,omitempty"`
}

func (f VehicleFilter) matches(v domain.Vehicle) bool {
	return matchQuery(f.Query, v.ID, v.DriverName, v.Plate) &&
		matchSelector(f.Status, string(v.Status))
}

// ProjectVehicles filters the fleet and resolves focusID against the full fleet.
func ProjectVehicles(vehicles []domain.Vehicle, f VehicleFilter, focusID string) VehicleProjection {
	out := VehicleProjection{
		Filtered:    Filter(vehicles, f.matches),
		FleetCounts: CountBy(vehicles, func(v domain.Vehicle) domain.VehicleStatus { return v.Status }),
	}
	if focusID != "" {
		for i := range vehicles {
			if vehicles[i].ID == focusID {
				v := vehicles[i]
				out.Focused = &v
				break
			}
		}
	}
	return out
}
