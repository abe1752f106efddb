package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

// EventKPIs is the only event the push source emits today.
const EventKPIs = "kpis"

var ErrMalformedPayload = errors.New("payload is not a JSON object")

// KPIUpdater is the store side of the KPI binding.
type KPIUpdater interface {
	UpdateKPIs(domain.KPIPartial) domain.KPISnapshot
}

// NormalizeKPIs validates each field independently. A field is kept only when
// present and numeric; anything else is reported absent so the store zeroes it.
// Non-object payloads are rejected outright.
func NormalizeKPIs(raw json.RawMessage) (domain.KPIPartial, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.KPIPartial{}, ErrMalformedPayload
	}
	return domain.KPIPartial{
		ActiveTrips:   numericField(fields, "activeTrips"),
		TotalTrips:    numericField(fields, "totalTrips"),
		DriversOnline: numericField(fields, "driversOnline"),
	}, nil
}

func numericField(fields map[string]json.RawMessage, key string) *int {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	v := int(f)
	return &v
}

// BindKPIs forwards normalized "kpis" events into the store. The caller owns
// the returned subscription and must release it on teardown.
func BindKPIs(ch *Channel, s KPIUpdater, log logger.Logger) *Subscription {
	log = log.WithFields(logger.LogFields{"event": EventKPIs})
	return ch.Subscribe(EventKPIs, func(payload json.RawMessage) {
		partial, err := NormalizeKPIs(payload)
		if err != nil {
			log.Error("kpis_rejected", fmt.Errorf("dropping kpi event: %w", err))
			return
		}
		snap := s.UpdateKPIs(partial)
		log.WithFields(logger.LogFields{
			"active_trips":   snap.ActiveTrips,
			"total_trips":    snap.TotalTrips,
			"drivers_online": snap.DriversOnline,
		}).Debug("kpis_applied", "KPI snapshot replaced")
	})
}
