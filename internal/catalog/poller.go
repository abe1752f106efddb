package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

// Store is the set of full-replacement setters the poller feeds.
type Store interface {
	SetTrips([]domain.Trip)
	SetDrivers([]domain.Driver)
	SetVehicles([]domain.Vehicle)
	SetShifts([]domain.Shift)
}

// Poller copies every collection from a Source into the store on start and
// then on each tick. A collection whose load fails keeps its previous value.
type Poller struct {
	src      Source
	store    Store
	interval time.Duration
	log      logger.Logger
}

func NewPoller(src Source, store Store, interval time.Duration, log logger.Logger) *Poller {
	return &Poller{src: src, store: store, interval: interval, log: log}
}

// Refresh loads all four collections once. It returns the joined load errors.
func (p *Poller) Refresh(ctx context.Context) error {
	return errors.Join(
		load(ctx, p, "trips", p.src.Trips, p.store.SetTrips),
		load(ctx, p, "drivers", p.src.Drivers, p.store.SetDrivers),
		load(ctx, p, "vehicles", p.src.Vehicles, p.store.SetVehicles),
		load(ctx, p, "shifts", p.src.Shifts, p.store.SetShifts),
	)
}

func load[T any](ctx context.Context, p *Poller, name string, get func(context.Context) ([]T, error), set func([]T)) error {
	items, err := get(ctx)
	if err != nil {
		err = fmt.Errorf("load %s: %w", name, err)
		p.log.Error("catalog_load_failed", err)
		return err
	}
	set(items)
	p.log.Debug("catalog_loaded", fmt.Sprintf("%s: %d items", name, len(items)))
	return nil
}

// Run refreshes immediately and then every interval until ctx ends. A
// non-positive interval loads once.
func (p *Poller) Run(ctx context.Context) {
	_ = p.Refresh(ctx)
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("catalog_poller_stopped", "catalog refresh stopped")
			return
		case <-ticker.C:
			_ = p.Refresh(ctx)
		}
	}
}
