package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fleet-dashboard/internal/domain"
)

//go:embed schema.sql
var schema string

// Querier is the part of *pgxpool.Pool the source uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSource reads the collections from the trips, drivers, vehicles and
// shifts tables.
type PostgresSource struct {
	db Querier
}

func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// Migrate creates the tables when they do not exist yet.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply catalog schema: %w", err)
	}
	return nil
}

func (s *PostgresSource) Trips(ctx context.Context) ([]domain.Trip, error) {
	query := `
		SELECT id, count, status, driver_name, vehicle_id, start_time, end_time,
		       distance, duration, rating, passenger_name, icon_tags,
		       COALESCE(zone, ''), COALESCE(trip_type, ''), COALESCE(shift_time, '')
		FROM trips
		ORDER BY position, id
	`
	return collect(ctx, s.db, "trips", query, func(row pgx.CollectableRow) (domain.Trip, error) {
		var t domain.Trip
		err := row.Scan(
			&t.ID, &t.Count, &t.Status, &t.DriverName, &t.VehicleID, &t.StartTime, &t.EndTime,
			&t.Distance, &t.Duration, &t.Rating, &t.PassengerName, &t.IconTags,
			&t.Zone, &t.TripType, &t.ShiftTime,
		)
		return t, err
	})
}

func (s *PostgresSource) Drivers(ctx context.Context) ([]domain.Driver, error) {
	query := `
		SELECT id, name, email, phone, license, status, vehicle_id, trips_today,
		       total_trips, rating, to_char(join_date, 'YYYY-MM-DD'), last_active, avatar
		FROM drivers
		ORDER BY position, id
	`
	return collect(ctx, s.db, "drivers", query, func(row pgx.CollectableRow) (domain.Driver, error) {
		var d domain.Driver
		err := row.Scan(
			&d.ID, &d.Name, &d.Email, &d.Phone, &d.License, &d.Status, &d.VehicleID, &d.TripsToday,
			&d.TotalTrips, &d.Rating, &d.JoinDate, &d.LastActive, &d.Avatar,
		)
		return d, err
	})
}

// AddDrivers inserts drivers after the existing ones in one transaction. A
// duplicate email or license fails the whole batch.
func (s *PostgresSource) AddDrivers(ctx context.Context, drivers []domain.Driver) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin driver insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO drivers (id, position, name, email, phone, license, status, vehicle_id,
		                     trips_today, total_trips, rating, join_date, last_active, avatar)
		VALUES ($1, (SELECT COALESCE(MAX(position), 0) + 1 FROM drivers), $2, $3, $4, $5, $6, $7,
		        $8, $9, $10, $11::date, $12, $13)
	`
	for _, d := range drivers {
		_, err := tx.Exec(ctx, query,
			d.ID, d.Name, d.Email, d.Phone, d.License, string(d.Status), d.VehicleID,
			d.TripsToday, d.TotalTrips, d.Rating, d.JoinDate, d.LastActive, d.Avatar,
		)
		if err != nil {
			return fmt.Errorf("failed to insert driver %s: %w", d.Email, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit driver insert: %w", err)
	}
	return nil
}

func (s *PostgresSource) Vehicles(ctx context.Context) ([]domain.Vehicle, error) {
	query := `
		SELECT id, driver_name, plate, status, lat, lng, speed, battery, signal,
		       last_update, current_trip, passenger
		FROM vehicles
		ORDER BY position, id
	`
	return collect(ctx, s.db, "vehicles", query, func(row pgx.CollectableRow) (domain.Vehicle, error) {
		var v domain.Vehicle
		err := row.Scan(
			&v.ID, &v.DriverName, &v.Plate, &v.Status, &v.Location.Lat, &v.Location.Lng,
			&v.Speed, &v.Battery, &v.Signal, &v.LastUpdate, &v.CurrentTrip, &v.Passenger,
		)
		return v, err
	})
}

func (s *PostgresSource) Shifts(ctx context.Context) ([]domain.Shift, error) {
	query := `SELECT id, type FROM shifts ORDER BY id`
	return collect(ctx, s.db, "shifts", query, func(row pgx.CollectableRow) (domain.Shift, error) {
		var sh domain.Shift
		err := row.Scan(&sh.ID, &sh.Type)
		return sh, err
	})
}

func collect[T any](ctx context.Context, db Querier, table, query string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return out, nil
}
