package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"seatline/internal/database"
	"seatline/internal/models"
	"seatline/internal/repository"
)

// Catalog reads trips together with their route, stops and bus
type Catalog struct {
	db *database.DB
}

func NewCatalog(db *database.DB) *Catalog {
	return &Catalog{db: db}
}

var _ repository.TripCatalog = (*Catalog)(nil)

func (c *Catalog) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	var trip *models.Trip
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		t, err := c.loadTrip(ctx, id)
		trip = t
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load trip %d: %w", id, err)
	}
	return trip, nil
}

func (c *Catalog) loadTrip(ctx context.Context, id int64) (*models.Trip, error) {
	trip := &models.Trip{}
	query := `
		SELECT id, route_id, bus_id, departure_time, arrival_time, base_price
		FROM trips
		WHERE id = $1`

	err := c.db.GetContext(ctx, trip, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	route := &models.Route{}
	query = `SELECT id, origin, destination, distance_km, duration_min FROM routes WHERE id = $1`
	if err := c.db.GetContext(ctx, route, query, trip.RouteID); err != nil {
		return nil, fmt.Errorf("failed to load route %d: %w", trip.RouteID, err)
	}

	query = `
		SELECT id, route_id, name, position, distance_km
		FROM route_stops
		WHERE route_id = $1
		ORDER BY position`
	if err := c.db.SelectContext(ctx, &route.Stops, query, route.ID); err != nil {
		return nil, fmt.Errorf("failed to load stops of route %d: %w", route.ID, err)
	}
	trip.Route = route

	if trip.BusID != nil {
		bus := &models.Bus{}
		query = `SELECT id, bus_type, seat_count FROM buses WHERE id = $1`
		err := c.db.GetContext(ctx, bus, query, *trip.BusID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("failed to load bus %d: %w", *trip.BusID, err)
		default:
			trip.Bus = bus
		}
	}

	return trip, nil
}

// Insert stores the trip with its bus and fills in the generated ids.
// The route is inserted too unless it already has an id.
func (c *Catalog) Insert(ctx context.Context, trip *models.Trip) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if trip.Route == nil {
		return fmt.Errorf("trip has no route")
	}
	if trip.Route.ID == 0 {
		if err := insertRoute(ctx, tx, trip.Route); err != nil {
			return err
		}
	}
	trip.RouteID = trip.Route.ID

	if trip.Bus != nil {
		query := `INSERT INTO buses (bus_type, seat_count) VALUES ($1, $2) RETURNING id`
		if err := tx.QueryRowxContext(ctx, query, trip.Bus.BusType, trip.Bus.SeatCount).Scan(&trip.Bus.ID); err != nil {
			return fmt.Errorf("failed to insert bus: %w", err)
		}
		trip.BusID = &trip.Bus.ID
	}

	query := `
		INSERT INTO trips (route_id, bus_id, departure_time, arrival_time, base_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err = tx.QueryRowxContext(ctx, query,
		trip.RouteID, trip.BusID, trip.DepartureTime, trip.ArrivalTime, trip.BasePrice).Scan(&trip.ID)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	return tx.Commit()
}

func insertRoute(ctx context.Context, tx *sqlx.Tx, route *models.Route) error {
	query := `
		INSERT INTO routes (origin, destination, distance_km, duration_min)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := tx.QueryRowxContext(ctx, query,
		route.Origin, route.Destination, route.DistanceKm, route.DurationMin).Scan(&route.ID)
	if err != nil {
		return fmt.Errorf("failed to insert route: %w", err)
	}

	for i := range route.Stops {
		stop := &route.Stops[i]
		stop.RouteID = route.ID
		query := `
			INSERT INTO route_stops (route_id, name, position, distance_km)
			VALUES ($1, $2, $3, $4)
			RETURNING id`
		err := tx.QueryRowxContext(ctx, query, stop.RouteID, stop.Name, stop.Position, stop.DistanceKm).Scan(&stop.ID)
		if err != nil {
			return fmt.Errorf("failed to insert stop %s: %w", stop.Name, err)
		}
	}
	return nil
}
