package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createBusesTable,
		createRoutesTable,
		createRouteStopsTable,
		createTripsTable,
		createSeatRecordsTable,
		createSeatRecordsIndexes,
		createBookingsTable,
		createBookingsIndexes,
		createPaymentsTable,
	}

	for i, migration := range migrations {
		slog.Debug("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createBusesTable = `
CREATE TABLE IF NOT EXISTS buses (
    id BIGSERIAL PRIMARY KEY,
    bus_type VARCHAR(100) NOT NULL,
    seat_count INTEGER NOT NULL DEFAULT 0
);`

const createRoutesTable = `
CREATE TABLE IF NOT EXISTS routes (
    id BIGSERIAL PRIMARY KEY,
    origin VARCHAR(255) NOT NULL,
    destination VARCHAR(255) NOT NULL,
    distance_km BIGINT NOT NULL DEFAULT 0,
    duration_min INTEGER NOT NULL DEFAULT 0
);`

const createRouteStopsTable = `
CREATE TABLE IF NOT EXISTS route_stops (
    id BIGSERIAL PRIMARY KEY,
    route_id BIGINT NOT NULL REFERENCES routes(id),
    name VARCHAR(255) NOT NULL,
    position INTEGER NOT NULL,
    distance_km BIGINT NOT NULL DEFAULT 0,
    UNIQUE (route_id, position)
);`

const createTripsTable = `
CREATE TABLE IF NOT EXISTS trips (
    id BIGSERIAL PRIMARY KEY,
    route_id BIGINT NOT NULL REFERENCES routes(id),
    bus_id BIGINT REFERENCES buses(id),
    departure_time TIMESTAMPTZ NOT NULL,
    arrival_time TIMESTAMPTZ NOT NULL,
    base_price BIGINT NOT NULL
);`

const createSeatRecordsTable = `
CREATE TABLE IF NOT EXISTS seat_records (
    trip_id BIGINT NOT NULL,
    seat_label VARCHAR(16) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'available',
    holder_booking_id UUID,
    hold_expires_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT seat_records_trip_label_key UNIQUE (trip_id, seat_label),
    CONSTRAINT seat_records_status_check CHECK (status IN ('available', 'held', 'sold', 'checked_in')),
    CONSTRAINT seat_records_holder_check CHECK (status = 'available' OR holder_booking_id IS NOT NULL)
);`

const createSeatRecordsIndexes = `
CREATE INDEX IF NOT EXISTS idx_seat_records_holder ON seat_records(holder_booking_id) WHERE holder_booking_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_seat_records_hold_expiry ON seat_records(hold_expires_at) WHERE status = 'held';`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    trip_id BIGINT NOT NULL,
    user_id VARCHAR(255),
    seat_labels TEXT[] NOT NULL,
    passenger_name VARCHAR(255) NOT NULL,
    passenger_phone VARCHAR(64) NOT NULL,
    passenger_email VARCHAR(255),
    passenger_note TEXT,
    price_per_seat BIGINT NOT NULL,
    total_price BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    payment_method VARCHAR(32) NOT NULL,
    payment_ref UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createBookingsIndexes = `
CREATE INDEX IF NOT EXISTS idx_bookings_pending_created ON bookings(created_at) WHERE status = 'pending';`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY,
    booking_id UUID NOT NULL,
    method VARCHAR(32) NOT NULL,
    amount BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    settled_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments(booking_id);`
