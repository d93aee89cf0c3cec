package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"seatline/internal/config"
	"seatline/internal/database"
	"seatline/internal/inventory"
	"seatline/internal/logger"
	"seatline/internal/models"
	"seatline/internal/repository"
	"seatline/internal/repository/postgres"
	"seatline/internal/seed"
)

var (
	days   = flag.Int("days", 7, "Number of days of demo trips to create")
	tripID = flag.Int64("trip", 0, "Only seed seat records for this existing trip (0 = create demo trips)")
	dryRun = flag.Bool("dry-run", false, "Show what would be created without making changes")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting seeder...")

	ctx := context.Background()

	if *dryRun {
		trips := seed.DemoTrips(time.Now(), *days)
		for _, t := range trips {
			slog.Info("Would create trip",
				"route", t.Route.Origin+" - "+t.Route.Destination,
				"departure", t.DepartureTime, "bus", t.Bus.BusType, "seats", t.SeatCount(), "base_price", t.BasePrice)
		}
		slog.Info("Dry run completed", "trips", len(trips))
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	catalog := postgres.NewCatalog(db)
	seats := postgres.New(db).Seats()

	if *tripID != 0 {
		trip, err := catalog.GetTrip(ctx, *tripID)
		if err != nil {
			logger.Fatal("Failed to load trip", "trip_id", *tripID, "error", err)
		}
		if trip == nil {
			logger.Fatal("Trip not found", "trip_id", *tripID)
		}
		seedSeats(ctx, seats, trip)
		return
	}

	trips := seed.DemoTrips(time.Now(), *days)
	resetIDs(trips)

	for _, trip := range trips {
		if err := catalog.Insert(ctx, trip); err != nil {
			slog.Error("Failed to insert trip", "route", trip.Route.Origin, "departure", trip.DepartureTime, "error", err)
			continue
		}
		seedSeats(ctx, seats, trip)
	}

	slog.Info("Seeding completed successfully!", "trips", len(trips))
}

func seedSeats(ctx context.Context, seats repository.SeatStore, trip *models.Trip) {
	if err := inventory.EnsureSeeded(ctx, seats, trip.ID, trip.SeatCount()); err != nil {
		slog.Error("Failed to seed seats", "trip_id", trip.ID, "error", err)
		return
	}
	slog.Info("Seeded seats for trip", "trip_id", trip.ID, "seats", trip.SeatCount())
}

// resetIDs clears the demo ids so the database assigns its own; shared routes are inserted once
func resetIDs(trips []*models.Trip) {
	seen := make(map[*models.Route]bool)
	for _, t := range trips {
		if !seen[t.Route] {
			seen[t.Route] = true
			t.Route.ID = 0
		}
		t.ID = 0
		t.RouteID = 0
		if t.Bus != nil {
			t.Bus.ID = 0
			t.BusID = nil
		}
	}
}
