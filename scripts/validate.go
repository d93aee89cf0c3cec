package main

import (
	"flag"
	"log/slog"
	"os"

	"seatline/internal/validation"
)

func main() {
	var baseURL string
	var tripID int64
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.Int64Var(&tripID, "trip", 1, "Trip used for the smoke checkout")
	flag.Parse()

	slog.Info("Starting API validation", "url", baseURL, "trip_id", tripID)

	if err := validation.RunValidation(baseURL, tripID); err != nil {
		slog.Error("Validation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Validation passed")
}
