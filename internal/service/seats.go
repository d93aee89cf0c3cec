package service

import (
	"context"
	"fmt"

	apperrors "seatline/internal/errors"
	"seatline/internal/inventory"
	"seatline/internal/models"
	"seatline/internal/repository"
)

type SeatService struct {
	trips repository.TripCatalog
	store repository.Store
}

func NewSeatService(trips repository.TripCatalog, store repository.Store) *SeatService {
	return &SeatService{trips: trips, store: store}
}

// Map returns every seat of the trip with its status, seeding the trip first
func (s *SeatService) Map(ctx context.Context, tripID int64) (*models.SeatMapResponse, error) {
	const op = "seat map"

	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("failed to get trip: %w", err))
	}
	if trip == nil {
		return nil, apperrors.NotFound(op, "trip %d not found", tripID)
	}

	if err := inventory.EnsureSeeded(ctx, s.store.Seats(), trip.ID, trip.SeatCount()); err != nil {
		return nil, err
	}

	seats, err := s.store.Seats().ListByTrip(ctx, trip.ID)
	if err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("failed to list seats: %w", err))
	}

	resp := &models.SeatMapResponse{
		TripID:    trip.ID,
		SeatCount: trip.SeatCount(),
		Seats:     make([]models.SeatMapItem, 0, len(seats)),
	}
	for _, seat := range seats {
		if seat.Status == models.SeatAvailable {
			resp.Available++
		}
		resp.Seats = append(resp.Seats, models.SeatMapItem{Label: seat.SeatLabel, Status: seat.Status})
	}
	return resp, nil
}
