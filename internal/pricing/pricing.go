package pricing

import (
	apperrors "seatline/internal/errors"
	"seatline/internal/models"
)

const op = "pricing"

// PricePerSeat returns the fare for one seat. Without a stop pair the base
// price applies; with one the fare is proportional to the segment length:
// round(base * (drop - pick) / max(total, 1)), never below 1.
func PricePerSeat(basePrice int64, route *models.Route, stops *models.StopPair) (int64, error) {
	if basePrice < 0 {
		return 0, apperrors.Validation(op, "base price must not be negative")
	}
	if stops == nil || (stops.PickupID == nil && stops.DropoffID == nil) {
		return basePrice, nil
	}
	if stops.PickupID == nil || stops.DropoffID == nil {
		return 0, apperrors.Validation(op, "both pickupId and dropoffId are required")
	}
	if route == nil {
		return 0, apperrors.NotFound(op, "route has no stops")
	}

	pick, ok := findStop(route, *stops.PickupID)
	if !ok {
		return 0, apperrors.NotFound(op, "pickup stop %d not found on route", *stops.PickupID)
	}
	drop, ok := findStop(route, *stops.DropoffID)
	if !ok {
		return 0, apperrors.NotFound(op, "dropoff stop %d not found on route", *stops.DropoffID)
	}

	if drop.Position <= pick.Position {
		return 0, apperrors.Validation(op, "dropoff must come after pickup")
	}
	segment := drop.DistanceKm - pick.DistanceKm
	if segment <= 0 {
		return 0, apperrors.Validation(op, "segment between stops %d and %d has no length", pick.ID, drop.ID)
	}

	total := route.TotalDistance()
	if total < 1 {
		total = 1
	}

	// half-up rounding in integer arithmetic
	price := (2*basePrice*segment + total) / (2 * total)
	if price < 1 {
		price = 1
	}
	return price, nil
}

// Total returns the amount charged for n seats
func Total(pricePerSeat int64, n int) int64 {
	return pricePerSeat * int64(n)
}

func findStop(route *models.Route, id int64) (models.RouteStop, bool) {
	for _, s := range route.Stops {
		if s.ID == id {
			return s, true
		}
	}
	return models.RouteStop{}, false
}
