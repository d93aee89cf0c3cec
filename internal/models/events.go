package models

import "time"

// NATS Event Types
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

// BookingConfirmedEvent is published after a checkout commits
type BookingConfirmedEvent struct {
	BookingID     string        `json:"booking_id"`
	PaymentID     string        `json:"payment_id"`
	TripID        int64         `json:"trip_id"`
	Status        BookingStatus `json:"status"`
	SeatLabels    []string      `json:"seat_labels"`
	Passenger     Passenger     `json:"passenger"`
	TotalAmount   int64         `json:"total_amount"`
	PaymentMethod string        `json:"payment_method"`
	Timestamp     time.Time     `json:"timestamp"`
}

// BookingCancelledEvent is published after a booking is cancelled
type BookingCancelledEvent struct {
	Recipient Passenger `json:"recipient"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Cancellation reasons
const (
	ReasonExpired       = "expired"
	ReasonAdministrator = "cancelled_by_administrator"
	ReasonPaymentFailed = "payment_failed"
)
