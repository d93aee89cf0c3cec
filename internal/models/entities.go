package models

import (
	"time"

	"github.com/lib/pq"
)

// SeatStatus is the lifecycle state of a single seat record
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatSold      SeatStatus = "sold"
	SeatCheckedIn SeatStatus = "checked_in"
)

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentCancelled     PaymentStatus = "cancelled"
	PaymentRefundPending PaymentStatus = "refund_pending"
)

// Payment methods accepted at checkout
const (
	MethodCash           = "cash"
	MethodCard           = "card"
	MethodEWallet        = "ewallet"
	MethodBankTransfer   = "bank_transfer"
	MethodVirtualAccount = "virtual_account"
)

var paymentMethods = map[string]bool{
	MethodCash:           false,
	MethodCard:           false,
	MethodEWallet:        false,
	MethodBankTransfer:   true,
	MethodVirtualAccount: true,
}

// IsKnownPaymentMethod reports whether the method is accepted at checkout
func IsKnownPaymentMethod(method string) bool {
	_, ok := paymentMethods[method]
	return ok
}

// IsAsynchronousPayment reports whether the method settles after checkout.
// Seats of such bookings are held until the payment is settled or the hold expires.
func IsAsynchronousPayment(method string) bool {
	return paymentMethods[method]
}

// Trip represents a scheduled trip from the catalog
type Trip struct {
	ID            int64     `json:"id" db:"id"`
	RouteID       int64     `json:"route_id" db:"route_id"`
	BusID         *int64    `json:"bus_id" db:"bus_id"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time" db:"arrival_time"`
	BasePrice     int64     `json:"base_price" db:"base_price"`
	Route         *Route    `json:"route,omitempty" db:"-"`
	Bus           *Bus      `json:"bus,omitempty" db:"-"`
}

// SeatCount returns the bus capacity, zero when the bus is unknown
func (t *Trip) SeatCount() int {
	if t.Bus == nil {
		return 0
	}
	return t.Bus.SeatCount
}

// Route represents an ordered list of stops between origin and destination
type Route struct {
	ID          int64       `json:"id" db:"id"`
	Origin      string      `json:"origin" db:"origin"`
	Destination string      `json:"destination" db:"destination"`
	DistanceKm  int64       `json:"distance_km" db:"distance_km"`
	DurationMin int         `json:"duration_min" db:"duration_min"`
	Stops       []RouteStop `json:"stops,omitempty" db:"-"`
}

// TotalDistance returns the route length, falling back to the farthest stop
func (r *Route) TotalDistance() int64 {
	total := r.DistanceKm
	for _, s := range r.Stops {
		if s.DistanceKm > total {
			total = s.DistanceKm
		}
	}
	return total
}

// RouteStop is a stop with its cumulative distance from the route start
type RouteStop struct {
	ID         int64  `json:"id" db:"id"`
	RouteID    int64  `json:"route_id" db:"route_id"`
	Name       string `json:"name" db:"name"`
	Position   int    `json:"position" db:"position"`
	DistanceKm int64  `json:"distance_km" db:"distance_km"`
}

// Bus represents the vehicle assigned to a trip
type Bus struct {
	ID        int64  `json:"id" db:"id"`
	BusType   string `json:"bus_type" db:"bus_type"`
	SeatCount int    `json:"seat_count" db:"seat_count"`
}

// SeatRecord represents one seat on one trip
type SeatRecord struct {
	TripID          int64      `json:"trip_id" db:"trip_id"`
	SeatLabel       string     `json:"seat_label" db:"seat_label"`
	Status          SeatStatus `json:"status" db:"status"`
	HolderBookingID *string    `json:"holder_booking_id,omitempty" db:"holder_booking_id"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// HeldBy reports whether the seat is held or sold to the given booking
func (s *SeatRecord) HeldBy(bookingID string) bool {
	return s.HolderBookingID != nil && *s.HolderBookingID == bookingID
}

// Passenger holds the contact block captured at checkout
type Passenger struct {
	Name  string  `json:"name" db:"passenger_name" binding:"required"`
	Phone string  `json:"phone" db:"passenger_phone" binding:"required"`
	Email *string `json:"email,omitempty" db:"passenger_email"`
	Note  *string `json:"note,omitempty" db:"passenger_note"`
}

// Booking represents a purchase of one or more seats on a trip
type Booking struct {
	ID            string         `json:"id" db:"id"`
	TripID        int64          `json:"trip_id" db:"trip_id"`
	UserID        *string        `json:"user_id,omitempty" db:"user_id"`
	SeatLabels    pq.StringArray `json:"seat_labels" db:"seat_labels"`
	Passenger     `json:"passenger"`
	PricePerSeat  int64         `json:"price_per_seat" db:"price_per_seat"`
	TotalPrice    int64         `json:"total_price" db:"total_price"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentMethod string        `json:"payment_method" db:"payment_method"`
	PaymentRef    *string       `json:"payment_ref,omitempty" db:"payment_ref"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// Payment represents the payment paired with a booking
type Payment struct {
	ID        string        `json:"id" db:"id"`
	BookingID string        `json:"booking_id" db:"booking_id"`
	Method    string        `json:"method" db:"method"`
	Amount    int64         `json:"amount" db:"amount"`
	Status    PaymentStatus `json:"status" db:"status"`
	SettledAt *time.Time    `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
