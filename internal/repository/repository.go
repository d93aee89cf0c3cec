package repository

import (
	"context"
	"time"

	"seatline/internal/models"
)

// SeatTransition describes a conditional seat update. The update applies only
// when the record currently has status From and holder FromHolder.
type SeatTransition struct {
	From          models.SeatStatus
	FromHolder    *string
	To            models.SeatStatus
	ToHolder      *string
	HoldExpiresAt *time.Time
}

// Claim moves an available seat to status for the booking
func Claim(status models.SeatStatus, bookingID string, holdExpiresAt *time.Time) SeatTransition {
	return SeatTransition{
		From:          models.SeatAvailable,
		To:            status,
		ToHolder:      &bookingID,
		HoldExpiresAt: holdExpiresAt,
	}
}

// Release returns a seat held by the booking to available
func Release(from models.SeatStatus, bookingID string) SeatTransition {
	return SeatTransition{
		From:       from,
		FromHolder: &bookingID,
		To:         models.SeatAvailable,
	}
}

type SeatStore interface {
	// EnsureSeeded creates labels "1".."seatCount" when the trip has no records yet
	// and returns the number of records inserted.
	EnsureSeeded(ctx context.Context, tripID int64, seatCount int) (int, error)
	// InsertIfAbsent creates a single available record unless it already exists.
	InsertIfAbsent(ctx context.Context, tripID int64, label string) error
	FindByLabels(ctx context.Context, tripID int64, labels []string) ([]models.SeatRecord, error)
	ListByTrip(ctx context.Context, tripID int64) ([]models.SeatRecord, error)
	ListByHolder(ctx context.Context, bookingID string) ([]models.SeatRecord, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.SeatRecord, error)
	// CompareAndSwap applies t to the record and reports whether it matched.
	CompareAndSwap(ctx context.Context, tripID int64, label string, t SeatTransition) (bool, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	SetPaymentRef(ctx context.Context, id, paymentID string) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	// TransitionStatus changes the status only when it currently equals from.
	TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error)
	Delete(ctx context.Context, id string) error
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByBooking(ctx context.Context, bookingID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, settledAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

// Store groups the stores that share one connection or transaction
type Store interface {
	Seats() SeatStore
	Bookings() BookingStore
	Payments() PaymentStore
}

// Database is a Store that can also run a function inside a transaction.
// The Store passed to fn must be used for every call that belongs to it.
type Database interface {
	Store
	SupportsTransactions() bool
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// TripCatalog is the read-only trip lookup. GetTrip returns nil when the trip does not exist.
type TripCatalog interface {
	GetTrip(ctx context.Context, id int64) (*models.Trip, error)
}

type Repositories struct {
	Store Database
	Trips TripCatalog
}

func NewRepositories(store Database, trips TripCatalog) *Repositories {
	return &Repositories{
		Store: store,
		Trips: trips,
	}
}
