package service

import (
	"time"

	"seatline/internal/notify"
	"seatline/internal/repository"
)

type Services struct {
	Checkout *CheckoutService
	Bookings *BookingService
	Seats    *SeatService
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, used by tests to move time forward
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewServices(repos *repository.Repositories, committer Committer, notifier notify.Notifier, holdTTL time.Duration, opts ...Option) *Services {
	transactional := committer.Name() == StrategyTransactional

	return &Services{
		Checkout: NewCheckoutService(repos.Trips, repos.Store, committer, notifier, holdTTL, opts...),
		Bookings: NewBookingService(repos.Store, transactional, notifier, opts...),
		Seats:    NewSeatService(repos.Trips, repos.Store),
	}
}
