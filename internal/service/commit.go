package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	apperrors "seatline/internal/errors"
	"seatline/internal/metrics"
	"seatline/internal/models"
	"seatline/internal/repository"
)

// Commit strategies
const (
	StrategyAuto          = "auto"
	StrategyTransactional = "transactional"
	StrategyCAS           = "cas"
)

// CommitPlan is everything a checkout writes once seats are resolved and priced
type CommitPlan struct {
	TripID        int64
	Labels        []string
	SeatStatus    models.SeatStatus
	HoldExpiresAt *time.Time
	Booking       *models.Booking
	Payment       *models.Payment
}

// Committer flips the planned seats and persists the booking with its payment.
// On any error no seat, booking or payment of the plan stays visible.
type Committer interface {
	Name() string
	Commit(ctx context.Context, plan *CommitPlan) error
}

// NewCommitter picks the strategy once at startup
func NewCommitter(strategy string, db repository.Database) (Committer, error) {
	switch strategy {
	case StrategyTransactional:
		if !db.SupportsTransactions() {
			return nil, fmt.Errorf("store does not support transactions")
		}
		return &TxCommitter{db: db}, nil
	case StrategyCAS:
		return &CASCommitter{store: db}, nil
	case StrategyAuto, "":
		if db.SupportsTransactions() {
			return &TxCommitter{db: db}, nil
		}
		return &CASCommitter{store: db}, nil
	}
	return nil, fmt.Errorf("unknown commit strategy %q", strategy)
}

// TxCommitter runs the seat swaps and the inserts in one transaction
type TxCommitter struct {
	db repository.Database
}

func (c *TxCommitter) Name() string { return StrategyTransactional }

func (c *TxCommitter) Commit(ctx context.Context, plan *CommitPlan) error {
	err := c.db.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return apply(ctx, tx, plan, nil)
	})
	return classify(err)
}

// CASCommitter relies on per-seat compare-and-swap and undoes applied steps
// when a later one fails
type CASCommitter struct {
	store repository.Store
}

func (c *CASCommitter) Name() string { return StrategyCAS }

func (c *CASCommitter) Commit(ctx context.Context, plan *CommitPlan) error {
	var done applied
	err := apply(ctx, c.store, plan, &done)
	if err == nil {
		return nil
	}

	// the caller may already be gone, compensation must still run
	if cerr := compensate(context.WithoutCancel(ctx), c.store, plan, &done); cerr != nil {
		metrics.CompensationFailures.Inc()
		slog.Error("Failed to compensate checkout",
			"booking_id", plan.Booking.ID, "trip_id", plan.TripID, "error", cerr)
		return apperrors.Internal("commit", errors.Join(err, cerr))
	}
	return classify(err)
}

// applied tracks what a CAS commit has written so far
type applied struct {
	seats   []string
	booking bool
	payment bool
}

func apply(ctx context.Context, store repository.Store, plan *CommitPlan, done *applied) error {
	bookingID := plan.Booking.ID
	for _, label := range orderLabels(plan.Labels) {
		ok, err := store.Seats().CompareAndSwap(ctx, plan.TripID, label,
			repository.Claim(plan.SeatStatus, bookingID, plan.HoldExpiresAt))
		if err != nil {
			return fmt.Errorf("failed to claim seat %s: %w", label, err)
		}
		if !ok {
			metrics.SeatConflicts.Inc()
			return apperrors.Conflict("commit", "seat %s is no longer available", label)
		}
		if done != nil {
			done.seats = append(done.seats, label)
		}
	}

	if err := store.Bookings().Create(ctx, plan.Booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	if done != nil {
		done.booking = true
	}

	if err := store.Payments().Create(ctx, plan.Payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	if done != nil {
		done.payment = true
	}

	if err := store.Bookings().SetPaymentRef(ctx, bookingID, plan.Payment.ID); err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}
	plan.Booking.PaymentRef = &plan.Payment.ID
	return nil
}

func compensate(ctx context.Context, store repository.Store, plan *CommitPlan, done *applied) error {
	var errs []error
	if done.payment {
		if err := store.Payments().Delete(ctx, plan.Payment.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete payment %s: %w", plan.Payment.ID, err))
		}
	}
	if done.booking {
		if err := store.Bookings().Delete(ctx, plan.Booking.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete booking %s: %w", plan.Booking.ID, err))
		}
	}
	for i := len(done.seats) - 1; i >= 0; i-- {
		label := done.seats[i]
		ok, err := store.Seats().CompareAndSwap(ctx, plan.TripID, label,
			repository.Release(plan.SeatStatus, plan.Booking.ID))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to release seat %s: %w", label, err))
			continue
		}
		if !ok {
			errs = append(errs, fmt.Errorf("seat %s changed before it could be released", label))
		}
	}
	return errors.Join(errs...)
}

// classify keeps typed errors and wraps everything else as internal
func classify(err error) error {
	if err == nil {
		return nil
	}
	var typed *apperrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperrors.Internal("commit", err)
}

// orderLabels sorts labels so concurrent checkouts lock rows in the same order
func orderLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i])
		b, errB := strconv.Atoi(out[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return out[i] < out[j]
	})
	return out
}
